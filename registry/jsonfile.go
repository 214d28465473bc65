package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// jsonFile handles reading and writing a single JSON document on disk
type jsonFile struct {
	path string
	mu   sync.Mutex
}

func newJSONFile(path string) *jsonFile {
	return &jsonFile{path: path}
}

// exists reports whether the file is present on disk
func (f *jsonFile) exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// decode reads the document into v after checking that every required
// top-level key is present
func (f *jsonFile) decode(v interface{}, required ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrNotFound, f.path)
		}
		return errors.Wrapf(err, "reading %s", f.path)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrapf(ErrMalformed, "%s: %v", f.path, err)
	}
	// A bare null unmarshals without error but is not a document.
	if fields == nil {
		return errors.Wrapf(ErrMalformed, "%s: not a JSON object", f.path)
	}
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return errors.Wrapf(ErrMissingKey, "%s: %q", f.path, key)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(ErrMalformed, "%s: %v", f.path, err)
	}
	return nil
}

// write overwrites the whole document with v
func (f *jsonFile) write(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return errors.Wrapf(err, "encoding %s", f.path)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", f.path)
	}

	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", f.path)
	}
	return nil
}
