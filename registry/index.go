package registry

import (
	"strconv"

	"github.com/pkg/errors"
)

// index maps every known identity to its last seen display name. Keys are
// string-encoded identities; keys that are not numbers are kept as read.
type index struct {
	file  *jsonFile
	names map[string]string
}

// openIndex reads the index at path, creating an empty one when absent.
func openIndex(path string) (*index, error) {
	x := &index{
		file:  newJSONFile(path),
		names: make(map[string]string),
	}

	if !x.file.exists() {
		if err := x.save(); err != nil {
			return nil, err
		}
		return x, nil
	}

	if err := x.load(); err != nil {
		return nil, errors.Wrap(err, "loading index")
	}
	return x, nil
}

func (x *index) load() error {
	names := make(map[string]string)
	if err := x.file.decode(&names); err != nil {
		return err
	}
	if names == nil {
		names = make(map[string]string)
	}
	x.names = names
	return nil
}

func (x *index) save() error {
	return x.file.write(x.names)
}

func (x *index) name(id int64) (string, bool) {
	name, ok := x.names[strconv.FormatInt(id, 10)]
	return name, ok
}

// set records name for id and reports whether the index changed.
func (x *index) set(id int64, name string) bool {
	key := strconv.FormatInt(id, 10)
	if current, ok := x.names[key]; ok && current == name {
		return false
	}
	x.names[key] = name
	return true
}

// ids returns the numeric identities in the index.
func (x *index) ids() []int64 {
	ids := make([]int64, 0, len(x.names))
	for key := range x.names {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
