package registry

import "github.com/pkg/errors"

// Load failures. Any of them makes a freshly constructed entity rewrite its
// file from the in-memory defaults.
var (
	ErrNotFound   = errors.New("record file not found")
	ErrMalformed  = errors.New("record file is not valid JSON")
	ErrMissingKey = errors.New("record file is missing a required key")
)

var (
	ErrUnknownGroup  = errors.New("unknown permission group")
	ErrUnknownMember = errors.New("unknown member")
)

// recoverable reports whether a load error is healed by rewriting the file.
func recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrMissingKey)
}
