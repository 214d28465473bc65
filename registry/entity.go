// Package registry keeps the guild and member records of the bot: one
// in-memory entity per platform identity, each backed by its own JSON file,
// plus a shared index of identity to last seen display name.
package registry

import (
	"path/filepath"
	"strconv"

	"github.com/31Zeta/zeta-bot/logger"
)

// Entity is a single disk-backed record keyed by a platform identity.
type Entity interface {
	ID() int64
	Name() string
	SetName(name string)

	// Load replaces the in-memory fields with the stored ones. It fails with
	// ErrNotFound, ErrMalformed or ErrMissingKey.
	Load() error
	// Save overwrites the record file with the in-memory fields.
	Save() error
}

// Constructor builds the entity for id and restores it from root.
type Constructor[E Entity] func(id int64, name, root string, log *logger.Logger) E

// RecordPath returns <root>/<id>/<id>.json.
func RecordPath(root string, id int64) string {
	key := strconv.FormatInt(id, 10)
	return filepath.Join(root, key, key+".json")
}

// restore loads e from disk, rewriting the file from the current in-memory
// defaults when it is missing, malformed or incomplete.
func restore(e Entity, log *logger.Logger) {
	err := e.Load()
	if err == nil {
		return
	}

	if !recoverable(err) {
		log.Warnf("Unable to read record %d, rewriting it: %v", e.ID(), err)
	} else {
		log.Debugf("Rewriting record %d: %v", e.ID(), err)
	}

	if err := e.Save(); err != nil {
		log.Errorf("Unable to write record %d: %v", e.ID(), err)
	}
}
