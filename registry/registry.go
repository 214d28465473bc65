package registry

import (
	stderrors "errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/31Zeta/zeta-bot/logger"
)

// Registry owns the live entities of one kind. An identity is constructed
// at most once per process; later lookups return the same instance.
type Registry[E Entity] struct {
	root      string
	entities  map[int64]E
	index     *index
	newEntity Constructor[E]
	log       *logger.Logger
	mu        sync.RWMutex
}

// New opens the registry rooted at root. The index file indexName is created
// when absent; an unreadable index is an error.
func New[E Entity](root, indexName string, newEntity Constructor[E], log *logger.Logger) (*Registry[E], error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}

	x, err := openIndex(filepath.Join(root, indexName))
	if err != nil {
		return nil, err
	}

	return &Registry[E]{
		root:      root,
		entities:  make(map[int64]E),
		index:     x,
		newEntity: newEntity,
		log:       log,
	}, nil
}

// Root returns the directory the records live in.
func (r *Registry[E]) Root() string {
	return r.root
}

// Ensure returns the entity for id, constructing it on first use. The
// display name is refreshed in memory and written to the index whenever it
// differs from the recorded one; the record file is left for Save.
func (r *Registry[E]) Ensure(id int64, name string) E {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		e = r.newEntity(id, name, r.root, r.log)
		r.entities[id] = e
	}
	if e.Name() != name {
		e.SetName(name)
	}

	if err := r.index.load(); err != nil {
		r.log.Warnf("Unable to reread index, keeping cached copy: %v", err)
	}
	if r.index.set(id, name) {
		if err := r.index.save(); err != nil {
			r.log.Errorf("Unable to write index: %v", err)
		}
	}

	return e
}

// Get returns the live entity for id without touching disk.
func (r *Registry[E]) Get(id int64) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// IndexName returns the display name recorded in the index for id.
func (r *Registry[E]) IndexName(id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.name(id)
}

// Known returns every numeric identity in the index, including the ones not
// live in this process.
func (r *Registry[E]) Known() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.index.ids()
	slices.Sort(ids)
	return ids
}

// Len returns the number of live entities.
func (r *Registry[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// SaveAll saves every live entity in identity order. A failing entity does
// not stop the others; all failures are returned joined.
func (r *Registry[E]) SaveAll() error {
	r.mu.RLock()
	ids := slices.Sorted(maps.Keys(r.entities))
	entities := make([]E, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, r.entities[id])
	}
	r.mu.RUnlock()

	r.log.Infof("Saving %d records", len(entities))

	var errs []error
	for _, e := range entities {
		if err := e.Save(); err != nil {
			r.log.Errorf("Unable to save record %d: %v", e.ID(), err)
			errs = append(errs, err)
		}
	}

	r.log.Infof("Saved %d of %d records", len(entities)-len(errs), len(entities))
	return stderrors.Join(errs...)
}
