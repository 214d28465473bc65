package registry

import (
	"slices"

	"github.com/pkg/errors"
)

// Resolver decides whether a member may run a named operation.
type Resolver struct {
	owner        int64
	defaultGroup string
	groups       map[string]map[string]struct{}
	members      *Registry[*Member]
}

// NewResolver builds a resolver from a group to allowed operations table.
// An owner of 0 means no owner is configured.
func NewResolver(owner int64, defaultGroup string, groups map[string][]string, members *Registry[*Member]) *Resolver {
	table := make(map[string]map[string]struct{}, len(groups))
	for group, ops := range groups {
		allowed := make(map[string]struct{}, len(ops))
		for _, op := range ops {
			allowed[op] = struct{}{}
		}
		table[group] = allowed
	}

	return &Resolver{
		owner:        owner,
		defaultGroup: defaultGroup,
		groups:       table,
		members:      members,
	}
}

func (r *Resolver) IsOwner(id int64) bool {
	return r.owner != 0 && id == r.owner
}

// Group returns the group of id, or the default group for members that are
// not live or have none set.
func (r *Resolver) Group(id int64) string {
	m, ok := r.members.Get(id)
	if !ok || m.Group() == "" {
		return r.defaultGroup
	}
	return m.Group()
}

// Allow reports whether id may run op. The owner may run everything; a
// group missing from the table is denied everything.
func (r *Resolver) Allow(id int64, op string) bool {
	if r.IsOwner(id) {
		return true
	}

	allowed, ok := r.groups[r.Group(id)]
	if !ok {
		return false
	}
	_, ok = allowed[op]
	return ok
}

// SetGroup moves a live member into group and saves the member record.
func (r *Resolver) SetGroup(id int64, group string) error {
	if _, ok := r.groups[group]; !ok {
		return errors.Wrap(ErrUnknownGroup, group)
	}

	m, ok := r.members.Get(id)
	if !ok {
		return errors.Wrapf(ErrUnknownMember, "%d", id)
	}

	m.SetGroup(group)
	return m.Save()
}

// Groups returns the configured group names in sorted order.
func (r *Resolver) Groups() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
