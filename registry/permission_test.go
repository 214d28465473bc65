package registry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerID = 1000

func newTestResolver(t *testing.T) (*Resolver, *Registry[*Member]) {
	t.Helper()

	members, err := New[*Member](t.TempDir(), MemberIndexFile, NewMemberConstructor("user"), testLogger())
	require.NoError(t, err)

	groups := map[string][]string{
		"admin":     {"info", "join", "leave", "record", "group"},
		"user":      {"info", "join", "leave"},
		"blacklist": {},
	}
	return NewResolver(ownerID, "user", groups, members), members
}

func TestOwnerIsAlwaysAllowed(t *testing.T) {
	r, members := newTestResolver(t)

	assert.True(t, r.Allow(ownerID, "record"))
	assert.True(t, r.Allow(ownerID, "anything-at-all"))

	members.Ensure(ownerID, "Owner")
	require.NoError(t, r.SetGroup(ownerID, "blacklist"))
	assert.True(t, r.Allow(ownerID, "info"))
}

func TestUnregisteredMemberUsesDefaultGroup(t *testing.T) {
	r, _ := newTestResolver(t)

	assert.Equal(t, "user", r.Group(55))
	assert.True(t, r.Allow(55, "join"))
	assert.False(t, r.Allow(55, "record"))
}

func TestGroupChangeTakesEffectImmediately(t *testing.T) {
	r, members := newTestResolver(t)
	m := members.Ensure(7, "Carol")

	assert.False(t, r.Allow(7, "record"))

	require.NoError(t, r.SetGroup(7, "admin"))
	assert.Equal(t, "admin", m.Group())
	assert.True(t, r.Allow(7, "record"))

	require.NoError(t, r.SetGroup(7, "blacklist"))
	assert.False(t, r.Allow(7, "info"))
}

func TestSetGroupPersists(t *testing.T) {
	r, members := newTestResolver(t)
	members.Ensure(8, "Dan")

	require.NoError(t, r.SetGroup(8, "admin"))

	reloaded := NewMemberConstructor("user")(8, "Dan", members.Root(), testLogger())
	assert.Equal(t, "admin", reloaded.Group())
}

func TestUnknownGroupIsDenied(t *testing.T) {
	r, members := newTestResolver(t)
	m := members.Ensure(9, "Eve")
	m.SetGroup("corrupted")

	assert.Equal(t, "corrupted", r.Group(9))
	assert.False(t, r.Allow(9, "info"))
}

func TestSetGroupRejectsUnknownTargets(t *testing.T) {
	r, members := newTestResolver(t)

	err := r.SetGroup(10, "admin")
	assert.True(t, errors.Is(err, ErrUnknownMember))

	members.Ensure(10, "Frank")
	err = r.SetGroup(10, "superuser")
	assert.True(t, errors.Is(err, ErrUnknownGroup))
}

func TestNoOwnerConfigured(t *testing.T) {
	members, err := New[*Member](t.TempDir(), MemberIndexFile, NewMemberConstructor("user"), testLogger())
	require.NoError(t, err)
	r := NewResolver(0, "user", map[string][]string{"user": {"info"}}, members)

	assert.False(t, r.IsOwner(0))
	assert.False(t, r.Allow(0, "join"))
	assert.Equal(t, []string{"user"}, r.Groups())
}
