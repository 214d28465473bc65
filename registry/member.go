package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/31Zeta/zeta-bot/logger"
)

// MemberIndexFile is the index file name inside the member root.
const MemberIndexFile = "#Members.json"

// Member is the record of one Discord user.
type Member struct {
	id    int64
	name  string
	group string

	file *jsonFile
	mu   sync.RWMutex
}

type memberRecord struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// NewMemberConstructor returns a Constructor giving new members defaultGroup.
func NewMemberConstructor(defaultGroup string) Constructor[*Member] {
	return func(id int64, name, root string, log *logger.Logger) *Member {
		m := &Member{
			id:    id,
			name:  name,
			group: defaultGroup,
			file:  newJSONFile(RecordPath(root, id)),
		}
		restore(m, log)
		log.Debugf("Member record ready: %s [%s]", m.Name(), m.Group())
		return m
	}
}

func (m *Member) String() string {
	return m.Name()
}

func (m *Member) ID() int64 {
	return m.id
}

func (m *Member) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

func (m *Member) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

func (m *Member) Group() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.group
}

func (m *Member) SetGroup(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.group = group
}

func (m *Member) Load() error {
	var rec memberRecord
	if err := m.file.decode(&rec, "id", "name", "group"); err != nil {
		return err
	}
	if rec.ID != m.id {
		return errors.Wrapf(ErrMalformed, "record holds id %d", rec.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = rec.Name
	m.group = rec.Group
	return nil
}

func (m *Member) Save() error {
	m.mu.RLock()
	rec := memberRecord{ID: m.id, Name: m.name, Group: m.group}
	m.mu.RUnlock()

	return m.file.write(rec)
}
