package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/31Zeta/zeta-bot/logger"
)

const (
	// GuildIndexFile is the index file name inside the guild root.
	GuildIndexFile = "#Guilds.json"

	// ListView is the name under which the interactive status panel of a
	// guild is attached.
	ListView = "list_view"

	DefaultVoiceVolume = 100.0
	MaxVoiceVolume     = 200.0
)

// View is an interactive display attached to a guild that can be redrawn.
type View interface {
	Refresh() error
}

// Guild is the record of one Discord server.
type Guild struct {
	id     int64
	name   string
	volume float64
	views  map[string]View

	file *jsonFile
	mu   sync.RWMutex
}

type guildRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewGuild builds the guild record for id and restores it from root.
func NewGuild(id int64, name, root string, log *logger.Logger) *Guild {
	g := &Guild{
		id:     id,
		name:   name,
		volume: DefaultVoiceVolume,
		views:  make(map[string]View),
		file:   newJSONFile(RecordPath(root, id)),
	}
	restore(g, log)
	log.Infof("Guild record ready: %s", g.Name())
	return g
}

func (g *Guild) String() string {
	return g.Name()
}

func (g *Guild) ID() int64 {
	return g.id
}

func (g *Guild) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

func (g *Guild) SetName(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.name = name
}

// VoiceVolume is kept in memory only and resets on restart.
func (g *Guild) VoiceVolume() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.volume
}

// SetVoiceVolume clamps volume to [0, MaxVoiceVolume].
func (g *Guild) SetVoiceVolume(volume float64) {
	switch {
	case volume < 0:
		volume = 0
	case volume > MaxVoiceVolume:
		volume = MaxVoiceVolume
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.volume = volume
}

// AttachView registers v under name, replacing any previous view.
func (g *Guild) AttachView(name string, v View) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.views[name] = v
}

func (g *Guild) DetachView(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.views, name)
}

// ActiveView returns the view attached under name.
func (g *Guild) ActiveView(name string) (View, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.views[name]
	return v, ok && v != nil
}

// RefreshListView redraws the attached list view, if any.
func (g *Guild) RefreshListView() error {
	v, ok := g.ActiveView(ListView)
	if !ok {
		return nil
	}
	return v.Refresh()
}

func (g *Guild) Load() error {
	var rec guildRecord
	if err := g.file.decode(&rec, "id", "name"); err != nil {
		return err
	}
	if rec.ID != g.id {
		return errors.Wrapf(ErrMalformed, "record holds id %d", rec.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.name = rec.Name
	return nil
}

func (g *Guild) Save() error {
	g.mu.RLock()
	rec := guildRecord{ID: g.id, Name: g.name}
	g.mu.RUnlock()

	return g.file.write(rec)
}
