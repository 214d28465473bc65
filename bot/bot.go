package bot

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/31Zeta/zeta-bot/config"
	"github.com/31Zeta/zeta-bot/logger"
	"github.com/31Zeta/zeta-bot/registry"
)

var (
	Version    = "0.1.0"
	UpdateTime = "2024.10.15"
	Author     = "31Zeta"
)

// ErrLogin is returned by Start when the gateway rejects the session.
var ErrLogin = errors.New("login failed")

type (
	Bot struct {
		session          *discordgo.Session
		cfg              *config.Config
		log              *logger.Logger
		guilds           *registry.Registry[*registry.Guild]
		members          *registry.Registry[*registry.Member]
		perms            *registry.Resolver
		commands         map[string]command
		recorders        map[string]*recorder // guildID -> active recording
		registeredCmdIds map[string][]*discordgo.ApplicationCommand // guildID -> commands
		mu               sync.RWMutex
		debounceInterval time.Duration
		debouncers       map[string]*debouncer // key: guildID
		debounceMu       sync.Mutex
		scheduler        *cron.Cron
		schedulerOnce    sync.Once
		restarter        Restarter
		startedAt        time.Time
	}

	debouncer struct {
		timer *time.Timer
		mu    sync.Mutex
	}
)

// NewBot creates the Discord session and opens the guild and member
// registries under the configured data root.
func NewBot(cfg *config.Config, log *logger.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	bot, err := newBot(dg, cfg, log)
	if err != nil {
		return nil, err
	}

	// Ready handler registers commands in the bot's guilds and starts the scheduler
	dg.AddHandler(bot.ready)
	dg.AddHandler(bot.guildCreate)
	dg.AddHandler(bot.messageCreate)

	// Voice state update handler (Notified when anyone joins, leaves, or moves voice channels)
	dg.AddHandler(bot.voiceStateUpdate)

	// Interaction create handler (Handles slash commands and component interactions)
	dg.AddHandler(bot.interactionCreate)

	return bot, nil
}

func newBot(dg *discordgo.Session, cfg *config.Config, log *logger.Logger) (*Bot, error) {
	owner, err := cfg.OwnerID()
	if err != nil {
		return nil, err
	}

	guilds, err := registry.New[*registry.Guild](cfg.GuildRoot(), registry.GuildIndexFile,
		registry.NewGuild, log.WithPrefix("[Guild Library]"))
	if err != nil {
		return nil, errors.Wrap(err, "opening guild registry")
	}

	members, err := registry.New[*registry.Member](cfg.MemberRoot(), registry.MemberIndexFile,
		registry.NewMemberConstructor(cfg.DefaultGroup), log.WithPrefix("[Member Library]"))
	if err != nil {
		return nil, errors.Wrap(err, "opening member registry")
	}

	bot := &Bot{
		session:          dg,
		cfg:              cfg,
		log:              log,
		guilds:           guilds,
		members:          members,
		perms:            registry.NewResolver(owner, cfg.DefaultGroup, cfg.Groups, members),
		recorders:        make(map[string]*recorder),
		registeredCmdIds: make(map[string][]*discordgo.ApplicationCommand),
		debounceInterval: 2 * time.Second,
		debouncers:       make(map[string]*debouncer),
		restarter:        execRestarter{},
		startedAt:        time.Now(),
	}
	bot.commands = bot.commandTable()

	return bot, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return errors.Wrapf(ErrLogin, "%v", err)
	}
	return nil
}

// Stop flushes every record to disk, leaves voice and unregisters the
// commands before closing the session.
func (b *Bot) Stop() {
	b.mu.RLock()
	scheduler := b.scheduler
	b.mu.RUnlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	b.mu.RLock()
	active := make([]string, 0, len(b.recorders))
	for guildID := range b.recorders {
		active = append(active, guildID)
	}
	b.mu.RUnlock()
	for _, guildID := range active {
		b.finishRecording(b.session, guildID)
	}

	b.saveAll()

	b.session.RLock()
	connections := make([]*discordgo.VoiceConnection, 0, len(b.session.VoiceConnections))
	for _, vc := range b.session.VoiceConnections {
		connections = append(connections, vc)
	}
	b.session.RUnlock()
	for _, vc := range connections {
		b.log.Debugf("Closing connection to voice channel %s...", vc.ChannelID)
		if err := vc.Disconnect(); err != nil {
			b.log.Warnf("Failed to leave voice channel %s: %v", vc.ChannelID, err)
		}
	}

	// Unregister all commands from all guilds
	b.mu.RLock()
	for guildId, commands := range b.registeredCmdIds {
		for _, cmd := range commands {
			err := b.session.ApplicationCommandDelete(b.session.State.User.ID, guildId, cmd.ID)
			if err != nil {
				b.log.Warnf("Failed to delete command %v in guild %v: %v", cmd.Name, guildId, err)
			}
		}
	}
	b.mu.RUnlock()

	b.session.Close()
}

// saveAll flushes both registries, logging but not stopping on failures.
func (b *Bot) saveAll() {
	if err := b.guilds.SaveAll(); err != nil {
		b.log.Errorf("Some guild records were not saved: %v", err)
	}
	if err := b.members.SaveAll(); err != nil {
		b.log.Errorf("Some member records were not saved: %v", err)
	}
}

func (b *Bot) registerCommands(s *discordgo.Session, guildId string) {
	defs := make([]*discordgo.ApplicationCommand, 0, len(b.commands))
	for _, name := range commandOrder {
		defs = append(defs, b.commands[name].def)
	}

	registered, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildId, defs)
	if err != nil {
		b.log.Errorf("Cannot register commands in guild %v: %v", guildId, err)
		return
	}

	// Store registered command IDs for cleanup
	b.mu.Lock()
	b.registeredCmdIds[guildId] = registered
	b.mu.Unlock()
}

// guildLog returns the logger tagged with the guild's name.
func (b *Bot) guildLog(guildName string) *logger.Logger {
	return b.log.WithPrefix(guildName)
}

// getChannelName fetches the channel name or returns the ID if fetching fails
func (b *Bot) getChannelName(s *discordgo.Session, channelID string) string {
	if channel, err := s.State.Channel(channelID); err == nil {
		return channel.Name
	}
	channel, err := s.Channel(channelID)
	if err == nil {
		return channel.Name
	}
	return channelID
}
