package bot

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Infof("Logged in as %s (%s)", r.User.Username, r.User.ID)

	if err := s.UpdateGameStatus(0, b.cfg.DefaultActivity); err != nil {
		b.log.Warnf("Unable to set activity: %v", err)
	}

	for _, guild := range r.Guilds {
		b.registerCommands(s, guild.ID)
	}

	b.schedulerOnce.Do(func() {
		if !b.cfg.AutoReboot {
			return
		}
		scheduler, err := newScheduler(b.cfg, b.autoReboot, b.autoRebootReminder)
		if err != nil {
			b.log.Errorf("Auto reboot is disabled: %v", err)
			return
		}
		b.mu.Lock()
		b.scheduler = scheduler
		b.mu.Unlock()
		scheduler.Start()
		b.log.Infof("Auto reboot scheduled daily at %s (%s)", b.cfg.ARTime, b.cfg.ARTimezone)
	})
}

// guildCreate runs for every guild at startup and whenever the bot is added
// to a new one.
func (b *Bot) guildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	id, ok := parseID(g.ID)
	if !ok {
		return
	}
	b.guilds.Ensure(id, g.Name)

	b.mu.RLock()
	_, registered := b.registeredCmdIds[g.ID]
	b.mu.RUnlock()
	if !registered {
		b.registerCommands(s, g.ID)
	}
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if b.cfg.BotName == "" || !strings.HasPrefix(m.Content, b.cfg.BotName) {
		return
	}
	if err := channelReply(s, m.ChannelID).Send("I'm here"); err != nil {
		b.log.Warnf("Unable to answer message in %s: %v", m.ChannelID, err)
	}
}

func (b *Bot) voiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	guild, ok := parseID(vsu.GuildID)
	if !ok {
		return
	}

	// Keep the names of known members current
	if member := vsu.Member; member != nil && member.User != nil && !member.User.Bot {
		if id, ok := parseID(member.User.ID); ok {
			if m, live := b.members.Get(id); live && m.Name() != memberName(member) {
				b.members.Ensure(id, memberName(member))
			}
		}
	}

	if vsu.UserID == s.State.User.ID {
		// The bot itself was disconnected
		if vsu.ChannelID == "" {
			b.finishRecording(s, vsu.GuildID)
		}
	} else if vc := b.voiceConnection(s, vsu.GuildID); vc != nil && b.channelEmpty(s, vsu.GuildID, vc.ChannelID) {
		if b.finishRecording(s, vsu.GuildID) {
			b.log.Infof("Everyone left %s, recording stopped", b.getChannelName(s, vc.ChannelID))
		}
	}

	b.debounceRefresh(guild, vsu.GuildID)
}

// channelEmpty reports whether no one but the bot is in channelID.
func (b *Bot) channelEmpty(s *discordgo.Session, guildID, channelID string) bool {
	g, err := s.State.Guild(guildID)
	if err != nil {
		return false
	}

	s.State.RLock()
	defer s.State.RUnlock()
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != s.State.User.ID {
			return false
		}
	}
	return true
}

// debounceRefresh redraws the guild's status panel once voice activity has
// been quiet for debounceInterval.
func (b *Bot) debounceRefresh(guild int64, guildID string) {
	b.debounceMu.Lock()
	deb, exists := b.debouncers[guildID]
	if !exists {
		deb = &debouncer{}
		b.debouncers[guildID] = deb
	}
	b.debounceMu.Unlock()

	deb.mu.Lock()
	defer deb.mu.Unlock()

	if deb.timer != nil {
		deb.timer.Stop()
	}

	deb.timer = time.AfterFunc(b.debounceInterval, func() {
		b.refreshGuildView(guild)

		b.debounceMu.Lock()
		delete(b.debouncers, guildID)
		b.debounceMu.Unlock()
	})
}
