package bot

import (
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/31Zeta/zeta-bot/config"
)

// Restarter replaces the running process with a fresh copy of itself.
type Restarter interface {
	Restart() error
}

type execRestarter struct{}

// newScheduler builds the daily reboot schedule in the configured time
// zone. remind is only scheduled when the reminder is enabled.
func newScheduler(cfg *config.Config, reboot, remind func()) (*cron.Cron, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	at, err := config.ParseClock(cfg.ARTime)
	if err != nil {
		return nil, errors.Wrap(err, "ar_time")
	}
	if _, err := c.AddFunc(at.CronSpec(), reboot); err != nil {
		return nil, errors.Wrap(err, "scheduling reboot")
	}

	if cfg.ARReminder {
		remindAt, err := config.ParseClock(cfg.ARReminderTime)
		if err != nil {
			return nil, errors.Wrap(err, "ar_reminder_time")
		}
		if _, err := c.AddFunc(remindAt.CronSpec(), remind); err != nil {
			return nil, errors.Wrap(err, "scheduling reboot reminder")
		}
	}
	return c, nil
}

// autoReboot saves everything, tells the guilds the bot is in voice with,
// and restarts the process. It runs as a scheduler job, so it must not wait
// for the scheduler to stop.
func (b *Bot) autoReboot() {
	b.log.Info("Running scheduled reboot")

	b.mu.RLock()
	active := make([]string, 0, len(b.recorders))
	for guildID := range b.recorders {
		active = append(active, guildID)
	}
	b.mu.RUnlock()

	if b.cfg.ARAnnouncement {
		b.announce(fmt.Sprintf("%s Starting scheduled reboot", time.Now().Format(time.DateTime)))
	}
	for _, guildID := range active {
		b.finishRecording(b.session, guildID)
	}
	b.saveAll()

	if err := b.session.Close(); err != nil {
		b.log.Warnf("Unable to close session before reboot: %v", err)
	}
	if err := b.restarter.Restart(); err != nil {
		b.log.Errorf("Reboot failed: %v", err)
	}
}

func (b *Bot) autoRebootReminder() {
	b.log.Info("Sending reboot reminder")
	b.announce(fmt.Sprintf("Note: %s will reboot at %s", b.cfg.BotName, b.cfg.ARTime))
}

// announce posts content to the first text channel of every guild the bot
// has a voice connection in.
func (b *Bot) announce(content string) {
	s := b.session

	s.RLock()
	guildIDs := make([]string, 0, len(s.VoiceConnections))
	for guildID := range s.VoiceConnections {
		guildIDs = append(guildIDs, guildID)
	}
	s.RUnlock()

	for _, guildID := range guildIDs {
		channelID, ok := firstTextChannel(s, guildID)
		if !ok {
			b.log.Warnf("Guild %s has no text channel to announce in", guildID)
			continue
		}
		if _, err := s.ChannelMessageSend(channelID, content); err != nil {
			b.log.Warnf("Unable to announce in guild %s: %v", guildID, err)
		}
	}
}

// firstTextChannel returns the top-most text channel of the guild.
func firstTextChannel(s *discordgo.Session, guildID string) (string, bool) {
	g, err := s.State.Guild(guildID)
	if err != nil {
		return "", false
	}

	s.State.RLock()
	text := make([]*discordgo.Channel, 0, len(g.Channels))
	for _, c := range g.Channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			text = append(text, c)
		}
	}
	s.State.RUnlock()

	if len(text) == 0 {
		return "", false
	}
	first := slices.MinFunc(text, func(a, b *discordgo.Channel) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return first.ID, true
}
