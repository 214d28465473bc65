package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

var errNotInVoice = errors.New("caller is not in a voice channel")

type voiceStatus int

const (
	voiceDisconnected voiceStatus = iota
	voiceIdle
	voiceRecording
)

func (v voiceStatus) String() string {
	switch v {
	case voiceIdle:
		return "Idle"
	case voiceRecording:
		return "Recording"
	default:
		return "Not connected"
	}
}

// voiceConnection returns the bot's live voice connection in guildID.
func (b *Bot) voiceConnection(s *discordgo.Session, guildID string) *discordgo.VoiceConnection {
	s.RLock()
	defer s.RUnlock()
	vc, ok := s.VoiceConnections[guildID]
	if !ok || vc == nil {
		return nil
	}
	return vc
}

func (b *Bot) voiceStatus(s *discordgo.Session, guildID string) voiceStatus {
	b.mu.RLock()
	_, recording := b.recorders[guildID]
	b.mu.RUnlock()

	switch {
	case recording:
		return voiceRecording
	case b.voiceConnection(s, guildID) != nil:
		return voiceIdle
	default:
		return voiceDisconnected
	}
}

// join connects to channelID, or to the caller's voice channel when it is
// empty, moving the existing connection if there is one. announce controls
// whether the result is posted through r.
func (b *Bot) join(s *discordgo.Session, r *reply, req *Request, channelID string, announce bool) (*discordgo.VoiceConnection, error) {
	log := b.guildLog(req.GuildName)

	if channelID == "" {
		if req.VoiceChannelID == "" {
			log.Infof("Cannot join: %s is not in a voice channel", req.UserName)
			if err := r.Send("You are not in a voice channel"); err != nil {
				log.Warnf("Unable to reply: %v", err)
			}
			return nil, errNotInVoice
		}
		channelID = req.VoiceChannelID
	}
	channelName := b.getChannelName(s, channelID)

	// Connecting can take longer than the interaction deadline.
	if err := r.Defer(); err != nil {
		log.Warnf("Unable to defer reply: %v", err)
	}

	vc := b.voiceConnection(s, req.GuildID)
	if vc == nil {
		var err error
		vc, err = s.ChannelVoiceJoin(req.GuildID, channelID, false, false)
		if err != nil {
			if vc != nil {
				vc.Disconnect()
			}
			return nil, errors.Wrapf(err, "joining %s", channelName)
		}
		if announce {
			if err := r.Send(fmt.Sprintf("Joined voice channel: -> ***%s***", channelName)); err != nil {
				log.Warnf("Unable to reply: %v", err)
			}
		}
	} else {
		previous := b.getChannelName(s, vc.ChannelID)
		if err := vc.ChangeChannel(channelID, false, false); err != nil {
			return nil, errors.Wrapf(err, "moving to %s", channelName)
		}
		if announce {
			if err := r.Send(fmt.Sprintf("Moved voice channel: ***%s*** -> ***%s***", previous, channelName)); err != nil {
				log.Warnf("Unable to reply: %v", err)
			}
		}
	}

	log.Infof("Joined voice channel %s", channelName)
	b.refreshGuildView(req.Guild)
	return vc, nil
}

// leave disconnects from the guild's voice channel, finishing any
// recording in progress.
func (b *Bot) leave(s *discordgo.Session, r *reply, req *Request) error {
	log := b.guildLog(req.GuildName)

	vc := b.voiceConnection(s, req.GuildID)
	if vc == nil {
		b.refreshGuildView(req.Guild)
		return r.Send(fmt.Sprintf("%s is not connected to any voice channel", b.cfg.BotName))
	}

	channelName := b.getChannelName(s, vc.ChannelID)

	b.mu.RLock()
	_, recording := b.recorders[req.GuildID]
	b.mu.RUnlock()
	if recording {
		// finishRecording disconnects once the files are collected.
		b.finishRecording(s, req.GuildID)
	} else if err := vc.Disconnect(); err != nil {
		return errors.Wrapf(err, "leaving %s", channelName)
	}

	log.Infof("Left voice channel %s", channelName)
	b.refreshGuildView(req.Guild)
	return r.Send(fmt.Sprintf("Left voice channel: <- ***%s***", channelName))
}

// refreshGuildView redraws the status panel of a live guild.
func (b *Bot) refreshGuildView(guild int64) {
	g, ok := b.guilds.Get(guild)
	if !ok {
		return
	}
	if err := g.RefreshListView(); err != nil {
		b.guildLog(g.Name()).Warnf("Unable to refresh status panel: %v", err)
	}
}
