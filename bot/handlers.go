package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/31Zeta/zeta-bot/registry"
)

func (b *Bot) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	content := fmt.Sprintf("**%s [v%s]**\n"+
		"   Running on discordgo v%s\n"+
		"   Last updated: %s\n"+
		"   Author: %s\n"+
		"   Up for: %s",
		b.cfg.BotName, Version, discordgo.VERSION, UpdateTime, Author,
		time.Since(b.startedAt).Round(time.Second))
	return newReply(s, i).Send(content)
}

func (b *Bot) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	var channelID string
	if opt, ok := optionMap(i)["channel"]; ok {
		channelID = opt.ChannelValue(nil).ID
	}

	_, err := b.join(s, newReply(s, i), req, channelID, true)
	if errors.Is(err, errNotInVoice) {
		return nil
	}
	return err
}

func (b *Bot) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	r := newReply(s, i)
	// Leaving while recording uploads the audio first.
	if err := r.Defer(); err != nil {
		b.guildLog(req.GuildName).Warnf("Unable to defer reply: %v", err)
	}
	return b.leave(s, r, req)
}

func (b *Bot) handleRecord(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	r := newReply(s, i)
	log := b.guildLog(req.GuildName)

	vc := b.voiceConnection(s, req.GuildID)
	if vc == nil {
		log.Infof("Not in a voice channel, joining before recording")
		var err error
		vc, err = b.join(s, r, req, "", false)
		if errors.Is(err, errNotInVoice) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	rec, ok := b.startRecording(req.Guild, req.GuildID, req.ChannelID, vc)
	if !ok {
		return r.Send("Already recording")
	}

	channelName := b.getChannelName(s, vc.ChannelID)
	log.Infof("Recording %s started in %s", rec.id, channelName)
	b.refreshGuildView(req.Guild)
	return r.Append(fmt.Sprintf("Recording ***%s***, use /stoprecord to finish", channelName))
}

func (b *Bot) handleStopRecord(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	r := newReply(s, i)
	if err := r.Defer(); err != nil {
		b.guildLog(req.GuildName).Warnf("Unable to defer reply: %v", err)
	}

	if !b.finishRecording(s, req.GuildID) {
		return r.Send("Not recording")
	}
	return r.Send("Recording stopped")
}

func (b *Bot) handleVolume(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	opt, ok := optionMap(i)["level"]
	if !ok {
		return errors.New("missing level option")
	}

	g := b.guilds.Ensure(req.Guild, req.GuildName)
	g.SetVoiceVolume(float64(opt.IntValue()))
	b.refreshGuildView(req.Guild)

	b.guildLog(req.GuildName).Infof("Voice volume set to %.0f%%", g.VoiceVolume())
	return newReply(s, i).Send(fmt.Sprintf("Voice volume set to **%.0f%%**", g.VoiceVolume()))
}

func (b *Bot) handleGroup(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	opts := optionMap(i)
	userOpt, ok := opts["user"]
	if !ok {
		return errors.New("missing user option")
	}
	groupOpt, ok := opts["group"]
	if !ok {
		return errors.New("missing group option")
	}

	targetID := userOpt.UserValue(nil).ID
	target, ok := parseID(targetID)
	if !ok {
		return errors.Errorf("user id %q", targetID)
	}
	group := groupOpt.StringValue()
	r := newReply(s, i).Ephemeral()

	b.members.Ensure(target, resolvedName(i, targetID))
	err := b.perms.SetGroup(target, group)
	switch {
	case errors.Is(err, registry.ErrUnknownGroup):
		return r.Send(fmt.Sprintf("There is no group named `%s`", group))
	case err != nil:
		return err
	}

	b.guildLog(req.GuildName).Infof("%s moved <@%s> into group %s", req.UserName, targetID, group)
	return r.Send(fmt.Sprintf("<@%s> is now in group `%s`", targetID, group))
}

// resolvedName returns the display name of a user passed as an option.
func resolvedName(i *discordgo.InteractionCreate, userID string) string {
	resolved := i.ApplicationCommandData().Resolved
	if resolved == nil {
		return userID
	}

	user := resolved.Users[userID]
	if m, ok := resolved.Members[userID]; ok && m != nil {
		member := *m
		member.User = user
		if name := memberName(&member); name != "" {
			return name
		}
	}
	if user != nil {
		return memberName(&discordgo.Member{User: user})
	}
	return userID
}

func (b *Bot) handleSave(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	r := newReply(s, i).Ephemeral()
	if err := r.Defer(); err != nil {
		b.guildLog(req.GuildName).Warnf("Unable to defer reply: %v", err)
	}

	guildErr := b.guilds.SaveAll()
	memberErr := b.members.SaveAll()
	if guildErr != nil || memberErr != nil {
		return r.Send("Some records could not be saved, see the log for details")
	}
	return r.Send(fmt.Sprintf("Saved %d guild and %d member records", b.guilds.Len(), b.members.Len()))
}
