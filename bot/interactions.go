package bot

import (
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
)

const (
	panelRefreshID = "panel_refresh"

	permissionDenied = "Permission denied"
	genericFailure   = "An error occurred while running this command"
)

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer b.recoverInteraction(s, i)

	req, err := newRequest(s, i)
	if err != nil {
		b.log.Debugf("Ignoring interaction %s: %v", i.ID, err)
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		cmd, ok := b.commands[req.Command]
		if !ok {
			b.log.Warnf("Unknown command /%s", req.Command)
			b.fail(s, i)
			return
		}
		if !b.commandCheck(s, i, req) {
			return
		}
		if err := cmd.handle(s, i, req); err != nil {
			b.guildLog(req.GuildName).Errorf("/%s failed: %v", req.Command, err)
			b.fail(s, i)
		}

	case discordgo.InteractionMessageComponent:
		switch req.Command {
		case panelRefreshID:
			// The refresh button runs under the permission of /refresh.
			req.Command = "refresh"
			if !b.commandCheck(s, i, req) {
				return
			}
			b.handlePanelButton(s, i, req)
		default:
			b.log.Warnf("Unknown component %s", req.Command)
			b.fail(s, i)
		}
	}
}

// recoverInteraction keeps a panicking handler from taking the bot down.
func (b *Bot) recoverInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if r := recover(); r != nil {
		b.log.Errorf("Panic while handling interaction %s: %v\n%s", i.ID, r, debug.Stack())
		b.fail(s, i)
	}
}

// fail tells the caller something went wrong, whether or not the
// interaction was already answered.
func (b *Bot) fail(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: genericFailure,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}
	_, err = s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: genericFailure,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.log.Warnf("Unable to report failure of interaction %s: %v", i.ID, err)
	}
}

// commandCheck makes sure the caller and the guild have records, then
// applies the permission table. Denied callers get an ephemeral notice.
func (b *Bot) commandCheck(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) bool {
	b.members.Ensure(req.User, req.UserName)
	b.guilds.Ensure(req.Guild, req.GuildName)

	allowed, group := b.authorize(req)
	log := b.guildLog(req.GuildName)
	if allowed {
		log.Infof("%s [%s] used /%s", req.UserName, group, req.Command)
		return true
	}

	log.Warnf("%s [%s] was denied /%s", req.UserName, group, req.Command)
	if err := newReply(s, i).Ephemeral().Send(permissionDenied); err != nil {
		log.Warnf("Unable to send permission notice: %v", err)
	}
	return false
}

// authorize reports whether req may run and the group it was judged under.
func (b *Bot) authorize(req *Request) (bool, string) {
	if b.perms.IsOwner(req.User) {
		return true, "owner"
	}
	return b.perms.Allow(req.User, req.Command), b.perms.Group(req.User)
}
