package bot

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

var errNotInGuild = errors.New("interaction did not come from a guild")

// Request is the normalized form of an incoming interaction that the
// command handlers and the permission check work with.
type Request struct {
	Guild     int64
	GuildID   string
	GuildName string

	User     int64
	UserID   string
	UserName string

	ChannelID      string
	VoiceChannelID string
	Command        string
}

func newRequest(s *discordgo.Session, i *discordgo.InteractionCreate) (*Request, error) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return nil, errNotInGuild
	}

	guild, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "guild id %q", i.GuildID)
	}
	user, err := strconv.ParseInt(i.Member.User.ID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "user id %q", i.Member.User.ID)
	}

	req := &Request{
		Guild:     guild,
		GuildID:   i.GuildID,
		GuildName: i.GuildID,
		User:      user,
		UserID:    i.Member.User.ID,
		UserName:  memberName(i.Member),
		ChannelID: i.ChannelID,
	}

	if g, err := s.State.Guild(i.GuildID); err == nil && g.Name != "" {
		req.GuildName = g.Name
	}
	if vs, err := s.State.VoiceState(i.GuildID, req.UserID); err == nil {
		req.VoiceChannelID = vs.ChannelID
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		req.Command = i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		req.Command = i.MessageComponentData().CustomID
	}

	return req, nil
}

// memberName picks the name shown in the guild: nickname, then global
// display name, then username.
func memberName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}
