package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/31Zeta/zeta-bot/registry"
)

// statusPanel is a message showing the bot's voice state in a guild. It is
// attached to the guild as its list view and edited in place on refresh.
type statusPanel struct {
	b         *Bot
	s         *discordgo.Session
	guild     int64
	guildID   string
	channelID string
	messageID string
}

func (p *statusPanel) Refresh() error {
	content := p.b.panelContent(p.s, p.guild, p.guildID)
	_, err := p.s.ChannelMessageEdit(p.channelID, p.messageID, content)
	return errors.Wrap(err, "editing status panel")
}

func (b *Bot) panelContent(s *discordgo.Session, guild int64, guildID string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", b.cfg.BotName)

	status := b.voiceStatus(s, guildID)
	fmt.Fprintf(&sb, "Status: %s\n", status)

	channel := "-"
	if vc := b.voiceConnection(s, guildID); vc != nil && vc.ChannelID != "" {
		channel = b.getChannelName(s, vc.ChannelID)
	}
	fmt.Fprintf(&sb, "Channel: %s\n", channel)

	volume := registry.DefaultVoiceVolume
	if g, ok := b.guilds.Get(guild); ok {
		volume = g.VoiceVolume()
	}
	fmt.Fprintf(&sb, "Volume: %.0f%%\n", volume)
	fmt.Fprintf(&sb, "Updated: <t:%d:T>", time.Now().Unix())
	return sb.String()
}

func panelComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Refresh",
					Style:    discordgo.SecondaryButton,
					CustomID: panelRefreshID,
				},
			},
		},
	}
}

func (b *Bot) handlePanel(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    b.panelContent(s, req.Guild, req.GuildID),
			Components: panelComponents(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "posting status panel")
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		return errors.Wrap(err, "fetching status panel")
	}

	g := b.guilds.Ensure(req.Guild, req.GuildName)
	g.AttachView(registry.ListView, &statusPanel{
		b:         b,
		s:         s,
		guild:     req.Guild,
		guildID:   req.GuildID,
		channelID: msg.ChannelID,
		messageID: msg.ID,
	})
	b.guildLog(req.GuildName).Infof("Status panel posted in %s", b.getChannelName(s, msg.ChannelID))
	return nil
}

func (b *Bot) handleRefresh(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error {
	r := newReply(s, i).Ephemeral()

	g := b.guilds.Ensure(req.Guild, req.GuildName)
	if _, ok := g.ActiveView(registry.ListView); !ok {
		return r.Send("There is no status panel yet, post one with /panel")
	}
	if err := g.RefreshListView(); err != nil {
		// The panel message is gone; forget it.
		g.DetachView(registry.ListView)
		b.guildLog(req.GuildName).Warnf("Dropped status panel: %v", err)
		return r.Send("The status panel could not be updated, post a new one with /panel")
	}
	return r.Send("Status panel refreshed")
}

// handlePanelButton redraws the panel the button belongs to.
func (b *Bot) handlePanelButton(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    b.panelContent(s, req.Guild, req.GuildID),
			Components: panelComponents(),
		},
	})
	if err != nil {
		b.guildLog(req.GuildName).Warnf("Unable to refresh status panel: %v", err)
	}
}
