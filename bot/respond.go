package bot

import (
	"github.com/bwmarrin/discordgo"
)

// reply is one message the bot is talking through. The first Send answers
// the interaction and later ones edit that answer; without an interaction
// it posts to channelID once and edits the posted message afterwards.
type reply struct {
	s           *discordgo.Session
	interaction *discordgo.Interaction
	channelID   string
	ephemeral   bool

	responded bool
	msg       *discordgo.Message
	content   string
}

func newReply(s *discordgo.Session, i *discordgo.InteractionCreate) *reply {
	return &reply{s: s, interaction: i.Interaction, channelID: i.ChannelID}
}

func channelReply(s *discordgo.Session, channelID string) *reply {
	return &reply{s: s, channelID: channelID}
}

// Ephemeral makes the interaction answer visible only to its caller.
func (r *reply) Ephemeral() *reply {
	r.ephemeral = true
	return r
}

// Defer acknowledges the interaction so a slow handler can answer later.
func (r *reply) Defer() error {
	if r.interaction == nil || r.responded {
		return nil
	}
	data := &discordgo.InteractionResponseData{}
	if r.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.s.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err == nil {
		r.responded = true
	}
	return err
}

// Send replaces the content of the reply, editing it if it was already sent.
func (r *reply) Send(content string) error {
	r.content = content

	switch {
	case r.interaction != nil && !r.responded:
		data := &discordgo.InteractionResponseData{Content: content}
		if r.ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		err := r.s.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
		if err == nil {
			r.responded = true
		}
		return err

	case r.interaction != nil:
		_, err := r.s.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{Content: &content})
		return err

	case r.msg != nil:
		_, err := r.s.ChannelMessageEdit(r.msg.ChannelID, r.msg.ID, content)
		return err

	default:
		msg, err := r.s.ChannelMessageSend(r.channelID, content)
		if err == nil {
			r.msg = msg
		}
		return err
	}
}

// Append adds a line below what was already sent.
func (r *reply) Append(line string) error {
	if r.content == "" {
		return r.Send(line)
	}
	return r.Send(r.content + "\n" + line)
}
