package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type handlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate, req *Request) error

// command pairs a slash command definition with its handler. The command
// name doubles as the operation name checked against the permission table.
type command struct {
	def    *discordgo.ApplicationCommand
	handle handlerFunc
}

// commandOrder is the registration order of the slash commands.
var commandOrder = []string{
	"info", "join", "leave", "record", "stoprecord",
	"panel", "refresh", "volume", "group", "save",
}

func (b *Bot) commandTable() map[string]command {
	dmPermission := false
	botName := b.cfg.BotName
	volumeMin := 0.0

	groupChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0)
	for _, group := range b.perms.Groups() {
		if len(groupChoices) == 25 {
			break
		}
		groupChoices = append(groupChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  group,
			Value: group,
		})
	}

	return map[string]command{
		"info": {
			def: &discordgo.ApplicationCommand{
				Name:         "info",
				Description:  fmt.Sprintf("About %s", botName),
				DMPermission: &dmPermission,
			},
			handle: b.handleInfo,
		},
		"join": {
			def: &discordgo.ApplicationCommand{
				Name:         "join",
				Description:  fmt.Sprintf("Make %s join your voice channel or the given one", botName),
				DMPermission: &dmPermission,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The voice channel to join, defaults to the one you are in",
						Required:    false,
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildVoice,
							discordgo.ChannelTypeGuildStageVoice,
						},
					},
				},
			},
			handle: b.handleJoin,
		},
		"leave": {
			def: &discordgo.ApplicationCommand{
				Name:         "leave",
				Description:  fmt.Sprintf("Make %s leave its voice channel", botName),
				DMPermission: &dmPermission,
			},
			handle: b.handleLeave,
		},
		"record": {
			def: &discordgo.ApplicationCommand{
				Name:         "record",
				Description:  "[Admin] Start recording the voice channel",
				DMPermission: &dmPermission,
			},
			handle: b.handleRecord,
		},
		"stoprecord": {
			def: &discordgo.ApplicationCommand{
				Name:         "stoprecord",
				Description:  "[Admin] Stop recording and upload the audio",
				DMPermission: &dmPermission,
			},
			handle: b.handleStopRecord,
		},
		"panel": {
			def: &discordgo.ApplicationCommand{
				Name:         "panel",
				Description:  "Post a status panel in this channel",
				DMPermission: &dmPermission,
			},
			handle: b.handlePanel,
		},
		"refresh": {
			def: &discordgo.ApplicationCommand{
				Name:         "refresh",
				Description:  "Refresh the status panel",
				DMPermission: &dmPermission,
			},
			handle: b.handleRefresh,
		},
		"volume": {
			def: &discordgo.ApplicationCommand{
				Name:         "volume",
				Description:  "Set the voice volume of this server",
				DMPermission: &dmPermission,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume in percent",
						Required:    true,
						MinValue:    &volumeMin,
						MaxValue:    200,
					},
				},
			},
			handle: b.handleVolume,
		},
		"group": {
			def: &discordgo.ApplicationCommand{
				Name:         "group",
				Description:  "[Admin] Move a user into a permission group",
				DMPermission: &dmPermission,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to move",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "group",
						Description: "The permission group",
						Required:    true,
						Choices:     groupChoices,
					},
				},
			},
			handle: b.handleGroup,
		},
		"save": {
			def: &discordgo.ApplicationCommand{
				Name:         "save",
				Description:  "[Admin] Write every guild and member record to disk",
				DMPermission: &dmPermission,
			},
			handle: b.handleSave,
		},
	}
}

// optionMap indexes the top-level options of a slash command by name.
func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}
