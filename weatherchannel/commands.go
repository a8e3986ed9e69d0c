package weatherchannel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

const rawDumpLimit = 1900

// AddCommands returns the slash commands this cog registers.
func (svc *Service) AddCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "weather",
			Description: "Weather reports for the server's cities",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "now",
					Description: "Current weather",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "city", Description: "A city name, or everywhere"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "raw",
					Description: "Current weather as raw data",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "city", Description: "A city name, or everywhere"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setchannel",
					Description: "Set the daily report channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "The channel to post in", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "schedule",
					Description: "Set the daily report time",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "Time of day as HH:MM", Required: true},
					},
				},
			},
		},
	}
}

// HandleWeather dispatches the /weather command tree.
func (svc *Service) HandleWeather(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		respond(s, i, "Unknown subcommand.")
		return
	}
	sub := options[0]

	switch sub.Name {
	case "now":
		svc.handleNow(ctx, s, i, optString(sub.Options, "city"), false)
	case "raw":
		svc.handleNow(ctx, s, i, optString(sub.Options, "city"), true)
	case "setchannel":
		reply, err := svc.handleSetChannel(ctx, i, sub.Options)
		svc.reply(s, i, sub.Name, reply, err)
	case "schedule":
		reply, err := svc.handleSchedule(ctx, i, sub.Options)
		svc.reply(s, i, sub.Name, reply, err)
	default:
		respond(s, i, "Unknown subcommand.")
	}
}

func (svc *Service) reply(s *discordgo.Session, i *discordgo.InteractionCreate, sub, reply string, err error) {
	if err != nil {
		metrics.DiscordCommandErrors.WithLabelValues("weather").Inc()
		svc.logger.Error("error handling weather command", "subcommand", sub, "error", err.Error())
		reply = "Something went wrong. Try again in a moment."
	}
	respond(s, i, reply)
}

// handleNow defers the interaction while the providers are queried, then
// follows up with either the embed or a raw JSON dump.
func (svc *Service) handleNow(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, city string, raw bool) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		svc.logger.Error("error deferring weather command", "error", err.Error())
		return
	}

	reports, err := svc.FetchReports(ctx, city)
	if err != nil {
		svc.followUp(s, i, &discordgo.WebhookParams{Content: fmt.Sprintf("Could not fetch weather: %s", err)})
		return
	}

	if raw {
		dump, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			svc.followUp(s, i, &discordgo.WebhookParams{Content: "Could not encode the reports."})
			return
		}
		svc.followUp(s, i, &discordgo.WebhookParams{
			Content: fmt.Sprintf("```json\n%s\n```", llm.Truncate(string(dump), rawDumpLimit)),
		})
		return
	}

	summary := svc.summarizer.Summarize(ctx, reports)
	svc.followUp(s, i, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{BuildEmbed(reports, summary)},
	})
}

func (svc *Service) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		svc.logger.Error("error sending weather followup", "error", err.Error())
		return
	}
	metrics.DiscordMessageSent.Add(1)
}

func (svc *Service) handleSetChannel(ctx context.Context, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	channel := optChannel(opts, "channel")
	if channel == nil {
		return "Pick a channel.", nil
	}
	err := svc.store.Update(ctx, i.GuildID, CogName, func(doc config.Document) error {
		doc["channel_id"] = channel.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Daily weather will post in <#%s>.", channel.ID), nil
}

func (svc *Service) handleSchedule(ctx context.Context, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	clock := optString(opts, "time")
	if _, err := ParseSchedule(clock); err != nil {
		return fmt.Sprintf("%q is not a valid time. Use HH:MM, like 08:00.", clock), nil
	}
	err := svc.store.Update(ctx, i.GuildID, CogName, func(doc config.Document) error {
		doc["schedule"] = clock
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Daily weather scheduled for %s.", clock), nil
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Default().Error("error responding to interaction", "error", err.Error())
		return
	}
	metrics.DiscordMessageSent.Add(1)
}

func optString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func optChannel(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.Channel {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.ChannelValue(nil)
		}
	}
	return nil
}
