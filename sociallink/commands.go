package sociallink

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// Commands is the slash-command surface over the score service.
type Commands struct {
	svc         *Service
	progression Progression
	logger      *logging.Logger
}

// NewCommands wires the cog's command surface.
func NewCommands(svc *Service, progression Progression, logger *logging.Logger) *Commands {
	if logger == nil {
		logger = logging.Default()
	}
	return &Commands{
		svc:         svc,
		progression: progression,
		logger:      logger.WithCog(CogName),
	}
}

// AddCommands returns the slash commands this cog registers.
func (c *Commands) AddCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "sociallink",
			Description: "Confidant ranks and journals",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "rank",
					Description: "Show your rank with another member",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to check", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "confidants",
					Description: "List your confidants, strongest bond first",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "journal",
					Description: "Keep notes about your confidants",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Write a journal entry about a confidant",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The confidant", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "entry", Description: "The entry text", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "view",
							Description: "Read your journal",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Only entries about this confidant"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "admin",
					Description: "Score maintenance",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "setscore",
							Description: "Set the score between two members",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionUser, Name: "first", Description: "First member", Required: true},
								{Type: discordgo.ApplicationCommandOptionUser, Name: "second", Description: "Second member", Required: true},
								{Type: discordgo.ApplicationCommandOptionInteger, Name: "score", Description: "New score", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "reset",
							Description: "Wipe a member's scores and journal",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to reset", Required: true},
							},
						},
					},
				},
			},
		},
	}
}

// HandleSociallink dispatches the /sociallink command tree.
func (c *Commands) HandleSociallink(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		respond(s, i, "Unknown subcommand.")
		return
	}
	sub := options[0]

	var reply string
	var err error
	switch sub.Name {
	case "rank":
		reply, err = c.handleRank(ctx, i, sub.Options)
	case "confidants":
		reply, err = c.handleConfidants(ctx, i)
	case "journal":
		reply, err = c.handleJournal(ctx, i, sub.Options)
	case "admin":
		if i.Member == nil || i.Member.Permissions&discordgo.PermissionManageServer == 0 {
			reply = "You need the Manage Server permission for that."
		} else {
			reply, err = c.handleAdmin(ctx, sub.Options)
		}
	default:
		reply = "Unknown subcommand."
	}
	if err != nil {
		metrics.DiscordCommandErrors.WithLabelValues("sociallink").Inc()
		c.logger.Error("error handling sociallink command", "subcommand", sub.Name, "error", err.Error())
		reply = "Something went wrong. Try again in a moment."
	}
	respond(s, i, reply)
}

func (c *Commands) handleRank(ctx context.Context, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	userID := callerID(i)
	other := optUser(opts, "member")
	if other == nil {
		return "Pick a member to check.", nil
	}
	score, err := c.svc.Score(ctx, userID, other.ID)
	if err != nil {
		return "", err
	}
	level := c.progression.Level(score)
	return fmt.Sprintf("Your bond with <@%s>: rank %d %s (%d points)", other.ID, level, c.progression.StarRating(level), score), nil
}

func (c *Commands) handleConfidants(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	confidants, err := c.svc.Confidants(ctx, callerID(i))
	if err != nil {
		return "", err
	}
	if len(confidants) == 0 {
		return "No confidants yet. Talk to people!", nil
	}
	var b strings.Builder
	b.WriteString("Your confidants:\n")
	for _, conf := range confidants {
		fmt.Fprintf(&b, "<@%s> — rank %d %s (%d points)\n", conf.UserID, conf.Level, c.progression.StarRating(conf.Level), conf.Score)
	}
	return b.String(), nil
}

func (c *Commands) handleJournal(ctx context.Context, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if len(opts) == 0 {
		return "Unknown subcommand.", nil
	}
	action := opts[0]
	userID := callerID(i)
	switch action.Name {
	case "add":
		member := optUser(action.Options, "member")
		entry := optString(action.Options, "entry")
		if member == nil || entry == "" {
			return "A journal entry needs a confidant and some text.", nil
		}
		written, err := c.svc.AddJournalEntry(ctx, userID, member.ID, entry)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Journal entry recorded about <@%s> at rank %d.", member.ID, written.Rank), nil
	case "view":
		confidantID := ""
		if member := optUser(action.Options, "member"); member != nil {
			confidantID = member.ID
		}
		entries, err := c.svc.Journal(ctx, userID, confidantID)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "Your journal is empty.", nil
		}
		var b strings.Builder
		b.WriteString("Your journal:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "[rank %d, <@%s>] %s\n", e.Rank, e.ConfidantID, e.Entry)
		}
		return b.String(), nil
	}
	return "Unknown subcommand.", nil
}

func (c *Commands) handleAdmin(ctx context.Context, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if len(opts) == 0 {
		return "Unknown subcommand.", nil
	}
	action := opts[0]
	switch action.Name {
	case "setscore":
		first := optUser(action.Options, "first")
		second := optUser(action.Options, "second")
		if first == nil || second == nil {
			return "Pick both members.", nil
		}
		score := int(optInt(action.Options, "score"))
		if err := c.svc.SetScore(ctx, first.ID, second.ID, score); err != nil {
			return "", err
		}
		if err := c.svc.SetScore(ctx, second.ID, first.ID, score); err != nil {
			return "", err
		}
		return fmt.Sprintf("Score between <@%s> and <@%s> set to %d.", first.ID, second.ID, score), nil
	case "reset":
		member := optUser(action.Options, "member")
		if member == nil {
			return "Pick a member to reset.", nil
		}
		if err := c.svc.Reset(ctx, member.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Scores and journal for <@%s> wiped.", member.ID), nil
	}
	return "Unknown subcommand.", nil
}

func callerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
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

func optInt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.IntValue()
		}
	}
	return 0
}

func optUser(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.User {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.UserValue(nil)
		}
	}
	return nil
}
