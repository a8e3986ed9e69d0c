package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

const (
	askTimeout     = 30 * time.Second
	maxReplyLength = 500
)

// AskService exposes the chain as the /ask slash command.
type AskService struct {
	chain  *Chain
	logger *logging.Logger
}

// NewAskService wires the command surface.
func NewAskService(chain *Chain, logger *logging.Logger) *AskService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AskService{chain: chain, logger: logger}
}

// AddCommands returns the slash commands this cog registers.
func (a *AskService) AddCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ask",
			Description: "Ask the bot a question",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "question", Description: "What do you want to know?", Required: true},
			},
		},
	}
}

// HandleAsk defers the interaction, runs the chain, and follows up with the
// capped answer. Generation failures come back as an inline message rather
// than a dead interaction.
func (a *AskService) HandleAsk(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	question := data.Options[0].StringValue()

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		a.logger.Error("error deferring ask command", "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	content, err := a.chain.Run(ctx, question)
	if err != nil {
		a.logger.Error("error calling llm for ask command", "error", err.Error())
		content = "Failed to generate an answer. Please try again later."
	}
	if content == "" {
		content = "Sorry, I cannot respond to that. Please try again."
	}
	content = Truncate(content, maxReplyLength)

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("> %s\n%s", Truncate(question, 200), content),
	})
	if err != nil {
		a.logger.Error("error sending ask followup", "error", err.Error())
		return
	}
	metrics.DiscordMessageSent.Add(1)
}

// Truncate caps a string at limit runes, appending an ellipsis when it was
// cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
