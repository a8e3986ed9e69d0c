package sociallink

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// DMSender is the slice of the Discord session the rank-up notifier needs.
type DMSender interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Flavor text per rank. Every level up to the cap gets its own line.
var rankFlavor = map[int]string{
	1:  "You've made a new connection.",
	2:  "You're getting to know each other.",
	3:  "A real friendship is forming.",
	4:  "You two are becoming close.",
	5:  "Halfway there. This bond is solid.",
	6:  "You trust each other with more these days.",
	7:  "A deep bond, built on shared time.",
	8:  "Few know each other this well.",
	9:  "Nearly inseparable.",
	10: "Your bond has reached its peak.",
}

// DefaultLevelHandlers builds the full rank-up handler table: every level
// sends the user a DM embed with the new rank, stars, and their latest
// journal note about the confidant.
func DefaultLevelHandlers(sender DMSender, svc *Service, progression Progression, logger *logging.Logger) map[int]LevelHandler {
	if logger == nil {
		logger = logging.Default()
	}
	log := logger.WithCog(CogName)

	handlers := make(map[int]LevelHandler, progression.MaxLevel)
	for level := 1; level <= progression.MaxLevel; level++ {
		level := level
		handlers[level] = func(p Payload) {
			embed := &discordgo.MessageEmbed{
				Title:       fmt.Sprintf("Confidant Rank %d!", level),
				Description: fmt.Sprintf("Your bond with <@%s> has grown.\n%s\n\n%s", p.TargetID, progression.StarRating(level), rankFlavor[level]),
				Color:       0x5865F2,
			}
			if entry, ok := svc.LatestJournalEntry(context.Background(), p.ActorID, p.TargetID); ok {
				embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
					Name:  "From your journal",
					Value: entry.Entry,
				})
			}

			channel, err := sender.UserChannelCreate(p.ActorID)
			if err != nil {
				log.Error("error opening DM channel", "userID", p.ActorID, "error", err.Error())
				return
			}
			if _, err := sender.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
				log.Error("error sending rank-up DM", "userID", p.ActorID, "error", err.Error())
				return
			}
			metrics.DiscordMessageSent.Add(1)
		}
	}
	return handlers
}
