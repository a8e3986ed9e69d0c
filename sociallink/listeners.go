package sociallink

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

// MessageFetcher resolves a message by ID, used to find whose message a
// reaction landed on.
type MessageFetcher interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Listeners turns gateway traffic into interaction points: mentions, replies,
// reactions, and shared voice time.
type Listeners struct {
	store   *config.Store
	svc     *Service
	bus     *Bus
	tracker *VoiceTracker
	fetch   MessageFetcher
	logger  *logging.Logger
}

// NewListeners wires the event listeners.
func NewListeners(store *config.Store, svc *Service, bus *Bus, tracker *VoiceTracker, fetch MessageFetcher, logger *logging.Logger) *Listeners {
	if logger == nil {
		logger = logging.Default()
	}
	return &Listeners{
		store:   store,
		svc:     svc,
		bus:     bus,
		tracker: tracker,
		fetch:   fetch,
		logger:  logger.WithCog(CogName),
	}
}

// HandleMessageCreate credits mentions and replies. A reply carrying media
// counts as a media share, a bare reply as a quote.
func (l *Listeners) HandleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	ctx := context.Background()
	doc, err := l.store.Guild(ctx, m.GuildID, CogName)
	if err != nil {
		l.logger.Error("error loading guild settings", "guildID", m.GuildID, "error", err.Error())
		return
	}

	for _, mention := range m.Mentions {
		if mention.Bot || mention.ID == m.Author.ID {
			continue
		}
		l.award(ctx, doc, m.GuildID, m.Author.ID, mention.ID, "message_mention")
	}

	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil && !ref.Author.Bot && ref.Author.ID != m.Author.ID {
		source := "quote"
		if len(m.Attachments) > 0 {
			source = "media_share"
		}
		l.award(ctx, doc, m.GuildID, m.Author.ID, ref.Author.ID, source)
	}
}

// HandleReactionAdd credits a reaction toward the reacted message's author.
func (l *Listeners) HandleReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}
	ctx := context.Background()
	msg, err := l.fetch.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil {
		l.logger.Error("error fetching reacted message", "channelID", r.ChannelID, "messageID", r.MessageID, "error", err.Error())
		return
	}
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID == r.UserID {
		return
	}
	doc, err := l.store.Guild(ctx, r.GuildID, CogName)
	if err != nil {
		l.logger.Error("error loading guild settings", "guildID", r.GuildID, "error", err.Error())
		return
	}
	l.award(ctx, doc, r.GuildID, r.UserID, msg.Author.ID, "reaction")
}

// HandleVoiceStateUpdate feeds the voice tracker and credits pairs that
// crossed the daily shared-time threshold.
func (l *Listeners) HandleVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID == "" {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	ctx := context.Background()
	doc, err := l.store.Guild(ctx, v.GuildID, CogName)
	if err != nil {
		l.logger.Error("error loading guild settings", "guildID", v.GuildID, "error", err.Error())
		return
	}
	threshold := time.Duration(VoiceThreshold(doc)) * time.Second
	for _, credit := range l.tracker.Update(v.GuildID, v.UserID, v.ChannelID, threshold) {
		creditDoc := doc
		if credit.GuildID != v.GuildID {
			creditDoc, err = l.store.Guild(ctx, credit.GuildID, CogName)
			if err != nil {
				l.logger.Error("error loading guild settings", "guildID", credit.GuildID, "error", err.Error())
				continue
			}
		}
		l.award(ctx, creditDoc, credit.GuildID, credit.A, credit.B, "voice_channel")
	}
}

// HandleUserUpdate announces profile changes on the bus.
func (l *Listeners) HandleUserUpdate(_ *discordgo.Session, u *discordgo.UserUpdate) {
	if u.User == nil || u.User.Bot {
		return
	}
	l.bus.Fire(EventAvatarChanged, Payload{ActorID: u.User.ID, Source: "avatar"})
}

func (l *Listeners) award(ctx context.Context, doc config.Document, guildID, actorID, targetID, source string) {
	points := PointsFor(doc, source)
	if points == 0 {
		return
	}
	if err := l.svc.AddPoints(ctx, guildID, actorID, targetID, points, source); err != nil {
		l.logger.Error("error crediting interaction", "guildID", guildID, "source", source, "error", err.Error())
		return
	}
	l.bus.Fire(EventInteraction, Payload{
		GuildID:  guildID,
		ActorID:  actorID,
		TargetID: targetID,
		Points:   points,
		Source:   source,
	})
}
