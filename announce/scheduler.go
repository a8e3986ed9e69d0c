package announce

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// scanInterval is how often the scheduler looks for due announcements.
const scanInterval = time.Minute

// Recurrence values for scheduled announcements.
const (
	RecurNone   = ""
	RecurDaily  = "daily"
	RecurWeekly = "weekly"
)

// Scheduled is one queued announcement.
type Scheduled struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channel_id"`
	Content    string `json:"content,omitempty"`
	Template   string `json:"template,omitempty"`
	At         string `json:"at"`
	Recurrence string `json:"recurrence,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
}

func scheduledFrom(doc config.Document) Scheduled {
	return Scheduled{
		ID:         doc.String("id", ""),
		ChannelID:  doc.String("channel_id", ""),
		Content:    doc.String("content", ""),
		Template:   doc.String("template", ""),
		At:         doc.String("at", ""),
		Recurrence: doc.String("recurrence", ""),
		CreatedBy:  doc.String("created_by", ""),
	}
}

func (sch Scheduled) encode() map[string]any {
	entry := map[string]any{
		"id":         sch.ID,
		"channel_id": sch.ChannelID,
		"at":         sch.At,
	}
	if sch.Content != "" {
		entry["content"] = sch.Content
	}
	if sch.Template != "" {
		entry["template"] = sch.Template
	}
	if sch.Recurrence != "" {
		entry["recurrence"] = sch.Recurrence
	}
	if sch.CreatedBy != "" {
		entry["created_by"] = sch.CreatedBy
	}
	return entry
}

// Due reports whether the announcement should fire at or before now.
// Malformed timestamps never fire.
func (sch Scheduled) Due(now time.Time) bool {
	at, err := time.Parse(time.RFC3339, sch.At)
	if err != nil {
		return false
	}
	return !at.After(now)
}

// NextOccurrence advances a recurring announcement past now. One-shots return
// false.
func (sch Scheduled) NextOccurrence(now time.Time) (time.Time, bool) {
	at, err := time.Parse(time.RFC3339, sch.At)
	if err != nil {
		return time.Time{}, false
	}
	var step time.Duration
	switch sch.Recurrence {
	case RecurDaily:
		step = 24 * time.Hour
	case RecurWeekly:
		step = 7 * 24 * time.Hour
	default:
		return time.Time{}, false
	}
	for !at.After(now) {
		at = at.Add(step)
	}
	return at, true
}

// NewScheduled builds a queued announcement with a fresh ID.
func NewScheduled(channelID, content, template string, at time.Time, recurrence, createdBy string) Scheduled {
	return Scheduled{
		ID:         uuid.New().String(),
		ChannelID:  channelID,
		Content:    content,
		Template:   template,
		At:         at.UTC().Format(time.RFC3339),
		Recurrence: recurrence,
		CreatedBy:  createdBy,
	}
}

// GuildInfo identifies one guild the scheduler scans.
type GuildInfo struct {
	ID   string
	Name string
}

// Sender is the slice of the Discord session the scheduler needs.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Scheduler delivers queued announcements. Missed scans deliver late rather
// than drop: anything with a due time at or before now fires on the next
// pass.
type Scheduler struct {
	store   *config.Store
	session Sender
	logger  *logging.Logger
	guilds  func() []GuildInfo
	now     func() time.Time
}

// NewScheduler wires the scheduler to its collaborators.
func NewScheduler(store *config.Store, session Sender, guilds func() []GuildInfo, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:   store,
		session: session,
		logger:  logger.WithCog(CogName),
		guilds:  guilds,
		now:     time.Now,
	}
}

// Run scans every minute until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, g := range s.guilds() {
				if err := s.ScanGuild(ctx, g); err != nil {
					s.logger.Error("scheduled announcement scan failed", "guildID", g.ID, "error", err.Error())
				}
			}
		}
	}
}

// ScanGuild sends every due announcement for one guild, rescheduling
// recurring entries and dropping delivered one-shots.
func (s *Scheduler) ScanGuild(ctx context.Context, guild GuildInfo) error {
	now := s.now().UTC()
	return s.store.Update(ctx, guild.ID, CogName, func(doc config.Document) error {
		raw, _ := doc["scheduled"].([]any)
		if len(raw) == 0 {
			return nil
		}

		var remaining []any
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sch := scheduledFrom(config.Document(entry))
			if !sch.Due(now) {
				remaining = append(remaining, item)
				continue
			}

			if err := s.deliver(doc, guild, sch, now); err != nil {
				s.logger.Error("failed to deliver scheduled announcement", "guildID", guild.ID, "id", sch.ID, "error", err.Error())
				// Keep it queued so the next scan retries.
				remaining = append(remaining, item)
				continue
			}

			if next, ok := sch.NextOccurrence(now); ok {
				sch.At = next.Format(time.RFC3339)
				remaining = append(remaining, sch.encode())
			}
		}
		doc["scheduled"] = remaining
		return nil
	})
}

func (s *Scheduler) deliver(doc config.Document, guild GuildInfo, sch Scheduled, now time.Time) error {
	at, err := time.Parse(time.RFC3339, sch.At)
	if err == nil && now.Sub(at) > scanInterval {
		metrics.ScheduledAnnouncersLate.Add(1)
	}

	msg := &discordgo.MessageSend{Content: sch.Content}
	if sch.Template != "" {
		tmplDoc := doc.Sub("templates").Sub(sch.Template)
		rendered := templateFrom(tmplDoc).Render(guild.Name, "", now)
		if rendered.Kind == "embed" {
			msg = &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
				Title:       rendered.Title,
				Description: rendered.Description,
				Color:       rendered.Color,
			}}}
		} else {
			msg = &discordgo.MessageSend{Content: rendered.Content}
		}
	}

	if _, err := s.session.ChannelMessageSendComplex(sch.ChannelID, msg); err != nil {
		return fmt.Errorf("sending to channel %s: %w", sch.ChannelID, err)
	}
	metrics.DiscordMessageSent.Add(1)

	appendHistory(doc, map[string]any{
		"channel_id": sch.ChannelID,
		"content":    sch.Content,
		"template":   sch.Template,
		"sent_at":    now.Format(time.RFC3339),
		"scheduled":  true,
	})
	s.logger.Info("delivered scheduled announcement", "guildID", guild.ID, "id", sch.ID, "channelID", sch.ChannelID)
	return nil
}
