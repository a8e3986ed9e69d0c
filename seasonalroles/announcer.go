package seasonalroles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// Template is one announcement message shape. Placeholders {holiday_name},
// {holiday_date}, {days_until}, and {server_name} are substituted at send
// time.
type Template struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var defaultTemplates = map[holiday.Phase]Template{
	holiday.PhaseBefore: {
		Title:       "Upcoming Holiday: {holiday_name}",
		Description: "Get ready for {holiday_name} in {days_until} days! It will be celebrated on {holiday_date}.",
	},
	holiday.PhaseDuring: {
		Title:       "Happy {holiday_name}!",
		Description: "Today is {holiday_name}! Celebrate with us and enjoy this special day.",
	},
	holiday.PhaseAfter: {
		Title:       "{holiday_name} has ended",
		Description: "Hope you enjoyed {holiday_name}! See you next time.",
	},
}

// Render substitutes template placeholders for one holiday.
func (t Template) Render(h holiday.Holiday, daysUntil int, serverName string) Template {
	name := h.Name
	if h.DisplayName != "" {
		name = h.DisplayName
	}
	replacer := strings.NewReplacer(
		"{holiday_name}", name,
		"{holiday_date}", h.Date,
		"{days_until}", strconv.Itoa(daysUntil),
		"{server_name}", serverName,
	)
	return Template{
		Title:       replacer.Replace(t.Title),
		Description: replacer.Replace(t.Description),
	}
}

// templateFor returns the guild's custom template for a holiday and phase, or
// the default.
func templateFor(cfg config.Document, holidayName string, phase holiday.Phase) Template {
	custom := cfg.Sub("templates").Sub(holidayName).Sub(string(phase))
	fallback := defaultTemplates[phase]
	if !custom.Has("title") && !custom.Has("description") {
		return fallback
	}
	return Template{
		Title:       custom.String("title", fallback.Title),
		Description: custom.String("description", fallback.Description),
	}
}

// ShouldAnnounce decides whether a phase announcement may fire today.
// lastAnnounced is the RFC 3339 timestamp previously recorded for this
// holiday and phase, or empty. The before phase fires at most once per
// occurrence, anywhere in the lead-up window; during and after fire at most
// once per calendar day and only on their exact day. Windows are resolved
// against the occurrence the phase actually matched, so a lead-up or
// day-after that straddles New Year still fires. The returned reason is for
// logs.
func ShouldAnnounce(h holiday.Holiday, phase holiday.Phase, lastAnnounced string, today time.Time) (bool, string) {
	resolved, offset, err := holiday.ResolvePhaseOffset(h.Date, today, 0)
	if err != nil {
		return false, err.Error()
	}

	var last time.Time
	haveLast := false
	if lastAnnounced != "" {
		if parsed, perr := time.Parse(time.RFC3339, lastAnnounced); perr == nil {
			last = parsed
			haveLast = true
		}
		// Unparseable timestamps fall through to the window check.
	}

	switch phase {
	case holiday.PhaseBefore:
		if resolved != holiday.PhaseBefore {
			if resolved == holiday.PhaseNone && offset > holiday.DefaultBeforeDays {
				return false, fmt.Sprintf("too early to announce %s", h.Name)
			}
			return false, fmt.Sprintf("too late to announce %s", h.Name)
		}
		if haveLast {
			// One announcement per occurrence: compare which occurrence each
			// window pointed at, not the calendar year, so a December lead-up
			// to a January holiday stays silent after the year ticks over.
			if lastResolved, lastOffset, lerr := holiday.ResolvePhaseOffset(h.Date, last, 0); lerr == nil && lastResolved == holiday.PhaseBefore {
				if sameDay(today.AddDate(0, 0, offset), last.AddDate(0, 0, lastOffset)) {
					return false, fmt.Sprintf("already announced before phase for %s", h.Name)
				}
			}
		}
		return true, fmt.Sprintf("inside the announcement window for %s", h.Name)

	case holiday.PhaseDuring:
		if resolved != holiday.PhaseDuring {
			return false, fmt.Sprintf("today is not %s", h.Name)
		}
		if haveLast && sameDay(last, today) {
			return false, fmt.Sprintf("already announced during phase for %s today", h.Name)
		}
		return true, fmt.Sprintf("today is %s", h.Name)

	case holiday.PhaseAfter:
		if resolved != holiday.PhaseAfter {
			return false, fmt.Sprintf("today is not the day after %s", h.Name)
		}
		if haveLast && sameDay(last, today) {
			return false, fmt.Sprintf("already announced after phase for %s today", h.Name)
		}
		return true, fmt.Sprintf("today is the day after %s", h.Name)
	}
	return false, fmt.Sprintf("unknown phase %q", phase)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// MessageSender is the slice of the Discord session the announcer needs.
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer sends phase announcements to a guild's configured channel and
// records them so repeated checks on the same day stay silent.
type Announcer struct {
	session MessageSender
	store   *config.Store
	logger  *logging.Logger
}

// NewAnnouncer wires an announcer to the session and settings store.
func NewAnnouncer(session MessageSender, store *config.Store, logger *logging.Logger) *Announcer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Announcer{session: session, store: store, logger: logger.WithCog(CogName)}
}

// Announce sends the announcement for one holiday phase if the guild has
// announcements enabled and the idempotency guard allows it. The recorded
// timestamp is written back in the same settings session as the read, so a
// crash between send and record can at worst repeat one announcement.
func (a *Announcer) Announce(ctx context.Context, guildID, serverName string, h holiday.Holiday, phase holiday.Phase, daysUntil int, today time.Time) error {
	sess, err := a.store.Begin(ctx, guildID, CogName)
	if err != nil {
		return fmt.Errorf("loading announcement settings: %w", err)
	}

	cfg := sess.Doc.Sub("announcement_config")
	if !cfg.Bool("enabled", false) {
		a.logger.Debug("announcements disabled", "guildID", guildID)
		return nil
	}
	channelID := cfg.String("channel_id", "")
	if channelID == "" {
		a.logger.Warn("announcements enabled but no channel configured", "guildID", guildID)
		return nil
	}

	lastAnnounced := cfg.Sub("last_announcements").Sub(h.Name).String(string(phase), "")
	ok, reason := ShouldAnnounce(h, phase, lastAnnounced, today)
	if !ok {
		a.logger.Debug("skipping announcement", "guildID", guildID, "holiday", h.Name, "phase", string(phase), "reason", reason)
		metrics.AnnouncementsSkipped.Add(1)
		return nil
	}

	if sess.Doc.Bool("dry_run_mode", true) {
		a.logger.Info("[Dry Run] would have sent announcement",
			"guildID", guildID, "holiday", h.Name, "phase", string(phase), "channelID", channelID)
		return nil
	}

	message := a.buildMessage(cfg, h, phase, daysUntil, serverName)
	if _, err := a.session.ChannelMessageSendComplex(channelID, message); err != nil {
		return fmt.Errorf("sending %s announcement for %s: %w", phase, h.Name, err)
	}
	metrics.AnnouncementsSent.Add(1)
	metrics.DiscordMessageSent.Add(1)
	a.logger.Info("sent announcement", "guildID", guildID, "holiday", h.Name, "phase", string(phase), "reason", reason)

	cfg.Sub("last_announcements").Sub(h.Name)[string(phase)] = today.UTC().Format(time.RFC3339)
	return sess.Commit(ctx)
}

// Preview renders the message a phase announcement would carry, without
// sending or recording anything.
func (a *Announcer) Preview(ctx context.Context, guildID, serverName string, h holiday.Holiday, phase holiday.Phase, daysUntil int) (*discordgo.MessageEmbed, error) {
	doc, err := a.store.Guild(ctx, guildID, CogName)
	if err != nil {
		return nil, err
	}
	msg := a.buildMessage(doc.Sub("announcement_config"), h, phase, daysUntil, serverName)
	if len(msg.Embeds) == 0 {
		return nil, fmt.Errorf("no embed rendered for %s", h.Name)
	}
	return msg.Embeds[0], nil
}

func (a *Announcer) buildMessage(cfg config.Document, h holiday.Holiday, phase holiday.Phase, daysUntil int, serverName string) *discordgo.MessageSend {
	rendered := templateFor(cfg, h.Name, phase).Render(h, daysUntil, serverName)

	color, err := holiday.ParseColor(h.Color)
	if err != nil {
		color = 0
	}
	embed := &discordgo.MessageEmbed{
		Title:       rendered.Title,
		Description: rendered.Description,
		Color:       color,
	}
	if h.Image != "" && strings.HasPrefix(h.Image, "http") {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: h.Image}
	}
	if h.Banner != "" && strings.HasPrefix(h.Banner, "http") {
		embed.Image = &discordgo.MessageEmbedImage{URL: h.Banner}
	}

	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	switch cfg.String("mention_type", "") {
	case "everyone":
		msg.Content = "@everyone"
	case "here":
		msg.Content = "@here"
	case "role":
		if id := cfg.String("mention_id", ""); id != "" {
			msg.Content = fmt.Sprintf("<@&%s>", id)
		}
	}
	return msg
}
