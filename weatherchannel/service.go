package weatherchannel

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// CogName keys this cog's settings documents.
const CogName = "weatherchannel"

const (
	scanInterval = time.Minute
	dateOnly     = "2006-01-02"
	clockLayout  = "15:04"
)

// DefaultDocument is the per-guild settings document.
func DefaultDocument() config.Document {
	return config.Document{
		"channel_id":       "",
		"default_city":     Everywhere,
		"schedule":         "08:00",
		"last_posted_date": "",
	}
}

// GuildInfo is the slice of guild state the cog needs.
type GuildInfo struct {
	ID   string
	Name string
}

// MessageSender is the slice of the Discord session the daily post needs.
type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Service fetches reports and runs the daily post loop.
type Service struct {
	store      *config.Store
	providers  map[string]Provider
	cities     map[string]City
	summarizer *Summarizer
	sender     MessageSender
	guilds     func() []GuildInfo
	logger     *logging.Logger
	now        func() time.Time
}

// NewService wires the weather cog.
func NewService(store *config.Store, providers map[string]Provider, cities map[string]City, summarizer *Summarizer, sender MessageSender, guilds func() []GuildInfo, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:      store,
		providers:  providers,
		cities:     cities,
		summarizer: summarizer,
		sender:     sender,
		guilds:     guilds,
		logger:     logger.WithCog(CogName),
		now:        time.Now,
	}
}

// FetchReports resolves the city selection and fetches each city from its
// provider. A failing city is logged and skipped; only all cities failing is
// an error.
func (svc *Service) FetchReports(ctx context.Context, cityName string) ([]Report, error) {
	cities, err := ResolveCities(svc.cities, cityName)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, city := range cities {
		provider, ok := svc.providers[city.API]
		if !ok {
			svc.logger.Error("city has no provider", "city", city.Name, "api", city.API)
			continue
		}
		report, err := fetchTracked(ctx, provider, city)
		if err != nil {
			svc.logger.Error("error fetching weather", "city", city.Name, "provider", provider.Name(), "error", err.Error())
			continue
		}
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no weather reports available for %q", cityName)
	}
	return reports, nil
}

// Run scans every guild once a minute and posts the daily report when its
// scheduled time has passed.
func (svc *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, guild := range svc.guilds() {
				if err := svc.maybePost(ctx, guild); err != nil {
					svc.logger.Error("error posting daily weather", "guildID", guild.ID, "error", err.Error())
				}
			}
		}
	}
}

// maybePost delivers the daily report once per day, at the first tick on or
// after the configured time.
func (svc *Service) maybePost(ctx context.Context, guild GuildInfo) error {
	doc, err := svc.store.Guild(ctx, guild.ID, CogName)
	if err != nil {
		return err
	}
	channelID := doc.String("channel_id", "")
	if channelID == "" {
		return nil
	}

	now := svc.now()
	today := now.Format(dateOnly)
	if doc.String("last_posted_date", "") == today {
		return nil
	}
	due, err := ParseSchedule(doc.String("schedule", "08:00"))
	if err != nil {
		return fmt.Errorf("guild %s has a malformed schedule: %w", guild.ID, err)
	}
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), due.Hour(), due.Minute(), 0, 0, now.Location())
	if now.Before(scheduled) {
		return nil
	}

	reports, err := svc.FetchReports(ctx, doc.String("default_city", Everywhere))
	if err != nil {
		return err
	}
	summary := svc.summarizer.Summarize(ctx, reports)
	if _, err := svc.sender.ChannelMessageSendEmbed(channelID, BuildEmbed(reports, summary)); err != nil {
		return fmt.Errorf("sending daily weather to channel %s: %w", channelID, err)
	}
	metrics.DiscordMessageSent.Add(1)

	// Recorded after the send so a failed delivery retries on the next tick.
	return svc.store.Update(ctx, guild.ID, CogName, func(d config.Document) error {
		d["last_posted_date"] = today
		return nil
	})
}

// ParseSchedule validates an HH:MM clock string.
func ParseSchedule(s string) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %q is not HH:MM", s)
	}
	return t, nil
}
