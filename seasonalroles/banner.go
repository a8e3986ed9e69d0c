package seasonalroles

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

// bannerFetchLimit caps downloaded banner images; Discord rejects anything
// bigger anyway.
const bannerFetchLimit = 10 << 20

// GuildAPI is the slice of the Discord session the banner manager touches.
type GuildAPI interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildEdit(guildID string, g *discordgo.GuildParams, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// BannerManager swaps the guild banner for a holiday's artwork during the
// holiday and puts the original back afterwards. The original banner URL is
// remembered in the guild's settings document, so a restart between apply and
// restore keeps the way back.
type BannerManager struct {
	session GuildAPI
	store   *config.Store
	http    *http.Client
	logger  *logging.Logger
}

// NewBannerManager wires a banner manager to the session and settings store.
func NewBannerManager(session GuildAPI, store *config.Store, logger *logging.Logger) *BannerManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &BannerManager{
		session: session,
		store:   store,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.WithCog(CogName),
	}
}

// Apply sets the holiday's banner when the guild has banner management
// enabled and the holiday carries one. Applying the same banner twice is a
// no-op, so the daily check can call this every day of the holiday.
func (bm *BannerManager) Apply(ctx context.Context, guildID string, h holiday.Holiday, dryRun bool) error {
	if h.Banner == "" || !strings.HasPrefix(h.Banner, "http") {
		return nil
	}
	sess, err := bm.store.Begin(ctx, guildID, CogName)
	if err != nil {
		return fmt.Errorf("loading banner settings: %w", err)
	}
	cfg := sess.Doc.Sub("banner_management")
	if !cfg.Bool("enabled", false) {
		return nil
	}
	if cfg.String("applied_banner", "") == h.Banner {
		return nil
	}
	if dryRun {
		bm.logger.Info("[Dry Run] would have applied holiday banner", "guildID", guildID, "holiday", h.Name)
		return nil
	}

	guild, err := bm.session.Guild(guildID)
	if err != nil {
		return fmt.Errorf("loading guild %s: %w", guildID, err)
	}
	if !cfg.Has("original_banner") {
		cfg["original_banner"] = guild.BannerURL("1024")
	}

	data, err := bm.fetchImage(ctx, h.Banner)
	if err != nil {
		return fmt.Errorf("fetching banner for %s: %w", h.Name, err)
	}
	if _, err := bm.session.GuildEdit(guildID, &discordgo.GuildParams{Banner: data}); err != nil {
		return fmt.Errorf("setting banner for %s: %w", h.Name, err)
	}
	cfg["applied_banner"] = h.Banner
	bm.logger.Info("applied holiday banner", "guildID", guildID, "holiday", h.Name)
	return sess.Commit(ctx)
}

// Restore reinstates the remembered banner once the holiday has passed.
func (bm *BannerManager) Restore(ctx context.Context, guildID string, dryRun bool) error {
	sess, err := bm.store.Begin(ctx, guildID, CogName)
	if err != nil {
		return fmt.Errorf("loading banner settings: %w", err)
	}
	cfg := sess.Doc.Sub("banner_management")
	if !cfg.Bool("enabled", false) || cfg.String("applied_banner", "") == "" {
		return nil
	}
	if dryRun {
		bm.logger.Info("[Dry Run] would have restored guild banner", "guildID", guildID)
		return nil
	}

	original := cfg.String("original_banner", "")
	if original == "" {
		// The guild edit endpoint cannot unset a banner, so a guild that had
		// none keeps the holiday banner until a moderator clears it.
		bm.logger.Warn("no original banner recorded, leaving holiday banner in place", "guildID", guildID)
	} else {
		data, err := bm.fetchImage(ctx, original)
		if err != nil {
			return fmt.Errorf("fetching original banner: %w", err)
		}
		if _, err := bm.session.GuildEdit(guildID, &discordgo.GuildParams{Banner: data}); err != nil {
			return fmt.Errorf("restoring banner: %w", err)
		}
		bm.logger.Info("restored guild banner", "guildID", guildID)
	}

	delete(cfg, "applied_banner")
	delete(cfg, "original_banner")
	return sess.Commit(ctx)
}

// fetchImage downloads an image and encodes it as the data URI the guild
// edit endpoint expects.
func (bm *BannerManager) fetchImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := bm.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, bannerFetchLimit))
	if err != nil {
		return "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(body)), nil
}
