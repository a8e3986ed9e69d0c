package seasonalroles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// checkInterval is how often the background loop re-evaluates holiday state.
const checkInterval = 24 * time.Hour

// dateOnly is the storage format for last_checked_date.
const dateOnly = "2006-01-02"

// GuildInfo identifies one guild the checker should evaluate.
type GuildInfo struct {
	ID   string
	Name string
}

// Checker drives the holiday state machine: once a day (or on demand) it
// resolves each configured holiday into a phase and applies the matching
// announcements and role actions.
type Checker struct {
	store     *config.Store
	roles     *RoleManager
	announcer *Announcer
	banners   *BannerManager
	logger    *logging.Logger

	// guilds lists the guilds to evaluate, normally backed by session state.
	guilds func() []GuildInfo

	// now is swapped in tests to pin the reference date.
	now func() time.Time

	mu      sync.Mutex
	guildMu map[string]*sync.Mutex
}

// NewChecker builds a checker over the given collaborators. A nil banner
// manager disables banner swaps.
func NewChecker(store *config.Store, roles *RoleManager, announcer *Announcer, banners *BannerManager, guilds func() []GuildInfo, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{
		store:     store,
		roles:     roles,
		announcer: announcer,
		banners:   banners,
		logger:    logger.WithCog(CogName),
		guilds:    guilds,
		now:       time.Now,
		guildMu:   make(map[string]*sync.Mutex),
	}
}

// Run evaluates all guilds immediately and then once per day until the
// context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.checkAll(ctx, false)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAll(ctx, false)
		}
	}
}

func (c *Checker) checkAll(ctx context.Context, force bool) {
	for _, g := range c.guilds() {
		if err := c.CheckGuild(ctx, g, force); err != nil {
			c.logger.Error("holiday check failed", "guildID", g.ID, "error", err.Error())
		}
	}
}

// lockFor returns the per-guild mutex, creating it on first use. The lock
// keeps a forced check and the daily tick from interleaving role actions.
func (c *Checker) lockFor(guildID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.guildMu[guildID]
	if !ok {
		mu = &sync.Mutex{}
		c.guildMu[guildID] = mu
	}
	return mu
}

// CheckGuild evaluates every holiday for one guild. Unless forced, a guild
// already checked for today's date is skipped. Per-holiday failures are
// logged and do not stop sibling holidays.
func (c *Checker) CheckGuild(ctx context.Context, guild GuildInfo, force bool) error {
	mu := c.lockFor(guild.ID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	defer func() {
		metrics.HolidayCheckDuration.Observe(time.Since(started).Seconds())
	}()

	today := c.now().UTC()

	doc, err := c.store.Guild(ctx, guild.ID, CogName)
	if err != nil {
		return fmt.Errorf("loading settings for guild %s: %w", guild.ID, err)
	}

	if !force && doc.String("last_checked_date", "") == today.Format(dateOnly) {
		c.logger.Debug("already checked today", "guildID", guild.ID)
		return nil
	}

	holidays := holidaysFrom(doc)
	dryRun := doc.Bool("dry_run_mode", true)
	optOut := doc.StringSlice("opt_out_users")

	activeDates := make(map[string]bool)
	for name, h := range holidays {
		phase, daysUntil, err := holiday.ResolvePhaseOffset(h.Date, today, 0)
		if err != nil {
			c.logger.Warn("skipping holiday with malformed date", "guildID", guild.ID, "holiday", name, "date", h.Date, "error", err.Error())
			continue
		}
		// Roles created ahead of the day count as active too, so cleanup
		// does not eat them before the holiday arrives.
		if phase == holiday.PhaseBefore || phase == holiday.PhaseDuring {
			activeDates[h.Date] = true
		}
		if err := c.applyPhase(ctx, guild, h, phase, daysUntil, dryRun, optOut, today); err != nil {
			c.logger.Error("holiday phase action failed", "guildID", guild.ID, "holiday", name, "phase", string(phase), "error", err.Error())
			metrics.HolidayPhaseActions.WithLabelValues(string(phase), "error").Inc()
		}
	}

	if err := c.roles.CleanupStale(guild.ID, activeDates, dryRun); err != nil {
		c.logger.Warn("stale role cleanup failed", "guildID", guild.ID, "error", err.Error())
	}

	// Written in its own update so it cannot clobber the announcement
	// records the announcer committed during this check.
	return c.store.Update(ctx, guild.ID, CogName, func(d config.Document) error {
		d["last_checked_date"] = today.Format(dateOnly)
		return nil
	})
}

func (c *Checker) applyPhase(ctx context.Context, guild GuildInfo, h holiday.Holiday, phase holiday.Phase, daysUntil int, dryRun bool, optOut []string, today time.Time) error {
	switch phase {
	case holiday.PhaseBefore:
		if err := c.announcer.Announce(ctx, guild.ID, guild.Name, h, phase, daysUntil, today); err != nil {
			c.logger.Error("before announcement failed", "guildID", guild.ID, "holiday", h.Name, "error", err.Error())
		}
		// The role exists through the lead-up window; assignment waits for
		// the day itself.
		role, err := c.roles.EnsureRole(guild.ID, h, dryRun)
		if err != nil {
			return err
		}
		if role != nil {
			metrics.HolidayPhaseActions.WithLabelValues("before", "prepared").Inc()
		}
		return nil

	case holiday.PhaseDuring:
		if err := c.announcer.Announce(ctx, guild.ID, guild.Name, h, phase, daysUntil, today); err != nil {
			c.logger.Error("during announcement failed", "guildID", guild.ID, "holiday", h.Name, "error", err.Error())
		}
		if c.banners != nil {
			if err := c.banners.Apply(ctx, guild.ID, h, dryRun); err != nil {
				c.logger.Warn("holiday banner apply failed", "guildID", guild.ID, "holiday", h.Name, "error", err.Error())
			}
		}
		role, err := c.roles.EnsureRole(guild.ID, h, dryRun)
		if err != nil {
			return err
		}
		if role == nil {
			// Dry run.
			return nil
		}
		if err := c.roles.MoveRoleToTop(guild.ID, role.ID, dryRun); err != nil {
			c.logger.Warn("failed to move holiday role to top", "guildID", guild.ID, "role", role.Name, "error", err.Error())
		}
		if err := c.roles.AssignToAll(guild.ID, role.ID, optOut, dryRun); err != nil {
			return err
		}
		metrics.HolidayPhaseActions.WithLabelValues("during", "applied").Inc()
		return nil

	case holiday.PhaseAfter:
		if err := c.announcer.Announce(ctx, guild.ID, guild.Name, h, phase, daysUntil, today); err != nil {
			c.logger.Error("after announcement failed", "guildID", guild.ID, "holiday", h.Name, "error", err.Error())
		}
		if c.banners != nil {
			if err := c.banners.Restore(ctx, guild.ID, dryRun); err != nil {
				c.logger.Warn("banner restore failed", "guildID", guild.ID, "error", err.Error())
			}
		}
		role, err := c.roles.FindHolidayRole(guild.ID, h)
		if err != nil {
			return err
		}
		if role == nil {
			return nil
		}
		if err := c.roles.RemoveFromAll(guild.ID, role.ID, dryRun); err != nil {
			c.logger.Warn("failed to strip holiday role", "guildID", guild.ID, "role", role.Name, "error", err.Error())
		}
		if err := c.roles.DeleteRole(guild.ID, role.ID, dryRun); err != nil {
			return err
		}
		metrics.HolidayPhaseActions.WithLabelValues("after", "retired").Inc()
		return nil
	}
	return nil
}

// ForceHoliday applies one holiday's role to the guild immediately,
// regardless of the calendar. Other holiday roles are retired first so the
// forced one stands alone. The query tolerates misspellings the same way the
// slash commands do.
func (c *Checker) ForceHoliday(ctx context.Context, guild GuildInfo, query string) (string, error) {
	mu := c.lockFor(guild.ID)
	mu.Lock()
	defer mu.Unlock()

	doc, err := c.store.Guild(ctx, guild.ID, CogName)
	if err != nil {
		return "", fmt.Errorf("loading settings for guild %s: %w", guild.ID, err)
	}
	name, h, ok := holiday.Find(holidaysFrom(doc), query)
	if !ok {
		return fmt.Sprintf("No holiday matching %q found.", query), nil
	}
	dryRun := doc.Bool("dry_run_mode", true)
	optOut := doc.StringSlice("opt_out_users")

	if err := c.roles.CleanupStale(guild.ID, map[string]bool{h.Date: true}, dryRun); err != nil {
		c.logger.Warn("retiring other holiday roles failed", "guildID", guild.ID, "error", err.Error())
	}

	role, err := c.roles.EnsureRole(guild.ID, h, dryRun)
	if err != nil {
		return "", err
	}
	if role == nil {
		return fmt.Sprintf("[Dry Run] Would have applied holiday %q.", name), nil
	}
	if err := c.roles.MoveRoleToTop(guild.ID, role.ID, dryRun); err != nil {
		c.logger.Warn("failed to move holiday role to top", "guildID", guild.ID, "role", role.Name, "error", err.Error())
	}
	if err := c.roles.AssignToAll(guild.ID, role.ID, optOut, dryRun); err != nil {
		return "", err
	}
	if c.banners != nil {
		if err := c.banners.Apply(ctx, guild.ID, h, dryRun); err != nil {
			c.logger.Warn("holiday banner apply failed", "guildID", guild.ID, "holiday", name, "error", err.Error())
		}
	}
	metrics.HolidayPhaseActions.WithLabelValues("during", "forced").Inc()
	c.logger.Info("forced holiday applied", "guildID", guild.ID, "holiday", name)
	return fmt.Sprintf("Applied holiday %q to the server.", name), nil
}

// ActiveHoliday returns the holiday currently in its during phase for a
// guild, if any. Used by the member-join listener.
func (c *Checker) ActiveHoliday(ctx context.Context, guildID string) (holiday.Holiday, bool, error) {
	doc, err := c.store.Guild(ctx, guildID, CogName)
	if err != nil {
		return holiday.Holiday{}, false, err
	}
	today := c.now().UTC()
	for _, h := range holidaysFrom(doc) {
		phase, err := holiday.ResolvePhase(h.Date, today, 0)
		if err != nil {
			continue
		}
		if phase == holiday.PhaseDuring {
			return h, true, nil
		}
	}
	return holiday.Holiday{}, false, nil
}
