package seasonalroles

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// memberPageSize is the Discord API page limit for member listing.
const memberPageSize = 1000

// RolesAPI is the slice of the Discord session the role manager touches,
// narrowed so tests can fake it.
type RolesAPI interface {
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleEdit(guildID, roleID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleDelete(guildID, roleID string, options ...discordgo.RequestOption) error
	GuildRoleReorder(guildID string, roles []*discordgo.Role, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// RoleManager creates, assigns, and retires holiday roles. Every mutating
// call honors dry-run, logging the action it would have taken instead of
// calling Discord.
type RoleManager struct {
	session RolesAPI
	logger  *logging.Logger
}

// NewRoleManager wires a role manager to the session.
func NewRoleManager(session RolesAPI, logger *logging.Logger) *RoleManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &RoleManager{session: session, logger: logger.WithCog(CogName)}
}

// EnsureRole creates the holiday's role or refreshes an existing one in
// place, preserving member assignments. Returns the role, or nil in dry-run.
func (rm *RoleManager) EnsureRole(guildID string, h holiday.Holiday, dryRun bool) (*discordgo.Role, error) {
	existing, err := rm.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("listing roles for guild %s: %w", guildID, err)
	}

	names := make([]string, len(existing))
	for i, r := range existing {
		names[i] = r.Name
	}
	action, matchedName := holiday.DecideRoleAction(h, names)

	name := holiday.RoleName(h)
	color, err := holiday.ParseColor(h.Color)
	if err != nil {
		return nil, fmt.Errorf("holiday %s: %w", h.Name, err)
	}
	hoist := false
	params := &discordgo.RoleParams{Name: name, Color: &color, Hoist: &hoist}

	if dryRun {
		rm.logger.Info(fmt.Sprintf("[Dry Run] would have %sd role %q", action, name), "guildID", guildID)
		return nil, nil
	}

	if action == holiday.RoleActionUpdate {
		var matched *discordgo.Role
		for _, r := range existing {
			if r.Name == matchedName {
				matched = r
				break
			}
		}
		role, err := rm.session.GuildRoleEdit(guildID, matched.ID, params)
		if err != nil {
			return nil, fmt.Errorf("updating role %q: %w", matchedName, err)
		}
		metrics.HolidayPhaseActions.WithLabelValues("during", "role_updated").Inc()
		rm.logger.Info("updated holiday role", "guildID", guildID, "role", role.Name)
		return role, nil
	}

	role, err := rm.session.GuildRoleCreate(guildID, params)
	if err != nil {
		return nil, fmt.Errorf("creating role %q: %w", name, err)
	}
	metrics.HolidayRolesCreated.Add(1)
	rm.logger.Info("created holiday role", "guildID", guildID, "role", role.Name)
	return role, nil
}

// MoveRoleToTop reorders the role just under the bot's highest position so
// its color wins over members' other roles.
func (rm *RoleManager) MoveRoleToTop(guildID, roleID string, dryRun bool) error {
	if dryRun {
		rm.logger.Info("[Dry Run] would have moved role to top", "guildID", guildID, "roleID", roleID)
		return nil
	}
	roles, err := rm.session.GuildRoles(guildID)
	if err != nil {
		return fmt.Errorf("listing roles for guild %s: %w", guildID, err)
	}
	maxPos := 0
	var target *discordgo.Role
	for _, r := range roles {
		if r.Position > maxPos {
			maxPos = r.Position
		}
		if r.ID == roleID {
			target = r
		}
	}
	if target == nil {
		return fmt.Errorf("role %s not found in guild %s", roleID, guildID)
	}
	target.Position = maxPos
	if _, err := rm.session.GuildRoleReorder(guildID, roles); err != nil {
		return fmt.Errorf("reordering roles in guild %s: %w", guildID, err)
	}
	return nil
}

// AssignToAll gives the role to every member except bots and opted-out users.
// Individual failures are logged and skipped so one member without access
// does not stop the rest.
func (rm *RoleManager) AssignToAll(guildID, roleID string, optOut []string, dryRun bool) error {
	optedOut := make(map[string]bool, len(optOut))
	for _, id := range optOut {
		optedOut[id] = true
	}

	return rm.eachMember(guildID, func(m *discordgo.Member) {
		if m.User == nil || m.User.Bot || optedOut[m.User.ID] {
			return
		}
		if dryRun {
			rm.logger.Info("[Dry Run] would have assigned role", "guildID", guildID, "roleID", roleID, "userID", m.User.ID)
			return
		}
		if err := rm.session.GuildMemberRoleAdd(guildID, m.User.ID, roleID); err != nil {
			rm.logger.Warn("failed to assign holiday role", "guildID", guildID, "userID", m.User.ID, "error", err.Error())
		}
	})
}

// RemoveFromAll strips the role from every member that has it.
func (rm *RoleManager) RemoveFromAll(guildID, roleID string, dryRun bool) error {
	return rm.eachMember(guildID, func(m *discordgo.Member) {
		hasRole := false
		for _, id := range m.Roles {
			if id == roleID {
				hasRole = true
				break
			}
		}
		if !hasRole || m.User == nil {
			return
		}
		if dryRun {
			rm.logger.Info("[Dry Run] would have removed role", "guildID", guildID, "roleID", roleID, "userID", m.User.ID)
			return
		}
		if err := rm.session.GuildMemberRoleRemove(guildID, m.User.ID, roleID); err != nil {
			rm.logger.Warn("failed to remove holiday role", "guildID", guildID, "userID", m.User.ID, "error", err.Error())
		}
	})
}

// DeleteRole removes the role from the guild entirely.
func (rm *RoleManager) DeleteRole(guildID, roleID string, dryRun bool) error {
	if dryRun {
		rm.logger.Info("[Dry Run] would have deleted role", "guildID", guildID, "roleID", roleID)
		return nil
	}
	if err := rm.session.GuildRoleDelete(guildID, roleID); err != nil {
		return fmt.Errorf("deleting role %s: %w", roleID, err)
	}
	metrics.HolidayRolesDeleted.Add(1)
	return nil
}

// FindHolidayRole returns the guild role matching the holiday's name, or
// nil.
func (rm *RoleManager) FindHolidayRole(guildID string, h holiday.Holiday) (*discordgo.Role, error) {
	roles, err := rm.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("listing roles for guild %s: %w", guildID, err)
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	action, matched := holiday.DecideRoleAction(h, names)
	if action != holiday.RoleActionUpdate {
		return nil, nil
	}
	for _, r := range roles {
		if r.Name == matched {
			return r, nil
		}
	}
	return nil, nil
}

// CleanupStale deletes holiday-suffixed roles left over from holidays no
// longer in their active window, e.g. after the bot was down for the after
// phase.
func (rm *RoleManager) CleanupStale(guildID string, activeDates map[string]bool, dryRun bool) error {
	roles, err := rm.session.GuildRoles(guildID)
	if err != nil {
		return fmt.Errorf("listing roles for guild %s: %w", guildID, err)
	}
	for _, r := range roles {
		if !holiday.IsHolidayRole(r.Name) {
			continue
		}
		date := r.Name[len(r.Name)-5:]
		if activeDates[date] {
			continue
		}
		if dryRun {
			rm.logger.Info("[Dry Run] would have deleted stale role", "guildID", guildID, "role", r.Name)
			continue
		}
		if err := rm.session.GuildRoleDelete(guildID, r.ID); err != nil {
			rm.logger.Warn("failed to delete stale holiday role", "guildID", guildID, "role", r.Name, "error", err.Error())
			continue
		}
		metrics.HolidayRolesDeleted.Add(1)
		rm.logger.Info("deleted stale holiday role", "guildID", guildID, "role", r.Name)
	}
	return nil
}

func (rm *RoleManager) eachMember(guildID string, fn func(*discordgo.Member)) error {
	after := ""
	for {
		members, err := rm.session.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			return fmt.Errorf("listing members for guild %s: %w", guildID, err)
		}
		for _, m := range members {
			fn(m)
		}
		if len(members) < memberPageSize {
			return nil
		}
		after = members[len(members)-1].User.ID
	}
}
