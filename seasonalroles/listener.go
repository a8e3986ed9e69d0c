package seasonalroles

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// HandleGuildMemberAdd assigns the active holiday role to members who join
// mid-holiday, unless they opted out. Registered on the shared session.
func (svc *Service) HandleGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}
	ctx := context.Background()

	h, active, err := svc.checker.ActiveHoliday(ctx, m.GuildID)
	if err != nil {
		svc.logger.Error("failed to resolve active holiday for joiner", "guildID", m.GuildID, "error", err.Error())
		return
	}
	if !active {
		return
	}

	doc, err := svc.store.Guild(ctx, m.GuildID, CogName)
	if err != nil {
		svc.logger.Error("failed to load settings for joiner", "guildID", m.GuildID, "error", err.Error())
		return
	}
	if isOptedOut(doc, m.User.ID) {
		return
	}

	role, err := svc.roles.FindHolidayRole(m.GuildID, h)
	if err != nil || role == nil {
		return
	}
	if doc.Bool("dry_run_mode", true) {
		svc.logger.Info("[Dry Run] would have assigned role to new member", "guildID", m.GuildID, "userID", m.User.ID, "role", role.Name)
		return
	}
	if err := s.GuildMemberRoleAdd(m.GuildID, m.User.ID, role.ID); err != nil {
		svc.logger.Warn("failed to assign holiday role to new member", "guildID", m.GuildID, "userID", m.User.ID, "error", err.Error())
	}
}
