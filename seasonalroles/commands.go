package seasonalroles

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// Service bundles the seasonal-roles collaborators behind the slash-command
// surface.
type Service struct {
	store     *config.Store
	checker   *Checker
	announcer *Announcer
	roles     *RoleManager
	logger    *logging.Logger
}

// NewService wires the cog's command surface.
func NewService(store *config.Store, checker *Checker, announcer *Announcer, roles *RoleManager, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		checker:   checker,
		announcer: announcer,
		roles:     roles,
		logger:    logger.WithCog(CogName),
	}
}

// AddCommands returns the slash commands this cog registers.
func (svc *Service) AddCommands() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "seasonal",
			Description:              "Manage holiday roles and announcements",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "holiday",
					Description: "Manage the holiday list",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Add a holiday",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Holiday name", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "Date as MM-DD", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Role color as #RRGGBB", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "edit",
							Description: "Edit a holiday's date or color",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Holiday name", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "New date as MM-DD"},
								{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "New color as #RRGGBB"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove a holiday",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Holiday name", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "list",
							Description: "List holidays sorted by proximity",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "announce",
					Description: "Configure holiday announcements",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "setchannel",
							Description: "Set the announcement channel",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to announce in", Required: true},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "enable", Description: "Enable announcements"},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "disable", Description: "Disable announcements"},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "mention",
							Description: "Set who announcements mention",
							Options: []*discordgo.ApplicationCommandOption{
								{
									Type: discordgo.ApplicationCommandOptionString, Name: "type", Description: "Mention type", Required: true,
									Choices: []*discordgo.ApplicationCommandOptionChoice{
										{Name: "none", Value: "none"},
										{Name: "everyone", Value: "everyone"},
										{Name: "here", Value: "here"},
										{Name: "role", Value: "role"},
									},
								},
								{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to mention"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "preview",
							Description: "Preview an announcement",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Holiday name", Required: true},
								{
									Type: discordgo.ApplicationCommandOptionString, Name: "phase", Description: "Announcement phase", Required: true,
									Choices: []*discordgo.ApplicationCommandOptionChoice{
										{Name: "before", Value: "before"},
										{Name: "during", Value: "during"},
										{Name: "after", Value: "after"},
									},
								},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Show announcement settings"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "check",
					Description: "Force a holiday check now",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "forceholiday",
					Description: "Apply a holiday's role immediately, regardless of date",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Holiday name", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "banner",
					Description: "Toggle holiday banner swaps",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Whether holidays may replace the guild banner", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "dryrun",
					Description: "Toggle dry-run mode",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Whether role actions are simulated", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "optout",
					Description: "Opt out of holiday roles",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "optin",
					Description: "Opt back in to holiday roles",
				},
			},
		},
	}
}

// HandleSeasonal dispatches the /seasonal command tree.
func (svc *Service) HandleSeasonal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Interaction.Member == nil || i.Interaction.Member.User == nil {
		respond(s, i, "This command only works inside a server.")
		return
	}
	ctx := context.Background()
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respond(s, i, "Invalid seasonal command.")
		return
	}

	top := data.Options[0]
	var reply string
	var err error
	switch top.Name {
	case "holiday":
		reply, err = svc.handleHoliday(ctx, i.GuildID, top)
	case "announce":
		reply, err = svc.handleAnnounce(ctx, i, top)
	case "check":
		reply, err = svc.handleCheck(ctx, i)
	case "forceholiday":
		reply, err = svc.handleForceHoliday(ctx, i, optString(top.Options, "name"))
	case "banner":
		reply, err = svc.handleBanner(ctx, i.GuildID, optBool(top.Options, "enabled", false))
	case "dryrun":
		reply, err = svc.handleDryRun(ctx, i.GuildID, optBool(top.Options, "enabled", true))
	case "optout":
		reply, err = svc.handleOpt(ctx, i.GuildID, i.Interaction.Member.User.ID, true)
	case "optin":
		reply, err = svc.handleOpt(ctx, i.GuildID, i.Interaction.Member.User.ID, false)
	default:
		reply = "Invalid seasonal command."
	}
	if err != nil {
		svc.logger.Error("seasonal command failed", "subcommand", top.Name, "guildID", i.GuildID, "error", err.Error())
		metrics.DiscordCommandErrors.WithLabelValues("seasonal").Inc()
		reply = "Something went wrong. Please try again later."
	}
	respond(s, i, reply)
}

func (svc *Service) handleHoliday(ctx context.Context, guildID string, group *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid holiday command.", nil
	}
	sub := group.Options[0]
	switch sub.Name {
	case "add":
		return svc.addHoliday(ctx, guildID, sub)
	case "edit":
		return svc.editHoliday(ctx, guildID, sub)
	case "remove":
		return svc.removeHoliday(ctx, guildID, optString(sub.Options, "name"))
	case "list":
		return svc.listHolidays(ctx, guildID)
	}
	return "Invalid holiday command.", nil
}

func (svc *Service) addHoliday(ctx context.Context, guildID string, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	h := holiday.Holiday{
		Name:  strings.TrimSpace(optString(sub.Options, "name")),
		Date:  optString(sub.Options, "date"),
		Color: optString(sub.Options, "color"),
	}
	if err := holiday.Validate(h); err != nil {
		return err.Error(), nil
	}

	reply := ""
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		if doc.Sub("holidays").Has(h.Name) {
			reply = fmt.Sprintf("Holiday %q already exists. Use `/seasonal holiday edit` to change it.", h.Name)
			return fmt.Errorf("holiday exists")
		}
		writeHoliday(doc, h)
		return nil
	})
	if reply != "" {
		return reply, nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added holiday %q on %s.", h.Name, h.Date), nil
}

func (svc *Service) editHoliday(ctx context.Context, guildID string, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	query := optString(sub.Options, "name")
	date := optString(sub.Options, "date")
	color := optString(sub.Options, "color")
	if date == "" && color == "" {
		return "Nothing to change: pass a date or a color.", nil
	}
	if date != "" {
		if err := holiday.ValidateDate(date); err != nil {
			return err.Error(), nil
		}
	}
	if color != "" {
		if err := holiday.ValidateColor(color); err != nil {
			return err.Error(), nil
		}
	}

	reply := ""
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		name, h, ok := holiday.Find(holidaysFrom(doc), query)
		if !ok {
			reply = fmt.Sprintf("No holiday matching %q found.", query)
			return fmt.Errorf("holiday not found")
		}
		if date != "" {
			h.Date = date
		}
		if color != "" {
			h.Color = color
		}
		writeHoliday(doc, h)
		reply = fmt.Sprintf("Updated holiday %q.", name)
		return nil
	})
	if reply != "" {
		return reply, nil
	}
	return "", err
}

func (svc *Service) removeHoliday(ctx context.Context, guildID, query string) (string, error) {
	reply := ""
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		name, _, ok := holiday.Find(holidaysFrom(doc), query)
		if !ok || !removeHoliday(doc, name) {
			reply = fmt.Sprintf("No holiday matching %q found.", query)
			return fmt.Errorf("holiday not found")
		}
		reply = fmt.Sprintf("Removed holiday %q.", name)
		return nil
	})
	if reply != "" {
		return reply, nil
	}
	return "", err
}

func (svc *Service) listHolidays(ctx context.Context, guildID string) (string, error) {
	doc, err := svc.store.Guild(ctx, guildID, CogName)
	if err != nil {
		return "", err
	}
	holidays := holidaysFrom(doc)
	if len(holidays) == 0 {
		return "No holidays configured.", nil
	}

	today := svc.checker.now().UTC()
	upcoming, _ := holiday.FindUpcoming(holidays, today)

	var b strings.Builder
	b.WriteString("Holidays by proximity:\n")
	for _, entry := range holiday.Sorted(holidays, today) {
		marker := ""
		if entry.Name == upcoming {
			marker = " ← next"
		}
		h := holidays[entry.Name]
		switch {
		case entry.Days == 0:
			fmt.Fprintf(&b, "• **%s** (%s) — today!%s\n", entry.Name, h.Date, marker)
		case entry.Days > 0:
			fmt.Fprintf(&b, "• **%s** (%s) — in %d days%s\n", entry.Name, h.Date, entry.Days, marker)
		default:
			fmt.Fprintf(&b, "• **%s** (%s) — %d days ago\n", entry.Name, h.Date, -entry.Days)
		}
	}
	return b.String(), nil
}

func (svc *Service) handleAnnounce(ctx context.Context, i *discordgo.InteractionCreate, group *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid announce command.", nil
	}
	guildID := i.GuildID
	sub := group.Options[0]
	switch sub.Name {
	case "setchannel":
		channelID := ""
		for _, opt := range sub.Options {
			if opt.Name == "channel" {
				channelID = opt.Value.(string)
			}
		}
		if channelID == "" {
			return "Pass a channel.", nil
		}
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			doc.Sub("announcement_config")["channel_id"] = channelID
			return nil
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Announcements will go to <#%s>.", channelID), nil

	case "enable", "disable":
		enabled := sub.Name == "enable"
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			doc.Sub("announcement_config")["enabled"] = enabled
			return nil
		})
		if err != nil {
			return "", err
		}
		if enabled {
			return "Holiday announcements enabled.", nil
		}
		return "Holiday announcements disabled.", nil

	case "mention":
		mentionType := optString(sub.Options, "type")
		roleID := ""
		for _, opt := range sub.Options {
			if opt.Name == "role" {
				roleID = opt.Value.(string)
			}
		}
		if mentionType == "role" && roleID == "" {
			return "Pick the role to mention.", nil
		}
		if mentionType == "none" {
			mentionType = ""
		}
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			cfg := doc.Sub("announcement_config")
			cfg["mention_type"] = mentionType
			cfg["mention_id"] = roleID
			return nil
		})
		if err != nil {
			return "", err
		}
		return "Mention settings updated.", nil

	case "preview":
		return svc.previewAnnouncement(ctx, i, sub)

	case "status":
		doc, err := svc.store.Guild(ctx, guildID, CogName)
		if err != nil {
			return "", err
		}
		cfg := doc.Sub("announcement_config")
		state := "disabled"
		if cfg.Bool("enabled", false) {
			state = "enabled"
		}
		channel := cfg.String("channel_id", "")
		if channel == "" {
			channel = "not set"
		} else {
			channel = fmt.Sprintf("<#%s>", channel)
		}
		mention := cfg.String("mention_type", "")
		if mention == "" {
			mention = "none"
		}
		dryRun := "off"
		if doc.Bool("dry_run_mode", true) {
			dryRun = "on"
		}
		return fmt.Sprintf("Announcements: %s\nChannel: %s\nMention: %s\nDry run: %s", state, channel, mention, dryRun), nil
	}
	return "Invalid announce command.", nil
}

func (svc *Service) previewAnnouncement(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	doc, err := svc.store.Guild(ctx, i.GuildID, CogName)
	if err != nil {
		return "", err
	}
	name, h, ok := holiday.Find(holidaysFrom(doc), optString(sub.Options, "name"))
	if !ok {
		return fmt.Sprintf("No holiday matching %q found.", optString(sub.Options, "name")), nil
	}
	phase := holiday.Phase(optString(sub.Options, "phase"))

	serverName := ""
	if g, err := svc.checker.guildByID(i.GuildID); err == nil {
		serverName = g.Name
	}
	days, err := holiday.DaysUntilNext(h.Date, svc.checker.now().UTC())
	if err != nil {
		return "", err
	}
	embed, err := svc.announcer.Preview(ctx, i.GuildID, serverName, h, phase, days)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Preview for %q (%s):\n**%s**\n%s", name, phase, embed.Title, embed.Description), nil
}

func (svc *Service) handleCheck(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	guild := GuildInfo{ID: i.GuildID}
	if g, err := svc.checker.guildByID(i.GuildID); err == nil {
		guild = g
	}
	if err := svc.checker.CheckGuild(ctx, guild, true); err != nil {
		return "", err
	}
	return "Checked holidays for this server.", nil
}

func (svc *Service) handleForceHoliday(ctx context.Context, i *discordgo.InteractionCreate, query string) (string, error) {
	guild := GuildInfo{ID: i.GuildID}
	if g, err := svc.checker.guildByID(i.GuildID); err == nil {
		guild = g
	}
	return svc.checker.ForceHoliday(ctx, guild, query)
}

func (svc *Service) handleBanner(ctx context.Context, guildID string, enabled bool) (string, error) {
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		doc.Sub("banner_management")["enabled"] = enabled
		return nil
	})
	if err != nil {
		return "", err
	}
	if enabled {
		return "Holiday banner swaps enabled.", nil
	}
	return "Holiday banner swaps disabled.", nil
}

func (svc *Service) handleDryRun(ctx context.Context, guildID string, enabled bool) (string, error) {
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		doc["dry_run_mode"] = enabled
		return nil
	})
	if err != nil {
		return "", err
	}
	if enabled {
		return "Dry-run mode enabled: role actions will be simulated.", nil
	}
	return "Dry-run mode disabled: role actions are live.", nil
}

func (svc *Service) handleOpt(ctx context.Context, guildID, userID string, optOut bool) (string, error) {
	changed := false
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		changed = setOptOut(doc, userID, optOut)
		return nil
	})
	if err != nil {
		return "", err
	}
	switch {
	case optOut && changed:
		return "You are opted out of holiday roles.", nil
	case optOut:
		return "You were already opted out.", nil
	case changed:
		return "Welcome back! You will receive holiday roles again.", nil
	default:
		return "You were not opted out.", nil
	}
}

// guildByID resolves guild info from the checker's guild source.
func (c *Checker) guildByID(guildID string) (GuildInfo, error) {
	for _, g := range c.guilds() {
		if g.ID == guildID {
			return g, nil
		}
	}
	return GuildInfo{}, fmt.Errorf("guild %s not visible to the session", guildID)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Default().Error("error responding to interaction", "error", err.Error())
		return
	}
	metrics.DiscordMessageSent.Add(1)
}

func optString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func optBool(opts []*discordgo.ApplicationCommandInteractionDataOption, name string, fallback bool) bool {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.BoolValue()
		}
	}
	return fallback
}
