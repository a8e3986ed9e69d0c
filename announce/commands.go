package announce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// Service is the announce cog's command surface.
type Service struct {
	store   *config.Store
	session Sender
	logger  *logging.Logger
	guilds  func() []GuildInfo
	now     func() time.Time
}

// NewService wires the announce commands.
func NewService(store *config.Store, session Sender, guilds func() []GuildInfo, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, session: session, logger: logger.WithCog(CogName), guilds: guilds, now: time.Now}
}

func (svc *Service) guildName(guildID string) string {
	for _, g := range svc.guilds() {
		if g.ID == guildID {
			return g.Name
		}
	}
	return guildID
}

// AddCommands returns the slash commands this cog registers.
func (svc *Service) AddCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "announce",
			Description: "Send and schedule server announcements",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "channel",
					Description: "Manage named announcement channels",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Register a named announcement channel",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Channel nickname", Required: true},
								{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Target channel", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove a named announcement channel",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Channel nickname", Required: true},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List announcement channels"},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "default",
							Description: "Set the default announcement channel",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Default channel", Required: true},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "send",
					Description: "Send an announcement now",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "text",
							Description: "Send a text announcement",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Announcement text", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "channel", Description: "Named channel (default if omitted)"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "embed",
							Description: "Send an embed announcement",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Embed title", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Embed body", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "channel", Description: "Named channel (default if omitted)"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "template",
					Description: "Manage reusable announcement templates",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Save a text template",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "content", Description: "Template text (placeholders: {server_name}, {channel_name}, {date})", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "addembed",
							Description: "Save an embed template",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Embed title", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Embed body", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Delete a template",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List templates"},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "use",
							Description: "Send a template now",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "channel", Description: "Named channel (default if omitted)"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "schedule",
					Description: "Schedule announcements",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Queue an announcement",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "RFC 3339 time or +duration like +2h30m", Required: true},
								{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Announcement text"},
								{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Template name to send instead of text"},
								{Type: discordgo.ApplicationCommandOptionString, Name: "channel", Description: "Named channel (default if omitted)"},
								{
									Type: discordgo.ApplicationCommandOptionString, Name: "recurrence", Description: "Repeat cadence",
									Choices: []*discordgo.ApplicationCommandOptionChoice{
										{Name: "daily", Value: RecurDaily},
										{Name: "weekly", Value: RecurWeekly},
									},
								},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List queued announcements"},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "cancel",
							Description: "Cancel a queued announcement",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Announcement ID", Required: true},
							},
						},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "history", Description: "Show recent announcements"},
			},
		},
	}
}

// HandleAnnounce dispatches the /announce command tree.
func (svc *Service) HandleAnnounce(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Interaction.Member == nil || i.Interaction.Member.User == nil {
		respond(s, i, "This command only works inside a server.")
		return
	}
	ctx := context.Background()

	if reply, ok := svc.gate(ctx, i.GuildID, i.Interaction.Member); !ok {
		respond(s, i, reply)
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respond(s, i, "Invalid announce command.")
		return
	}
	top := data.Options[0]

	var reply string
	var err error
	switch top.Name {
	case "channel":
		reply, err = svc.handleChannel(ctx, top, i.GuildID)
	case "send":
		reply, err = svc.handleSend(ctx, top, i)
	case "template":
		reply, err = svc.handleTemplate(ctx, top, i)
	case "schedule":
		reply, err = svc.handleSchedule(ctx, top, i)
	case "history":
		reply, err = svc.handleHistory(ctx, i.GuildID)
	default:
		reply = "Invalid announce command."
	}
	if err != nil {
		svc.logger.Error("announce command failed", "subcommand", top.Name, "guildID", i.GuildID, "error", err.Error())
		metrics.DiscordCommandErrors.WithLabelValues("announce").Inc()
		reply = "Something went wrong. Please try again later."
	}
	respond(s, i, reply)
}

// gate resolves the permission check into the reply for a member who may not
// proceed. A failing settings read denies: announcements are a privileged
// surface, so an unreadable allow-list must not open it up.
func (svc *Service) gate(ctx context.Context, guildID string, m *discordgo.Member) (string, bool) {
	allowed, err := svc.isAllowed(ctx, guildID, m)
	if err != nil {
		svc.logger.Error("announce permission check failed", "guildID", guildID, "error", err.Error())
		metrics.DiscordCommandErrors.WithLabelValues("announce").Inc()
		return "Could not verify your permissions. Please try again later.", false
	}
	if !allowed {
		return "You do not have permission to manage announcements.", false
	}
	return "", true
}

// isAllowed checks the guild's permission lists. Members with Manage Server
// always pass; otherwise the member must be listed or hold a listed role.
func (svc *Service) isAllowed(ctx context.Context, guildID string, m *discordgo.Member) (bool, error) {
	if m.Permissions&discordgo.PermissionManageServer != 0 {
		return true, nil
	}
	doc, err := svc.store.Guild(ctx, guildID, CogName)
	if err != nil {
		return false, err
	}
	for _, id := range doc.StringSlice("allowed_users") {
		if id == m.User.ID {
			return true, nil
		}
	}
	allowedRoles := doc.StringSlice("allowed_roles")
	for _, roleID := range m.Roles {
		for _, allowed := range allowedRoles {
			if roleID == allowed {
				return true, nil
			}
		}
	}
	return false, nil
}

func (svc *Service) handleChannel(ctx context.Context, group *discordgo.ApplicationCommandInteractionDataOption, guildID string) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid channel command.", nil
	}
	sub := group.Options[0]
	switch sub.Name {
	case "add":
		name := optString(sub.Options, "name")
		channelID := optChannel(sub.Options, "channel")
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			doc.Sub("channels")[name] = channelID
			return nil
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Channel %q now points at <#%s>.", name, channelID), nil

	case "remove":
		name := optString(sub.Options, "name")
		found := false
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			channels := doc.Sub("channels")
			found = channels.Has(name)
			delete(channels, name)
			return nil
		})
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("No channel named %q.", name), nil
		}
		return fmt.Sprintf("Removed channel %q.", name), nil

	case "list":
		doc, err := svc.store.Guild(ctx, guildID, CogName)
		if err != nil {
			return "", err
		}
		channels := doc.Sub("channels")
		if len(channels) == 0 {
			return "No announcement channels registered.", nil
		}
		var b strings.Builder
		b.WriteString("Announcement channels:\n")
		for name := range channels {
			fmt.Fprintf(&b, "• %s → <#%s>\n", name, channels.String(name, ""))
		}
		if def := doc.String("default_channel", ""); def != "" {
			fmt.Fprintf(&b, "Default: <#%s>\n", def)
		}
		return b.String(), nil

	case "default":
		channelID := optChannel(sub.Options, "channel")
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			doc["default_channel"] = channelID
			return nil
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Default announcement channel is now <#%s>.", channelID), nil
	}
	return "Invalid channel command.", nil
}

func (svc *Service) handleSend(ctx context.Context, group *discordgo.ApplicationCommandInteractionDataOption, i *discordgo.InteractionCreate) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid send command.", nil
	}
	sub := group.Options[0]

	doc, err := svc.store.Guild(ctx, i.GuildID, CogName)
	if err != nil {
		return "", err
	}
	channelID := resolveChannel(doc, optString(sub.Options, "channel"))
	if channelID == "" {
		return "No target channel: register one with `/announce channel add` or set a default.", nil
	}

	var msg *discordgo.MessageSend
	switch sub.Name {
	case "text":
		msg = &discordgo.MessageSend{Content: optString(sub.Options, "message")}
	case "embed":
		msg = &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
			Title:       optString(sub.Options, "title"),
			Description: optString(sub.Options, "description"),
		}}}
	default:
		return "Invalid send command.", nil
	}

	if _, err := svc.session.ChannelMessageSendComplex(channelID, msg); err != nil {
		return "", fmt.Errorf("sending announcement: %w", err)
	}
	metrics.DiscordMessageSent.Add(1)

	err = svc.store.Update(ctx, i.GuildID, CogName, func(doc config.Document) error {
		appendHistory(doc, map[string]any{
			"channel_id": channelID,
			"content":    msg.Content,
			"sent_at":    svc.now().UTC().Format(time.RFC3339),
			"sent_by":    i.Interaction.Member.User.ID,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Announcement sent to <#%s>.", channelID), nil
}

func (svc *Service) handleTemplate(ctx context.Context, group *discordgo.ApplicationCommandInteractionDataOption, i *discordgo.InteractionCreate) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid template command.", nil
	}
	sub := group.Options[0]
	guildID := i.GuildID
	switch sub.Name {
	case "add", "addembed":
		name := optString(sub.Options, "name")
		t := Template{Kind: "text", Content: optString(sub.Options, "content")}
		if sub.Name == "addembed" {
			t = Template{
				Kind:        "embed",
				Title:       optString(sub.Options, "title"),
				Description: optString(sub.Options, "description"),
			}
		}
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			writeTemplate(doc, name, t)
			return nil
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Saved template %q.", name), nil

	case "remove":
		name := optString(sub.Options, "name")
		found := false
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			templates := doc.Sub("templates")
			found = templates.Has(name)
			delete(templates, name)
			return nil
		})
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("No template named %q.", name), nil
		}
		return fmt.Sprintf("Removed template %q.", name), nil

	case "list":
		doc, err := svc.store.Guild(ctx, guildID, CogName)
		if err != nil {
			return "", err
		}
		templates := doc.Sub("templates")
		if len(templates) == 0 {
			return "No templates saved.", nil
		}
		var b strings.Builder
		b.WriteString("Templates:\n")
		for name := range templates {
			fmt.Fprintf(&b, "• %s (%s)\n", name, templates.Sub(name).String("kind", "text"))
		}
		return b.String(), nil

	case "use":
		doc, err := svc.store.Guild(ctx, guildID, CogName)
		if err != nil {
			return "", err
		}
		name := optString(sub.Options, "name")
		if !doc.Sub("templates").Has(name) {
			return fmt.Sprintf("No template named %q.", name), nil
		}
		channelID := resolveChannel(doc, optString(sub.Options, "channel"))
		if channelID == "" {
			return "No target channel: register one with `/announce channel add` or set a default.", nil
		}

		rendered := templateFrom(doc.Sub("templates").Sub(name)).Render(svc.guildName(guildID), "", svc.now())
		msg := &discordgo.MessageSend{Content: rendered.Content}
		if rendered.Kind == "embed" {
			msg = &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
				Title:       rendered.Title,
				Description: rendered.Description,
				Color:       rendered.Color,
			}}}
		}
		if _, err := svc.session.ChannelMessageSendComplex(channelID, msg); err != nil {
			return "", fmt.Errorf("sending template %q: %w", name, err)
		}
		metrics.DiscordMessageSent.Add(1)
		return fmt.Sprintf("Sent template %q to <#%s>.", name, channelID), nil
	}
	return "Invalid template command.", nil
}

func (svc *Service) handleSchedule(ctx context.Context, group *discordgo.ApplicationCommandInteractionDataOption, i *discordgo.InteractionCreate) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid schedule command.", nil
	}
	sub := group.Options[0]
	guildID := i.GuildID
	switch sub.Name {
	case "add":
		at, err := ParseScheduleTime(optString(sub.Options, "time"), svc.now().UTC())
		if err != nil {
			return err.Error(), nil
		}
		message := optString(sub.Options, "message")
		template := optString(sub.Options, "template")
		if message == "" && template == "" {
			return "Pass a message or a template.", nil
		}

		reply := ""
		err = svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			channelID := resolveChannel(doc, optString(sub.Options, "channel"))
			if channelID == "" {
				reply = "No target channel: register one with `/announce channel add` or set a default."
				return fmt.Errorf("no channel")
			}
			if template != "" && !doc.Sub("templates").Has(template) {
				reply = fmt.Sprintf("No template named %q.", template)
				return fmt.Errorf("no template")
			}
			sch := NewScheduled(channelID, message, template, at, optString(sub.Options, "recurrence"), i.Interaction.Member.User.ID)
			raw, _ := doc["scheduled"].([]any)
			doc["scheduled"] = append(raw, sch.encode())
			reply = fmt.Sprintf("Scheduled announcement `%s` for %s.", sch.ID, at.Format(time.RFC1123))
			return nil
		})
		if reply != "" {
			return reply, nil
		}
		return "", err

	case "list":
		doc, err := svc.store.Guild(ctx, guildID, CogName)
		if err != nil {
			return "", err
		}
		raw, _ := doc["scheduled"].([]any)
		if len(raw) == 0 {
			return "Nothing scheduled.", nil
		}
		var b strings.Builder
		b.WriteString("Scheduled announcements:\n")
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sch := scheduledFrom(config.Document(entry))
			recur := sch.Recurrence
			if recur == "" {
				recur = "once"
			}
			fmt.Fprintf(&b, "• `%s` — %s in <#%s> (%s)\n", sch.ID, sch.At, sch.ChannelID, recur)
		}
		return b.String(), nil

	case "cancel":
		id := optString(sub.Options, "id")
		found := false
		err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
			raw, _ := doc["scheduled"].([]any)
			var remaining []any
			for _, item := range raw {
				entry, ok := item.(map[string]any)
				if ok && config.Document(entry).String("id", "") == id {
					found = true
					continue
				}
				remaining = append(remaining, item)
			}
			doc["scheduled"] = remaining
			return nil
		})
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("No scheduled announcement with ID `%s`.", id), nil
		}
		return fmt.Sprintf("Cancelled `%s`.", id), nil
	}
	return "Invalid schedule command.", nil
}

func (svc *Service) handleHistory(ctx context.Context, guildID string) (string, error) {
	doc, err := svc.store.Guild(ctx, guildID, CogName)
	if err != nil {
		return "", err
	}
	raw, _ := doc["history"].([]any)
	if len(raw) == 0 {
		return "No announcements sent yet.", nil
	}
	var b strings.Builder
	b.WriteString("Recent announcements:\n")
	// Newest last in storage; show newest first, capped for message size.
	shown := 0
	for idx := len(raw) - 1; idx >= 0 && shown < 10; idx-- {
		entry, ok := raw[idx].(map[string]any)
		if !ok {
			continue
		}
		e := config.Document(entry)
		content := e.String("content", "")
		if content == "" {
			content = "(template: " + e.String("template", "?") + ")"
		}
		if len(content) > 80 {
			content = content[:80] + "…"
		}
		fmt.Fprintf(&b, "• %s in <#%s>: %s\n", e.String("sent_at", "?"), e.String("channel_id", "?"), content)
		shown++
	}
	return b.String(), nil
}

// ParseScheduleTime accepts an RFC 3339 timestamp or a relative +duration
// offset. The result must be in the future.
func ParseScheduleTime(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "+") {
		d, err := time.ParseDuration(input[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration %q, expected something like +2h30m", input)
		}
		if d <= 0 {
			return time.Time{}, fmt.Errorf("duration must be positive")
		}
		return now.Add(d), nil
	}
	at, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC 3339 like 2026-09-01T15:00:00Z or a +duration", input)
	}
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("scheduled time must be in the future")
	}
	return at.UTC(), nil
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

func optChannel(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			if id, ok := opt.Value.(string); ok {
				return id
			}
		}
	}
	return ""
}
