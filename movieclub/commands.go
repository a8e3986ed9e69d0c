package movieclub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// overviewLimit caps the synopsis shown under a movie lookup.
const overviewLimit = 300

// reviewLimit caps the quoted Letterboxd review text.
const reviewLimit = 250

// ComponentPrefix marks this cog's button customIDs.
const ComponentPrefix = "movieclub_date:"

// Service is the movieclub cog.
type Service struct {
	store      *config.Store
	tmdb       *TMDBClient
	letterboxd *LetterboxdClient
	logger     *logging.Logger
	now        func() time.Time
}

// NewService wires the movieclub commands.
func NewService(store *config.Store, tmdb *TMDBClient, letterboxd *LetterboxdClient, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:      store,
		tmdb:       tmdb,
		letterboxd: letterboxd,
		logger:     logger.WithCog(CogName),
		now:        time.Now,
	}
}

// AddCommands returns the slash commands this cog registers.
func (svc *Service) AddCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "movieclub",
			Description: "Movie club polls and movie info",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "poll",
					Description: "Date polls",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "start",
							Description: "Start a date poll for the next movie night",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "month", Description: "Target month like 2026-09 (next suitable month if omitted)"},
							},
						},
						{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "end", Description: "Close the active poll and report the winner"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "movie",
					Description: "Look up movie details",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Movie title", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setchannel",
					Description: "Set the movie club channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for polls", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "settargetrole",
					Description: "Set the role counted for participation",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Members expected to vote", Required: true},
					},
				},
			},
		},
	}
}

// HandleMovieclub dispatches the /movieclub command tree.
func (svc *Service) HandleMovieclub(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respond(s, i, "This command only works inside a server.")
		return
	}
	ctx := context.Background()
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respond(s, i, "Invalid movieclub command.")
		return
	}
	top := data.Options[0]

	var reply string
	var err error
	switch top.Name {
	case "poll":
		reply, err = svc.handlePoll(ctx, s, i, top)
	case "movie":
		reply, err = svc.handleMovieInfo(ctx, optString(top.Options, "name"))
	case "setchannel":
		reply, err = svc.setID(ctx, i.GuildID, "channel_id", optValue(top.Options, "channel"), "Movie club channel set to <#%s>.")
	case "settargetrole":
		reply, err = svc.setID(ctx, i.GuildID, "target_role_id", optValue(top.Options, "role"), "Participation is now measured against <@&%s>.")
	default:
		reply = "Invalid movieclub command."
	}
	if err != nil {
		svc.logger.Error("movieclub command failed", "subcommand", top.Name, "guildID", i.GuildID, "error", err.Error())
		metrics.DiscordCommandErrors.WithLabelValues("movieclub").Inc()
		reply = "Something went wrong. Please try again later."
	}
	respond(s, i, reply)
}

func (svc *Service) setID(ctx context.Context, guildID, key, value, format string) (string, error) {
	if value == "" {
		return "Missing value.", nil
	}
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		doc[key] = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(format, value), nil
}

func (svc *Service) handlePoll(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, group *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if len(group.Options) == 0 {
		return "Invalid poll command.", nil
	}
	sub := group.Options[0]
	switch sub.Name {
	case "start":
		return svc.startPoll(ctx, s, i, optString(sub.Options, "month"))
	case "end":
		return svc.endPoll(ctx, s, i.GuildID)
	}
	return "Invalid poll command.", nil
}

func (svc *Service) startPoll(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, monthArg string) (string, error) {
	doc, err := svc.store.Guild(ctx, i.GuildID, CogName)
	if err != nil {
		return "", err
	}
	if doc.String("active_poll", "") != "" {
		return "A date poll is already running. End it first with `/movieclub poll end`.", nil
	}
	channelID := doc.String("channel_id", "")
	if channelID == "" {
		channelID = i.ChannelID
	}

	today := svc.now().UTC()
	var dates []time.Time
	if monthArg != "" {
		target, err := time.Parse("2006-01", monthArg)
		if err != nil {
			return fmt.Sprintf("Invalid month %q, expected YYYY-MM.", monthArg), nil
		}
		dates = PollDates(target.Year(), target.Month(), today)
	} else {
		dates = PollDates(0, 0, today)
	}
	if len(dates) < 3 {
		return "There are not enough dates available to start a poll.", nil
	}

	poll := NewPoll(dates)
	poll.ChannelID = channelID

	targetRoleID := doc.String("target_role_id", "")
	msg, err := s.ChannelMessageSendComplex(channelID, svc.pollMessage(poll, svc.participationLine(s, i.GuildID, poll, targetRoleID)))
	if err != nil {
		return "", fmt.Errorf("posting poll: %w", err)
	}
	metrics.DiscordMessageSent.Add(1)
	poll.MessageID = msg.ID

	err = svc.store.Update(ctx, i.GuildID, CogName, func(doc config.Document) error {
		doc.Sub("polls")[poll.ID] = poll.encode()
		doc["active_poll"] = poll.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Date poll started in <#%s> with %d candidate dates.", channelID, len(dates)), nil
}

func (svc *Service) endPoll(ctx context.Context, s *discordgo.Session, guildID string) (string, error) {
	reply := ""
	err := svc.store.Update(ctx, guildID, CogName, func(doc config.Document) error {
		pollID := doc.String("active_poll", "")
		if pollID == "" {
			reply = "No poll is running."
			return fmt.Errorf("no active poll")
		}
		poll := pollFrom(doc.Sub("polls").Sub(pollID), pollID)
		poll.Open = false
		doc.Sub("polls")[pollID] = poll.encode()
		doc["active_poll"] = ""

		winner, ok := poll.Winner()
		if !ok {
			reply = "Poll closed. Nobody voted, so no date was picked."
			return nil
		}
		reply = fmt.Sprintf("Poll closed! Movie night is **%s** with %d votes.", PresentableDate(winner), poll.VoteCount(winner))
		if poll.ChannelID != "" {
			if _, err := s.ChannelMessageSendComplex(poll.ChannelID, &discordgo.MessageSend{Content: reply}); err == nil {
				metrics.DiscordMessageSent.Add(1)
			}
		}
		return nil
	})
	if reply != "" {
		return reply, nil
	}
	return "", err
}

func (svc *Service) handleMovieInfo(ctx context.Context, name string) (string, error) {
	movie, err := svc.tmdb.Search(ctx, name)
	if err != nil {
		// Lookup failures surface inline rather than as command errors.
		return fmt.Sprintf("Could not fetch movie details: %v", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%d)\n", movie.Title, movie.Year)
	if len(movie.Genres) > 0 {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(movie.Genres, ", "))
	}
	if movie.Rating > 0 {
		fmt.Fprintf(&b, "TMDB rating: %.1f/10\n", movie.Rating)
	}
	slug := FilmSlug(movie.Title)
	if rating, err := svc.letterboxd.AverageRating(ctx, slug); err == nil {
		fmt.Fprintf(&b, "Letterboxd rating: %s\n", rating)
	}
	if movie.Overview != "" {
		fmt.Fprintf(&b, "%s\n", llm.Truncate(movie.Overview, overviewLimit))
	}
	if reviews, err := svc.letterboxd.Reviews(ctx, slug); err == nil && len(reviews) > 0 {
		r := reviews[0]
		if r.Text != "" {
			quoted := strings.ReplaceAll(r.Text, "\n", " ")
			fmt.Fprintf(&b, "> %s\n— %s (%s)\n", llm.Truncate(quoted, reviewLimit), r.Reviewer, r.Rating)
		}
	}
	if movie.PosterURL != "" {
		b.WriteString(movie.PosterURL)
	}
	return b.String(), nil
}

// memberLister is the slice of the session the participation counter needs.
type memberLister interface {
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// countRoleMembers pages through the guild's members and counts holders of
// one role.
func countRoleMembers(s memberLister, guildID, roleID string) (int, error) {
	const pageSize = 1000
	count := 0
	after := ""
	for {
		members, err := s.GuildMembers(guildID, after, pageSize)
		if err != nil {
			return 0, fmt.Errorf("listing members for guild %s: %w", guildID, err)
		}
		for _, m := range members {
			for _, r := range m.Roles {
				if r == roleID {
					count++
					break
				}
			}
		}
		if len(members) < pageSize {
			return count, nil
		}
		after = members[len(members)-1].User.ID
	}
}

// participationLine renders how many distinct members have voted against the
// size of the guild's target role, when one is configured.
func (svc *Service) participationLine(s memberLister, guildID string, poll Poll, targetRoleID string) string {
	voters := len(poll.UniqueVoters())
	if targetRoleID == "" || s == nil {
		return fmt.Sprintf("%d members have voted", voters)
	}
	total, err := countRoleMembers(s, guildID, targetRoleID)
	if err != nil {
		svc.logger.Warn("counting target role members failed", "guildID", guildID, "roleID", targetRoleID, "error", err.Error())
		return fmt.Sprintf("%d members have voted", voters)
	}
	return fmt.Sprintf("%d of %d expected members have voted", voters, total)
}

// pollMessage renders the poll embed, its vote buttons, and the
// participation footer.
func (svc *Service) pollMessage(poll Poll, participation string) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       "🎬 Movie Night Date Poll",
		Description: "Vote for every date you can make. Votes toggle, so tap again to remove one.",
	}
	if participation != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: participation}
	}

	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, date := range SortedDateKeys(poll.Dates) {
		row = append(row, discordgo.Button{
			Label:    fmt.Sprintf("%s (%d)", PresentableDate(date), poll.VoteCount(date)),
			Style:    discordgo.PrimaryButton,
			CustomID: ComponentPrefix + poll.ID + ":" + date,
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}

	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: rows,
	}
}

// HandleComponent processes poll button presses. The customID carries the
// poll ID and date; the vote toggles and the poll message refreshes its
// counts.
func (svc *Service) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	parts := strings.Split(strings.TrimPrefix(customID, ComponentPrefix), ":")
	if len(parts) != 2 {
		return
	}
	pollID, date := parts[0], parts[1]
	userID := ""
	if i.Interaction.Member != nil && i.Interaction.Member.User != nil {
		userID = i.Interaction.Member.User.ID
	}
	if userID == "" {
		return
	}
	ctx := context.Background()

	var poll Poll
	voted := false
	targetRoleID := ""
	err := svc.store.Update(ctx, i.GuildID, CogName, func(doc config.Document) error {
		targetRoleID = doc.String("target_role_id", "")
		if !doc.Sub("polls").Has(pollID) {
			return fmt.Errorf("poll %s not found", pollID)
		}
		poll = pollFrom(doc.Sub("polls").Sub(pollID), pollID)
		if !poll.Open {
			return fmt.Errorf("poll %s is closed", pollID)
		}
		var err error
		voted, err = poll.ToggleVote(date, userID)
		if err != nil {
			return err
		}
		doc.Sub("polls")[pollID] = poll.encode()
		return nil
	})
	if err != nil {
		svc.logger.Warn("vote toggle failed", "guildID", i.GuildID, "pollID", pollID, "error", err.Error())
		respond(s, i, "This poll is no longer active.")
		return
	}
	metrics.MoviePollVotesRecorded.Add(1)

	// Refresh button labels and the participation footer with the new counts.
	edit := svc.pollMessage(poll, svc.participationLine(s, i.GuildID, poll, targetRoleID))
	if _, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    poll.ChannelID,
		ID:         poll.MessageID,
		Embeds:     &edit.Embeds,
		Components: &edit.Components,
	}); err != nil {
		svc.logger.Warn("failed to refresh poll message", "pollID", pollID, "error", err.Error())
	}

	action := fmt.Sprintf("Voted for `%s`", PresentableDate(date))
	if !voted {
		action = fmt.Sprintf("Vote removed for `%s`", PresentableDate(date))
	}
	availability := "None (SAD!)"
	if dates := poll.VotedDates(userID); len(dates) > 0 {
		pretty := make([]string, len(dates))
		for idx, d := range dates {
			pretty[idx] = PresentableDate(d)
		}
		availability = strings.Join(pretty, "\n- ")
	}
	respond(s, i, fmt.Sprintf("%s.\n\nAvailability:\n- %s", action, availability))
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

func optValue(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			if id, ok := opt.Value.(string); ok {
				return id
			}
		}
	}
	return ""
}
