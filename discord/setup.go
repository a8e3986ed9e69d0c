// package discord is the glue between the gateway and the cogs: one session,
// one command registry, one dispatch map.
package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/announce"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/movieclub"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/seasonalroles"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/sociallink"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/weatherchannel"
)

// Cogs bundles the command surfaces and listeners the client dispatches to.
// A nil cog is simply not registered.
type Cogs struct {
	Seasonal   *seasonalroles.Service
	Announce   *announce.Service
	Movieclub  *movieclub.Service
	Sociallink *sociallink.Commands
	Weather    *weatherchannel.Service
	Ask        *llm.AskService

	SociallinkListeners *sociallink.Listeners
}

// Client owns the Discord session and routes interactions to the cogs.
type Client struct {
	Session *discordgo.Session
	cogs    Cogs
	logger  *logging.Logger
}

// New creates the session without opening it, so the cogs can be constructed
// against it before Start.
func New(token string, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	return &Client{Session: session, logger: logger}, nil
}

// Start opens the gateway connection, registers every cog's slash commands,
// and installs the dispatch handlers. Commands are scoped to guildID when it
// is set, which makes them visible immediately during development.
func (c *Client) Start(guildID string, cogs Cogs) error {
	c.cogs = cogs

	if err := c.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection to discord: %w", err)
	}

	for _, command := range c.AddCommands() {
		if _, err := c.Session.ApplicationCommandCreate(c.Session.State.User.ID, guildID, command); err != nil {
			return fmt.Errorf("error creating command %s: %w", command.Name, err)
		}
	}

	handlers := c.MakeCommandHandlers()
	c.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			name := i.ApplicationCommandData().Name
			h, ok := handlers[name]
			if !ok {
				return
			}
			metrics.DiscordCommandTotal.WithLabelValues(name).Inc()
			start := time.Now()
			h(s, i)
			metrics.DiscordCommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		case discordgo.InteractionMessageComponent:
			c.handleComponent(s, i)
		}
	})

	c.registerListeners(c.Session)
	return nil
}

// Guilds lists the guilds the session currently sees, in the shape the cog
// loops consume.
func (c *Client) Guilds() []seasonalroles.GuildInfo {
	out := make([]seasonalroles.GuildInfo, 0, len(c.Session.State.Guilds))
	for _, g := range c.Session.State.Guilds {
		out = append(out, seasonalroles.GuildInfo{ID: g.ID, Name: g.Name})
	}
	return out
}

// Close shuts down the gateway connection.
func (c *Client) Close() error {
	return c.Session.Close()
}

func (c *Client) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	if c.cogs.Movieclub != nil && strings.HasPrefix(customID, movieclub.ComponentPrefix) {
		c.cogs.Movieclub.HandleComponent(s, i)
		return
	}
	c.logger.Warn("component interaction with no owner", "customID", customID)
}

func (c *Client) registerListeners(session *discordgo.Session) {
	if c.cogs.Seasonal != nil {
		session.AddHandler(c.cogs.Seasonal.HandleGuildMemberAdd)
	}
	if c.cogs.SociallinkListeners != nil {
		session.AddHandler(c.cogs.SociallinkListeners.HandleMessageCreate)
		session.AddHandler(c.cogs.SociallinkListeners.HandleReactionAdd)
		session.AddHandler(c.cogs.SociallinkListeners.HandleVoiceStateUpdate)
		session.AddHandler(c.cogs.SociallinkListeners.HandleUserUpdate)
	}
}
