package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// AddCommands aggregates every registered cog's slash commands plus the
// built-in help command.
func (c *Client) AddCommands() []*discordgo.ApplicationCommand {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "help",
			Description: "List what the bot can do",
		},
	}
	if c.cogs.Seasonal != nil {
		commands = append(commands, c.cogs.Seasonal.AddCommands()...)
	}
	if c.cogs.Announce != nil {
		commands = append(commands, c.cogs.Announce.AddCommands()...)
	}
	if c.cogs.Movieclub != nil {
		commands = append(commands, c.cogs.Movieclub.AddCommands()...)
	}
	if c.cogs.Sociallink != nil {
		commands = append(commands, c.cogs.Sociallink.AddCommands()...)
	}
	if c.cogs.Weather != nil {
		commands = append(commands, c.cogs.Weather.AddCommands()...)
	}
	if c.cogs.Ask != nil {
		commands = append(commands, c.cogs.Ask.AddCommands()...)
	}
	return commands
}

// MakeCommandHandlers returns a map of command names to their respective
// functions.
func (c *Client) MakeCommandHandlers() map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	handlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"help": c.help,
	}
	if c.cogs.Seasonal != nil {
		handlers["seasonal"] = c.cogs.Seasonal.HandleSeasonal
	}
	if c.cogs.Announce != nil {
		handlers["announce"] = c.cogs.Announce.HandleAnnounce
	}
	if c.cogs.Movieclub != nil {
		handlers["movieclub"] = c.cogs.Movieclub.HandleMovieclub
	}
	if c.cogs.Sociallink != nil {
		handlers["sociallink"] = c.cogs.Sociallink.HandleSociallink
	}
	if c.cogs.Weather != nil {
		handlers["weather"] = c.cogs.Weather.HandleWeather
	}
	if c.cogs.Ask != nil {
		handlers["ask"] = c.cogs.Ask.HandleAsk
	}
	return handlers
}

func (c *Client) help(s *discordgo.Session, i *discordgo.InteractionCreate) {
	lines := []string{"Here is what I can do:"}
	descriptions := map[string]string{
		"seasonal":   "`/seasonal` — holiday roles and announcements",
		"announce":   "`/announce` — server announcements and scheduling",
		"movieclub":  "`/movieclub` — movie night date polls and movie info",
		"sociallink": "`/sociallink` — confidant ranks and journals",
		"weather":    "`/weather` — city weather reports",
		"ask":        "`/ask` — ask the bot a question",
	}
	handlers := c.MakeCommandHandlers()
	for _, name := range []string{"seasonal", "announce", "movieclub", "sociallink", "weather", "ask"} {
		if _, ok := handlers[name]; ok {
			lines = append(lines, descriptions[name])
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: strings.Join(lines, "\n"),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.logger.Error("error responding to help command", "error", err.Error())
		return
	}
	metrics.DiscordMessageSent.Add(1)
}
