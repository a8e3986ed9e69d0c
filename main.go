package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/announce"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/database"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/discord"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/movieclub"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/seasonalroles"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/secrets"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/sociallink"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/weatherchannel"
)

func main() {
	if err := secrets.Init(); err != nil {
		log.Fatalln(err)
	}
	logger := logging.NewLogger(logging.LogLevel(secrets.LogLevel), os.Stdout)

	server := metrics.SetupServer()
	go server.Run()

	db, err := database.NewPostgres(logger)
	if err != nil {
		log.Fatalln(err)
	}
	defer db.Close()

	store := config.NewStore(db, logger)
	store.RegisterDefaults(seasonalroles.CogName, seasonalroles.DefaultDocument())
	store.RegisterDefaults(announce.CogName, announce.DefaultDocument())
	store.RegisterDefaults(movieclub.CogName, movieclub.DefaultDocument())
	store.RegisterDefaults(sociallink.CogName, sociallink.DefaultDocument())
	store.RegisterDefaults(weatherchannel.CogName, weatherchannel.DefaultDocument())

	client, err := discord.New(secrets.DiscordToken, logger)
	if err != nil {
		log.Fatalln(err)
	}
	session := client.Session

	// The LLM provider is optional; without a base URL the /ask command and
	// weather summaries are disabled.
	var provider llm.Provider
	if secrets.OpenAIBaseURL != "" {
		p, err := llm.NewOpenAI(secrets.OpenAIBaseURL, secrets.OpenAIKey, os.Getenv("LLM_MODEL"))
		if err != nil {
			log.Fatalln(err)
		}
		provider = p
	}

	// seasonalroles
	announcer := seasonalroles.NewAnnouncer(session, store, logger)
	roles := seasonalroles.NewRoleManager(session, logger)
	banners := seasonalroles.NewBannerManager(session, store, logger)
	checker := seasonalroles.NewChecker(store, roles, announcer, banners, client.Guilds, logger)
	seasonal := seasonalroles.NewService(store, checker, announcer, roles, logger)

	// announce
	announceGuilds := func() []announce.GuildInfo {
		out := make([]announce.GuildInfo, 0)
		for _, g := range client.Guilds() {
			out = append(out, announce.GuildInfo{ID: g.ID, Name: g.Name})
		}
		return out
	}
	announceSvc := announce.NewService(store, session, announceGuilds, logger)
	scheduler := announce.NewScheduler(store, session, announceGuilds, logger)

	// movieclub
	movies := movieclub.NewService(store, movieclub.NewTMDBClient(secrets.TMDBAPIKey), movieclub.NewLetterboxdClient(), logger)

	// sociallink
	progression := sociallink.DefaultProgression()
	bus := sociallink.NewBus(logger)
	social := sociallink.NewService(store, bus, progression, logger)
	notifier, err := sociallink.NewNotifier(progression, sociallink.DefaultLevelHandlers(session, social, progression, logger))
	if err != nil {
		log.Fatalln(err)
	}
	bus.Subscribe(sociallink.EventLevelUp, notifier.HandleLevelUp)
	listeners := sociallink.NewListeners(store, social, bus, sociallink.NewVoiceTracker(), session, logger)
	socialCommands := sociallink.NewCommands(social, progression, logger)

	// weatherchannel
	cities, err := weatherchannel.LoadCities()
	if err != nil {
		log.Fatalln(err)
	}
	weatherGuilds := func() []weatherchannel.GuildInfo {
		out := make([]weatherchannel.GuildInfo, 0)
		for _, g := range client.Guilds() {
			out = append(out, weatherchannel.GuildInfo{ID: g.ID, Name: g.Name})
		}
		return out
	}
	summarizer := weatherchannel.NewSummarizer(provider, logger)
	providers := weatherchannel.DefaultProviders(&http.Client{Timeout: 30 * time.Second})
	weather := weatherchannel.NewService(store, providers, cities, summarizer, session, weatherGuilds, logger)

	cogs := discord.Cogs{
		Seasonal:            seasonal,
		Announce:            announceSvc,
		Movieclub:           movies,
		Sociallink:          socialCommands,
		Weather:             weather,
		SociallinkListeners: listeners,
	}
	if provider != nil {
		chain := llm.NewChain(logger, llm.Node{Name: "answer", Provider: provider})
		cogs.Ask = llm.NewAskService(chain, logger)
	}

	if err := client.Start(secrets.GuildID, cogs); err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go checker.Run(ctx)
	go scheduler.Run(ctx)
	go weather.Run(ctx)

	logger.Info("bot is running", "guildID", secrets.GuildID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	if err := client.Close(); err != nil {
		logger.Error("error closing discord session", "error", err.Error())
	}
}
