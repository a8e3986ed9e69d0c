package metrics

import (
	"expvar"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Expvar metrics
	DiscordMessageSent      = expvar.NewInt("discord_message_sent")
	AnnouncementsSent       = expvar.NewInt("announcements_sent")
	AnnouncementsSkipped    = expvar.NewInt("announcements_skipped")
	HolidayRolesCreated     = expvar.NewInt("holiday_roles_created")
	HolidayRolesDeleted     = expvar.NewInt("holiday_roles_deleted")
	WeatherFetchSuccess     = expvar.NewInt("weather_fetch_success")
	WeatherFetchFail        = expvar.NewInt("weather_fetch_fail")
	EmptyLLMResponseCount   = expvar.NewInt("empty_llm_response_count")
	SuccessfulLLMGenCount   = expvar.NewInt("successful_llm_gen_count")
	FailedLLMGenCount       = expvar.NewInt("failed_llm_gen_count")
	SocialLinkEventsFired   = expvar.NewInt("social_link_events_fired")
	SocialLinkLevelUps      = expvar.NewInt("social_link_level_ups")
	MoviePollVotesRecorded  = expvar.NewInt("movie_poll_votes_recorded")
	ScheduledAnnouncersLate = expvar.NewInt("scheduled_announcements_late")

	// Prometheus metrics with labels
	DiscordCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discord_command_total",
			Help: "Total number of Discord commands invoked by command type",
		},
		[]string{"command"},
	)

	DiscordCommandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discord_command_errors",
			Help: "Total number of Discord command errors by command type",
		},
		[]string{"command"},
	)

	DiscordCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discord_command_duration_seconds",
			Help:    "Duration of Discord command execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	HolidayPhaseActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_phase_actions_total",
			Help: "Holiday lifecycle actions by phase (before, during, after) and result",
		},
		[]string{"phase", "result"},
	)

	HolidayCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holiday_check_duration_seconds",
			Help:    "Duration of a full holiday check pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	WeatherProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_provider_requests_total",
			Help: "Weather provider API requests by provider and result",
		},
		[]string{"provider", "result"},
	)
)

type Server struct {
	*http.Server
}

func SetupServer() *Server {

	// pprof is setup by importing the net/http/pprof package
	server := &http.Server{
		Addr:         ":6060",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// setup expvar cache
	DiscordMessageSent.Set(0)
	AnnouncementsSent.Set(0)
	AnnouncementsSkipped.Set(0)
	HolidayRolesCreated.Set(0)
	HolidayRolesDeleted.Set(0)
	WeatherFetchSuccess.Set(0)
	WeatherFetchFail.Set(0)
	EmptyLLMResponseCount.Set(0)
	SuccessfulLLMGenCount.Set(0)
	FailedLLMGenCount.Set(0)
	SocialLinkEventsFired.Set(0)
	SocialLinkLevelUps.Set(0)
	MoviePollVotesRecorded.Set(0)
	ScheduledAnnouncersLate.Set(0)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewExpvarCollector(
			map[string]*prometheus.Desc{
				"discord_message_sent":          prometheus.NewDesc("discord_message_sent", "number of messages the bot sent to discord", nil, nil),
				"announcements_sent":            prometheus.NewDesc("announcements_sent", "number of announcements delivered", nil, nil),
				"announcements_skipped":         prometheus.NewDesc("announcements_skipped", "number of announcements skipped by the idempotency guard", nil, nil),
				"holiday_roles_created":         prometheus.NewDesc("holiday_roles_created", "number of holiday roles created or updated", nil, nil),
				"holiday_roles_deleted":         prometheus.NewDesc("holiday_roles_deleted", "number of holiday roles deleted", nil, nil),
				"weather_fetch_success":         prometheus.NewDesc("weather_fetch_success", "number of successful weather fetches", nil, nil),
				"weather_fetch_fail":            prometheus.NewDesc("weather_fetch_fail", "number of failed weather fetches", nil, nil),
				"empty_llm_response_count":      prometheus.NewDesc("empty_llm_response_count", "number of times the llm responded with an empty string", nil, nil),
				"successful_llm_gen_count":      prometheus.NewDesc("successful_llm_gen_count", "number of times the llm generated a valid response", nil, nil),
				"failed_llm_gen_count":          prometheus.NewDesc("failed_llm_gen_count", "number of errors during llm generation", nil, nil),
				"social_link_events_fired":      prometheus.NewDesc("social_link_events_fired", "number of social link events dispatched", nil, nil),
				"social_link_level_ups":         prometheus.NewDesc("social_link_level_ups", "number of social link level ups", nil, nil),
				"movie_poll_votes_recorded":     prometheus.NewDesc("movie_poll_votes_recorded", "number of movie poll votes toggled", nil, nil),
				"scheduled_announcements_late":  prometheus.NewDesc("scheduled_announcements_late", "number of scheduled announcements delivered after their due minute", nil, nil),
			},
		),
		DiscordCommandTotal,
		DiscordCommandErrors,
		DiscordCommandDuration,
		HolidayPhaseActions,
		HolidayCheckDuration,
		WeatherProviderRequests,
	)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.HandleFunc("/healthz", healthzHandler)
	return &Server{server}
}

// healthzHandler returns a simple health check response
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) Run() {
	_ = s.ListenAndServe()
}
