package weatherchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/llm"
)

// memoryStore is an in-memory settings backend for tests.
type memoryStore struct {
	docs map[string]json.RawMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]json.RawMessage)}
}

func (m *memoryStore) GetGuildDocument(_ context.Context, guildID, cog string) (json.RawMessage, error) {
	if raw, ok := m.docs["g/"+guildID+"/"+cog]; ok {
		return raw, nil
	}
	return json.RawMessage("{}"), nil
}

func (m *memoryStore) SetGuildDocument(_ context.Context, guildID, cog string, doc json.RawMessage) error {
	m.docs["g/"+guildID+"/"+cog] = doc
	return nil
}

func (m *memoryStore) GetUserDocument(_ context.Context, userID, cog string) (json.RawMessage, error) {
	if raw, ok := m.docs["u/"+userID+"/"+cog]; ok {
		return raw, nil
	}
	return json.RawMessage("{}"), nil
}

func (m *memoryStore) SetUserDocument(_ context.Context, userID, cog string, doc json.RawMessage) error {
	m.docs["u/"+userID+"/"+cog] = doc
	return nil
}

// stubProvider returns a canned report.
type stubProvider struct {
	report Report
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, _ City) (Report, error) {
	s.calls++
	return s.report, s.err
}

// fakeSender records posted embeds.
type fakeSender struct {
	channels []string
	embeds   []*discordgo.MessageEmbed
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channels = append(f.channels, channelID)
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{}, nil
}

// flakyLLM fails a fixed number of times before answering.
type flakyLLM struct {
	failures int
	calls    int
}

func (f *flakyLLM) SendPrompt(_ context.Context, _ string, _ llm.Options) (llm.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return llm.Response{}, assert.AnError
	}
	return llm.Response{Content: "A pleasant day everywhere."}, nil
}

func TestLoadCities(t *testing.T) {
	cities, err := LoadCities()
	require.NoError(t, err)
	require.NotEmpty(t, cities)

	tokyo, ok := cities["tokyo"]
	require.True(t, ok)
	assert.Equal(t, "Tokyo", tokyo.DisplayName)
	assert.Equal(t, APIOpenMeteo, tokyo.API)
	assert.Equal(t, "tokyo", tokyo.Name)

	for name, city := range cities {
		_, _, err := ParseLatLon(city.Location())
		assert.NoError(t, err, "city %s", name)
		_, err = NewProvider(city.API, nil)
		assert.NoError(t, err, "city %s api %s", name, city.API)
	}
}

func TestResolveCities(t *testing.T) {
	cities := map[string]City{
		"b-town": {Name: "b-town"},
		"a-town": {Name: "a-town"},
	}

	all, err := ResolveCities(cities, "Everywhere")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-town", all[0].Name, "fan-out is sorted by name")

	one, err := ResolveCities(cities, "B-Town")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "b-town", one[0].Name)

	_, err = ResolveCities(cities, "atlantis")
	assert.Error(t, err)
}

func TestParseLatLon(t *testing.T) {
	lat, lon, err := ParseLatLon("35.6762,139.6503")
	require.NoError(t, err)
	assert.InDelta(t, 35.6762, lat, 0.0001)
	assert.InDelta(t, 139.6503, lon, 0.0001)

	for _, bad := range []string{"", "35.6", "35.6,139.6,0", "north,south", "95,0", "0,190"} {
		_, _, err := ParseLatLon(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestOpenMeteoFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "35.6762", r.URL.Query().Get("latitude"))
		fmt.Fprint(w, `{
			"current_weather": {"temperature": 27.4, "windspeed": 12.0, "weathercode": 2},
			"hourly": {"relative_humidity_2m": [63]},
			"daily": {
				"temperature_2m_max": [30.1], "temperature_2m_min": [22.5],
				"sunrise": ["2026-08-28T05:10"], "sunset": ["2026-08-28T18:11"]
			}
		}`)
	}))
	defer server.Close()

	client := &OpenMeteoClient{BaseURL: server.URL, HTTPClient: server.Client()}
	report, err := client.Fetch(context.Background(), City{Name: "tokyo", DisplayName: "Tokyo", Latitude: 35.6762, Longitude: 139.6503})
	require.NoError(t, err)

	assert.Equal(t, "Tokyo", report.City)
	assert.Equal(t, "Partly cloudy", report.Condition)
	assert.InDelta(t, 27.4, report.Temperature, 0.001)
	assert.Equal(t, "°C", report.Unit)
	assert.InDelta(t, 30.1, report.TempMax, 0.001)
	assert.Equal(t, 63, report.Humidity)
	assert.Equal(t, "12 km/h", report.Wind)
	assert.Equal(t, "2026-08-28T05:10", report.Sunrise)
}

func TestWeatherGovFetch(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/points/45.5152,-122.6784":
			fmt.Fprintf(w, `{"properties": {"forecast": "%s/gridpoints/PQR/112,103/forecast"}}`, server.URL)
		case "/gridpoints/PQR/112,103/forecast":
			fmt.Fprint(w, `{"properties": {"periods": [{
				"temperature": 78, "temperatureUnit": "F", "windSpeed": "9 mph",
				"shortForecast": "Sunny", "relativeHumidity": {"value": 40}
			}]}}`)
		case "/alerts/active":
			fmt.Fprint(w, `{"features": [{"properties": {"headline": "Heat Advisory until 8 PM"}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := &WeatherGovClient{BaseURL: server.URL, HTTPClient: server.Client()}
	report, err := client.Fetch(context.Background(), City{Name: "portland", DisplayName: "Portland", Latitude: 45.5152, Longitude: -122.6784})
	require.NoError(t, err)

	assert.Equal(t, "Portland", report.City)
	assert.Equal(t, "Sunny", report.Condition)
	assert.InDelta(t, 78, report.Temperature, 0.001)
	assert.Equal(t, "°F", report.Unit)
	assert.Equal(t, "9 mph", report.Wind)
	assert.Equal(t, 40, report.Humidity)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "Heat Advisory until 8 PM", report.Alerts[0])
}

func TestSummarizeRetriesThenSucceeds(t *testing.T) {
	provider := &flakyLLM{failures: 2}
	summarizer := NewSummarizer(provider, nil)
	summarizer.backoff = time.Millisecond

	got := summarizer.Summarize(context.Background(), []Report{{City: "Tokyo"}})
	assert.Equal(t, "A pleasant day everywhere.", got)
	assert.Equal(t, 3, provider.calls)
}

// blankLLM answers with empty content a fixed number of times before
// producing text, mimicking a provider that returns no choices.
type blankLLM struct {
	blanks int
	calls  int
}

func (f *blankLLM) SendPrompt(_ context.Context, _ string, _ llm.Options) (llm.Response, error) {
	f.calls++
	if f.calls <= f.blanks {
		return llm.Response{}, nil
	}
	return llm.Response{Content: "A pleasant day everywhere."}, nil
}

func TestSummarizeRetriesEmptyResponses(t *testing.T) {
	provider := &blankLLM{blanks: 2}
	summarizer := NewSummarizer(provider, nil)
	summarizer.backoff = time.Millisecond

	got := summarizer.Summarize(context.Background(), []Report{{City: "Tokyo"}})
	assert.Equal(t, "A pleasant day everywhere.", got)
	assert.Equal(t, 3, provider.calls)
}

func TestSummarizeGivesUpOnPersistentlyEmptyResponses(t *testing.T) {
	provider := &blankLLM{blanks: 10}
	summarizer := NewSummarizer(provider, nil)
	summarizer.backoff = time.Millisecond

	got := summarizer.Summarize(context.Background(), []Report{{City: "Tokyo"}})
	assert.Empty(t, got)
	assert.Equal(t, summaryAttempts, provider.calls)
}

func TestSummarizeReturnsEmptyAfterExhaustion(t *testing.T) {
	provider := &flakyLLM{failures: 10}
	summarizer := NewSummarizer(provider, nil)
	summarizer.backoff = time.Millisecond

	got := summarizer.Summarize(context.Background(), []Report{{City: "Tokyo"}})
	assert.Empty(t, got)
	assert.Equal(t, summaryAttempts, provider.calls)
}

func TestBuildEmbed(t *testing.T) {
	embed := BuildEmbed([]Report{
		{City: "Tokyo", Condition: "Clear sky", Temperature: 27, Unit: "°C", TempMax: 30, TempMin: 22, Wind: "12 km/h", Humidity: 63},
		{City: "Portland", Condition: "Sunny", Temperature: 78, Unit: "°F", Alerts: []string{"Heat Advisory"}},
	}, "Warm everywhere today.")

	assert.Equal(t, "Warm everywhere today.", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Tokyo", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "high 30°C / low 22°C")
	assert.Contains(t, embed.Fields[1].Value, "⚠ Heat Advisory")
}

func newTestService(t *testing.T, provider Provider, sender MessageSender, now time.Time) (*Service, *config.Store) {
	t.Helper()
	store := config.NewStore(newMemoryStore(), nil)
	store.RegisterDefaults(CogName, DefaultDocument())

	cities := map[string]City{
		"testville": {Name: "testville", DisplayName: "Testville", API: "stub", Latitude: 1, Longitude: 2},
	}
	svc := NewService(store, map[string]Provider{"stub": provider}, cities, NewSummarizer(nil, nil), sender, func() []GuildInfo {
		return []GuildInfo{{ID: "guild-1", Name: "Test Server"}}
	}, nil)
	svc.now = func() time.Time { return now }
	return svc, store
}

func TestMaybePostOncePerDayAfterSchedule(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{report: Report{City: "Testville", Condition: "Clear sky", Temperature: 20, Unit: "°C"}}
	sender := &fakeSender{}
	svc, store := newTestService(t, provider, sender, time.Date(2026, 8, 28, 8, 5, 0, 0, time.UTC))

	require.NoError(t, store.Update(ctx, "guild-1", CogName, func(doc config.Document) error {
		doc["channel_id"] = "chan-1"
		doc["schedule"] = "08:00"
		return nil
	}))

	guild := GuildInfo{ID: "guild-1", Name: "Test Server"}
	require.NoError(t, svc.maybePost(ctx, guild))
	require.Len(t, sender.embeds, 1)
	assert.Equal(t, []string{"chan-1"}, sender.channels)

	// Same day again: the guard holds.
	require.NoError(t, svc.maybePost(ctx, guild))
	assert.Len(t, sender.embeds, 1)

	// Next morning before the scheduled time: still nothing.
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 7, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.maybePost(ctx, guild))
	assert.Len(t, sender.embeds, 1)

	// After the scheduled time it posts again.
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.maybePost(ctx, guild))
	assert.Len(t, sender.embeds, 2)
}

func TestMaybePostSkipsWithoutChannel(t *testing.T) {
	provider := &stubProvider{report: Report{City: "Testville"}}
	sender := &fakeSender{}
	svc, _ := newTestService(t, provider, sender, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))

	require.NoError(t, svc.maybePost(context.Background(), GuildInfo{ID: "guild-1"}))
	assert.Empty(t, sender.embeds)
	assert.Zero(t, provider.calls)
}

func TestFetchReportsSkipsFailingCity(t *testing.T) {
	good := &stubProvider{report: Report{City: "Good"}}
	bad := &stubProvider{err: assert.AnError}

	store := config.NewStore(newMemoryStore(), nil)
	cities := map[string]City{
		"good": {Name: "good", DisplayName: "Good", API: "good"},
		"lost": {Name: "lost", DisplayName: "Lost", API: "bad"},
	}
	svc := NewService(store, map[string]Provider{"good": good, "bad": bad}, cities, NewSummarizer(nil, nil), &fakeSender{}, nil, nil)

	reports, err := svc.FetchReports(context.Background(), Everywhere)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Good", reports[0].City)

	_, err = svc.FetchReports(context.Background(), "lost")
	assert.Error(t, err, "all cities failing is an error")
}

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("08:00")
	assert.NoError(t, err)
	for _, bad := range []string{"8am", "25:00", "", "08:60"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
