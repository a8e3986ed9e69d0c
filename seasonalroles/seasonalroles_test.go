package seasonalroles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
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

// fakeSession records role and message calls.
type fakeSession struct {
	roles      []*discordgo.Role
	members    []*discordgo.Member
	nextRoleID int

	created      int
	edited       int
	deleted      int
	assigned     map[string]int
	removed      map[string]int
	sentMessages []*discordgo.MessageSend
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		assigned: make(map[string]int),
		removed:  make(map[string]int),
	}
}

func (f *fakeSession) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	out := make([]*discordgo.Role, len(f.roles))
	copy(out, f.roles)
	return out, nil
}

func (f *fakeSession) GuildRoleCreate(_ string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	f.created++
	f.nextRoleID++
	role := &discordgo.Role{ID: fmt.Sprintf("role-%d", f.nextRoleID), Name: data.Name}
	if data.Color != nil {
		role.Color = *data.Color
	}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakeSession) GuildRoleEdit(_, roleID string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	f.edited++
	for _, r := range f.roles {
		if r.ID == roleID {
			if data.Name != "" {
				r.Name = data.Name
			}
			return r, nil
		}
	}
	return nil, fmt.Errorf("role %s not found", roleID)
}

func (f *fakeSession) GuildRoleDelete(_, roleID string, _ ...discordgo.RequestOption) error {
	f.deleted++
	for i, r := range f.roles {
		if r.ID == roleID {
			f.roles = append(f.roles[:i], f.roles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("role %s not found", roleID)
}

func (f *fakeSession) GuildRoleReorder(_ string, roles []*discordgo.Role, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return roles, nil
}

func (f *fakeSession) GuildMemberRoleAdd(_, userID, _ string, _ ...discordgo.RequestOption) error {
	f.assigned[userID]++
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(_, userID, _ string, _ ...discordgo.RequestOption) error {
	f.removed[userID]++
	return nil
}

func (f *fakeSession) GuildMembers(_, _ string, _ int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	return f.members, nil
}

func (f *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sentMessages = append(f.sentMessages, data)
	return &discordgo.Message{ID: "msg"}, nil
}

func member(id string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id}, Roles: roles}
}

func newTestChecker(t *testing.T, session *fakeSession, today time.Time) (*Checker, *config.Store) {
	t.Helper()
	store := config.NewStore(newMemoryStore(), nil)
	store.RegisterDefaults(CogName, DefaultDocument())

	roles := NewRoleManager(session, nil)
	announcer := NewAnnouncer(session, store, nil)
	guilds := func() []GuildInfo { return []GuildInfo{{ID: "g1", Name: "Test Server"}} }
	checker := NewChecker(store, roles, announcer, nil, guilds, nil)
	checker.now = func() time.Time { return today }
	return checker, store
}

func configureGuild(t *testing.T, store *config.Store, mutate func(config.Document)) {
	t.Helper()
	require.NoError(t, store.Update(context.Background(), "g1", CogName, func(doc config.Document) error {
		mutate(doc)
		return nil
	}))
}

func liveSettings(doc config.Document) {
	doc["dry_run_mode"] = false
	cfg := doc.Sub("announcement_config")
	cfg["enabled"] = true
	cfg["channel_id"] = "chan-1"
}

func singleHoliday(doc config.Document, date string) {
	doc["holidays"] = map[string]any{
		"Star Festival": map[string]any{"date": date, "color": "#D4A13D"},
	}
}

func TestShouldAnnounce(t *testing.T) {
	h := holiday.Holiday{Name: "Star Festival", Date: "07-07"}
	day := func(month, d int) time.Time {
		return time.Date(2024, time.Month(month), d, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name          string
		phase         holiday.Phase
		lastAnnounced string
		today         time.Time
		want          bool
	}{
		{name: "before inside window", phase: holiday.PhaseBefore, today: day(7, 1), want: true},
		{name: "before too early", phase: holiday.PhaseBefore, today: day(6, 20), want: false},
		{name: "before on the day is too late", phase: holiday.PhaseBefore, today: day(7, 7), want: false},
		{name: "before already sent this year", phase: holiday.PhaseBefore, lastAnnounced: "2024-07-01T08:00:00Z", today: day(7, 3), want: false},
		{name: "before sent last year", phase: holiday.PhaseBefore, lastAnnounced: "2023-07-01T08:00:00Z", today: day(7, 1), want: true},
		{name: "during on the day", phase: holiday.PhaseDuring, today: day(7, 7), want: true},
		{name: "during wrong day", phase: holiday.PhaseDuring, today: day(7, 6), want: false},
		{name: "during already sent today", phase: holiday.PhaseDuring, lastAnnounced: "2024-07-07T00:30:00Z", today: day(7, 7), want: false},
		{name: "during sent yesterday", phase: holiday.PhaseDuring, lastAnnounced: "2024-07-06T00:30:00Z", today: day(7, 7), want: true},
		{name: "after the day after", phase: holiday.PhaseAfter, today: day(7, 8), want: true},
		{name: "after two days later", phase: holiday.PhaseAfter, today: day(7, 9), want: false},
		{name: "garbled timestamp falls through to window", phase: holiday.PhaseDuring, lastAnnounced: "not-a-date", today: day(7, 7), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ShouldAnnounce(h, tt.phase, tt.lastAnnounced, tt.today)
			assert.Equal(t, tt.want, got, reason)
		})
	}
}

func TestShouldAnnounceAcrossYearBoundary(t *testing.T) {
	newYear := holiday.Holiday{Name: "New Year's Celebration", Date: "01-01"}

	ok, reason := ShouldAnnounce(newYear, holiday.PhaseBefore, "", time.Date(2023, 12, 28, 12, 0, 0, 0, time.UTC))
	assert.True(t, ok, reason)

	// Already announced earlier in the same lead-up window, before the year
	// ticked over.
	ok, reason = ShouldAnnounce(newYear, holiday.PhaseBefore, "2023-12-26T08:00:00Z", time.Date(2023, 12, 28, 12, 0, 0, 0, time.UTC))
	assert.False(t, ok, reason)

	// The next year's window fires again despite the recorded December
	// timestamp.
	ok, reason = ShouldAnnounce(newYear, holiday.PhaseBefore, "2023-12-26T08:00:00Z", time.Date(2024, 12, 28, 12, 0, 0, 0, time.UTC))
	assert.True(t, ok, reason)

	eve := holiday.Holiday{Name: "New Year's Eve", Date: "12-31"}
	ok, reason = ShouldAnnounce(eve, holiday.PhaseAfter, "", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.True(t, ok, reason)
	ok, reason = ShouldAnnounce(eve, holiday.PhaseDuring, "", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.False(t, ok, reason)
}

func TestTemplateRender(t *testing.T) {
	h := holiday.Holiday{Name: "Star Festival", Date: "07-07"}
	got := defaultTemplates[holiday.PhaseBefore].Render(h, 4, "Test Server")
	assert.Equal(t, "Upcoming Holiday: Star Festival", got.Title)
	assert.Equal(t, "Get ready for Star Festival in 4 days! It will be celebrated on 07-07.", got.Description)

	withDisplay := holiday.Holiday{Name: "Star Festival", DisplayName: "Tanabata", Date: "07-07"}
	got = defaultTemplates[holiday.PhaseDuring].Render(withDisplay, 0, "Test Server")
	assert.Equal(t, "Happy Tanabata!", got.Title)
}

func TestCheckGuildAppliesHolidayOnce(t *testing.T) {
	session := newFakeSession()
	session.members = []*discordgo.Member{member("u1"), member("u2")}
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "07-07")
	})

	guild := GuildInfo{ID: "g1", Name: "Test Server"}
	require.NoError(t, checker.CheckGuild(context.Background(), guild, false))

	assert.Equal(t, 1, session.created, "role created once")
	assert.Len(t, session.sentMessages, 1, "one during announcement")
	assert.Equal(t, 1, session.assigned["u1"])
	assert.Equal(t, 1, session.assigned["u2"])

	// Same day again, forced past the last_checked_date guard: the
	// announcement guard and role-update path keep side effects flat.
	require.NoError(t, checker.CheckGuild(context.Background(), guild, true))
	assert.Equal(t, 1, session.created, "no second role create")
	assert.Len(t, session.sentMessages, 1, "no second announcement")
}

func TestCheckGuildBeforePhaseCreatesRoleEarly(t *testing.T) {
	session := newFakeSession()
	session.members = []*discordgo.Member{member("u1")}
	today := time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "07-07")
	})

	guild := GuildInfo{ID: "g1", Name: "Test Server"}
	require.NoError(t, checker.CheckGuild(context.Background(), guild, false))

	// The role is staged during the lead-up window but nobody wears it yet.
	assert.Equal(t, 1, session.created, "role created ahead of the day")
	assert.Empty(t, session.assigned, "assignment waits for the holiday")
	assert.Zero(t, session.deleted, "staged role survives stale cleanup")

	require.Len(t, session.sentMessages, 1)
	require.NotEmpty(t, session.sentMessages[0].Embeds)
	assert.Contains(t, session.sentMessages[0].Embeds[0].Description, "in 7 days")
}

func TestCheckGuildBeforePhaseAcrossNewYear(t *testing.T) {
	session := newFakeSession()
	today := time.Date(2023, 12, 28, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "01-02")
	})

	require.NoError(t, checker.CheckGuild(context.Background(), GuildInfo{ID: "g1", Name: "Test Server"}, false))

	assert.Equal(t, 1, session.created)
	require.Len(t, session.sentMessages, 1)
	assert.Contains(t, session.sentMessages[0].Embeds[0].Description, "in 5 days")
}

func TestCheckGuildSkipsWhenAlreadyCheckedToday(t *testing.T) {
	session := newFakeSession()
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "07-07")
	})

	guild := GuildInfo{ID: "g1", Name: "Test Server"}
	require.NoError(t, checker.CheckGuild(context.Background(), guild, false))
	require.NoError(t, checker.CheckGuild(context.Background(), guild, false))

	// The unforced second call short-circuits before touching Discord at
	// all: the update path would have edited the existing role.
	assert.Equal(t, 0, session.edited)
}

func TestCheckGuildDryRunTouchesNothing(t *testing.T) {
	session := newFakeSession()
	session.members = []*discordgo.Member{member("u1")}
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		singleHoliday(doc, "07-07")
		cfg := doc.Sub("announcement_config")
		cfg["enabled"] = true
		cfg["channel_id"] = "chan-1"
		// dry_run_mode stays at its default of true.
	})

	guild := GuildInfo{ID: "g1", Name: "Test Server"}
	require.NoError(t, checker.CheckGuild(context.Background(), guild, false))

	assert.Zero(t, session.created)
	assert.Empty(t, session.sentMessages)
	assert.Empty(t, session.assigned)
}

func TestCheckGuildRespectsOptOuts(t *testing.T) {
	session := newFakeSession()
	session.members = []*discordgo.Member{member("u1"), member("u2")}
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "07-07")
		doc["opt_out_users"] = []any{"u2"}
	})

	require.NoError(t, checker.CheckGuild(context.Background(), GuildInfo{ID: "g1"}, false))
	assert.Equal(t, 1, session.assigned["u1"])
	assert.Zero(t, session.assigned["u2"])
}

func TestCheckGuildAfterPhaseRetiresRole(t *testing.T) {
	session := newFakeSession()
	session.roles = []*discordgo.Role{{ID: "r1", Name: "Star Festival 07-07"}}
	session.members = []*discordgo.Member{member("u1", "r1"), member("u2")}
	today := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "07-07")
	})

	require.NoError(t, checker.CheckGuild(context.Background(), GuildInfo{ID: "g1", Name: "Test Server"}, false))

	assert.Equal(t, 1, session.removed["u1"], "member holding the role is stripped")
	assert.Zero(t, session.removed["u2"])
	assert.GreaterOrEqual(t, session.deleted, 1, "role deleted")
	assert.Len(t, session.sentMessages, 1, "after announcement sent")
}

func TestCheckGuildCleansStaleRoles(t *testing.T) {
	session := newFakeSession()
	// Role left over from a holiday well outside its window.
	session.roles = []*discordgo.Role{
		{ID: "r1", Name: "Kids Day 05-05"},
		{ID: "r2", Name: "Moderator"},
	}
	today := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		singleHoliday(doc, "05-05")
	})

	require.NoError(t, checker.CheckGuild(context.Background(), GuildInfo{ID: "g1"}, false))

	assert.Equal(t, 1, session.deleted)
	require.Len(t, session.roles, 1)
	assert.Equal(t, "Moderator", session.roles[0].Name, "non-holiday roles untouched")
}

func TestCheckGuildSkipsMalformedDates(t *testing.T) {
	session := newFakeSession()
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		doc["holidays"] = map[string]any{
			"Broken":        map[string]any{"date": "13-45", "color": "#FFFFFF"},
			"Star Festival": map[string]any{"date": "07-07", "color": "#D4A13D"},
		}
	})

	require.NoError(t, checker.CheckGuild(context.Background(), GuildInfo{ID: "g1", Name: "Test Server"}, false))
	assert.Equal(t, 1, session.created, "valid sibling still processed")
}

func TestActiveHoliday(t *testing.T) {
	session := newFakeSession()
	today := time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		singleHoliday(doc, "07-07")
	})

	h, active, err := checker.ActiveHoliday(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, active)
	assert.Equal(t, "Star Festival", h.Name)

	checker.now = func() time.Time { return time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC) }
	_, active, err = checker.ActiveHoliday(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestDefaultDocumentHolidaysValid(t *testing.T) {
	holidays := holidaysFrom(DefaultDocument())
	require.Len(t, holidays, 10)
	for name, h := range holidays {
		assert.NoError(t, holiday.Validate(h), "default holiday %s", name)
	}
}

func TestForceHolidayAppliesOutOfSeason(t *testing.T) {
	session := newFakeSession()
	session.roles = []*discordgo.Role{{ID: "r1", Name: "Kids Day 05-05"}}
	session.members = []*discordgo.Member{member("u1")}
	today := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		liveSettings(doc)
		doc["holidays"] = map[string]any{
			"Star Festival": map[string]any{"date": "07-07", "color": "#D4A13D"},
			"Kids Day":      map[string]any{"date": "05-05", "color": "#68855A"},
		}
	})

	reply, err := checker.ForceHoliday(context.Background(), GuildInfo{ID: "g1", Name: "Test Server"}, "star festivle")
	require.NoError(t, err)
	assert.Contains(t, reply, `"Star Festival"`)

	assert.Equal(t, 1, session.created, "forced role created despite the date")
	assert.Equal(t, 1, session.assigned["u1"])
	assert.Equal(t, 1, session.deleted, "other holiday roles retired first")
}

func TestForceHolidayHonorsDryRun(t *testing.T) {
	session := newFakeSession()
	session.members = []*discordgo.Member{member("u1")}
	today := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	checker, store := newTestChecker(t, session, today)
	configureGuild(t, store, func(doc config.Document) {
		// dry_run_mode stays at its default of true.
		singleHoliday(doc, "07-07")
	})

	reply, err := checker.ForceHoliday(context.Background(), GuildInfo{ID: "g1"}, "Star Festival")
	require.NoError(t, err)
	assert.Contains(t, reply, "[Dry Run]")
	assert.Zero(t, session.created)
	assert.Empty(t, session.assigned)
}

func TestForceHolidayUnknownName(t *testing.T) {
	session := newFakeSession()
	checker, store := newTestChecker(t, session, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	configureGuild(t, store, func(doc config.Document) {
		singleHoliday(doc, "07-07")
	})

	reply, err := checker.ForceHoliday(context.Background(), GuildInfo{ID: "g1"}, "completely unrelated")
	require.NoError(t, err)
	assert.Contains(t, reply, "No holiday matching")
}

// fakeGuildAPI records banner edits.
type fakeGuildAPI struct {
	guild *discordgo.Guild
	edits []*discordgo.GuildParams
}

func (f *fakeGuildAPI) Guild(_ string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return f.guild, nil
}

func (f *fakeGuildAPI) GuildEdit(_ string, g *discordgo.GuildParams, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.edits = append(f.edits, g)
	return f.guild, nil
}

func newBannerStore(t *testing.T, mutate func(config.Document)) *config.Store {
	t.Helper()
	store := config.NewStore(newMemoryStore(), nil)
	store.RegisterDefaults(CogName, DefaultDocument())
	require.NoError(t, store.Update(context.Background(), "g1", CogName, func(doc config.Document) error {
		mutate(doc)
		return nil
	}))
	return store
}

func TestBannerApplyAndRestore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	store := newBannerStore(t, func(doc config.Document) {
		doc.Sub("banner_management")["enabled"] = true
	})
	api := &fakeGuildAPI{guild: &discordgo.Guild{ID: "g1"}}
	bm := NewBannerManager(api, store, nil)
	bm.http = server.Client()

	h := holiday.Holiday{Name: "Star Festival", Date: "07-07", Color: "#D4A13D", Banner: server.URL + "/banner.png"}
	require.NoError(t, bm.Apply(context.Background(), "g1", h, false))
	require.Len(t, api.edits, 1)
	assert.True(t, strings.HasPrefix(api.edits[0].Banner, "data:image/png;base64,"), "banner sent as a data URI")

	// The next daily check re-applies the same banner: no extra edit.
	require.NoError(t, bm.Apply(context.Background(), "g1", h, false))
	assert.Len(t, api.edits, 1)

	doc, err := store.Guild(context.Background(), "g1", CogName)
	require.NoError(t, err)
	assert.Equal(t, h.Banner, doc.Sub("banner_management").String("applied_banner", ""))

	// The guild had no banner of its own, so restore just clears the
	// bookkeeping.
	require.NoError(t, bm.Restore(context.Background(), "g1", false))
	assert.Len(t, api.edits, 1)
	doc, err = store.Guild(context.Background(), "g1", CogName)
	require.NoError(t, err)
	assert.Empty(t, doc.Sub("banner_management").String("applied_banner", ""))
}

func TestBannerRestoreReinstatesOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	store := newBannerStore(t, func(doc config.Document) {
		cfg := doc.Sub("banner_management")
		cfg["enabled"] = true
		cfg["applied_banner"] = "https://cdn.example/holiday.png"
		cfg["original_banner"] = server.URL + "/original.jpg"
	})
	api := &fakeGuildAPI{guild: &discordgo.Guild{ID: "g1"}}
	bm := NewBannerManager(api, store, nil)
	bm.http = server.Client()

	require.NoError(t, bm.Restore(context.Background(), "g1", false))
	require.Len(t, api.edits, 1)
	assert.True(t, strings.HasPrefix(api.edits[0].Banner, "data:image/jpeg;base64,"))
}

func TestBannerApplySkipsWhenDisabledOrDryRun(t *testing.T) {
	store := newBannerStore(t, func(doc config.Document) {})
	api := &fakeGuildAPI{guild: &discordgo.Guild{ID: "g1"}}
	bm := NewBannerManager(api, store, nil)

	h := holiday.Holiday{Name: "Star Festival", Date: "07-07", Banner: "https://cdn.example/banner.png"}
	require.NoError(t, bm.Apply(context.Background(), "g1", h, false))
	assert.Empty(t, api.edits, "disabled guilds keep their banner")

	store = newBannerStore(t, func(doc config.Document) {
		doc.Sub("banner_management")["enabled"] = true
	})
	bm = NewBannerManager(api, store, nil)
	require.NoError(t, bm.Apply(context.Background(), "g1", h, true))
	assert.Empty(t, api.edits, "dry run never edits the guild")
}

func TestOptOutRoundTrip(t *testing.T) {
	doc := config.Document{}
	assert.True(t, setOptOut(doc, "u1", true))
	assert.False(t, setOptOut(doc, "u1", true), "already opted out")
	assert.True(t, isOptedOut(doc, "u1"))
	assert.True(t, setOptOut(doc, "u1", false))
	assert.False(t, isOptedOut(doc, "u1"))
	assert.False(t, setOptOut(doc, "u1", false), "not opted out")
}
