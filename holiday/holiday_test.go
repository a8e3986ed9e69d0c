package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func TestParseMonthDay(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		month   int
		day     int
		wantErr bool
	}{
		{name: "valid", input: "05-05", month: 5, day: 5},
		{name: "leap day allowed", input: "02-29", month: 2, day: 29},
		{name: "end of year", input: "12-31", month: 12, day: 31},
		{name: "missing zero padding", input: "5-5", wantErr: true},
		{name: "month out of range", input: "13-01", wantErr: true},
		{name: "day out of range", input: "04-31", wantErr: true},
		{name: "wrong separator", input: "05/05", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			month, day, err := ParseMonthDay(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.month, month)
			assert.Equal(t, tt.day, day)
		})
	}
}

func TestDaysUntilSignedOffsets(t *testing.T) {
	today := date(2023, 5, 1)

	tests := []struct {
		dateStr string
		want    int
	}{
		{dateStr: "05-05", want: 4},
		{dateStr: "04-28", want: -3},
		{dateStr: "06-10", want: 40},
		{dateStr: "05-01", want: 0},
	}
	for _, tt := range tests {
		got, err := DaysUntil(tt.dateStr, today)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "offset for %s", tt.dateStr)
	}
}

func TestDaysUntilLeapDay(t *testing.T) {
	// Non-leap year: Feb 29 evaluates as Feb 28.
	got, err := DaysUntil("02-29", date(2023, 2, 27))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// Leap year: Feb 29 stays put.
	got, err = DaysUntil("02-29", date(2024, 2, 27))
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestDaysUntilNextRollsOver(t *testing.T) {
	// Passed this year, so count into next year.
	got, err := DaysUntilNext("04-28", date(2023, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, 363, got)

	// Next-year occurrence of Feb 29 in a non-leap year lands on Feb 28.
	got, err = DaysUntilNext("02-29", date(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 364, got)

	// Today counts as zero, not next year.
	got, err = DaysUntilNext("05-01", date(2023, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestFindUpcoming(t *testing.T) {
	holidays := map[string]Holiday{
		"HolidayA": {Name: "HolidayA", Date: "05-05"},
		"HolidayB": {Name: "HolidayB", Date: "04-28"},
		"HolidayC": {Name: "HolidayC", Date: "06-10"},
	}

	upcoming, offsets := FindUpcoming(holidays, date(2023, 5, 1))
	assert.Equal(t, "HolidayA", upcoming)
	assert.Equal(t, map[string]int{"HolidayA": 4, "HolidayB": -3, "HolidayC": 40}, offsets)
}

func TestFindUpcomingTieBreaksByName(t *testing.T) {
	holidays := map[string]Holiday{
		"Beta":  {Name: "Beta", Date: "05-05"},
		"Alpha": {Name: "Alpha", Date: "05-05"},
	}
	upcoming, _ := FindUpcoming(holidays, date(2023, 5, 1))
	assert.Equal(t, "Alpha", upcoming)
}

func TestFindUpcomingIgnoresTodayAndPast(t *testing.T) {
	holidays := map[string]Holiday{
		"Today":  {Name: "Today", Date: "05-01"},
		"Passed": {Name: "Passed", Date: "04-01"},
	}
	upcoming, _ := FindUpcoming(holidays, date(2023, 5, 1))
	assert.Empty(t, upcoming)
}

func TestSortedOrdering(t *testing.T) {
	holidays := map[string]Holiday{
		"Soon":       {Name: "Soon", Date: "05-05"},
		"Later":      {Name: "Later", Date: "06-10"},
		"JustPassed": {Name: "JustPassed", Date: "04-28"},
		"LongGone":   {Name: "LongGone", Date: "01-15"},
	}

	got := Sorted(holidays, date(2023, 5, 1))
	names := make([]string, len(got))
	for i, o := range got {
		names[i] = o.Name
	}
	// Future ascending by proximity, then past by recency.
	assert.Equal(t, []string{"Soon", "Later", "JustPassed", "LongGone"}, names)
}

func TestResolvePhase(t *testing.T) {
	tests := []struct {
		name       string
		dateStr    string
		today      time.Time
		beforeDays int
		want       Phase
	}{
		{name: "during", dateStr: "05-05", today: date(2023, 5, 5), want: PhaseDuring},
		{name: "day after", dateStr: "05-05", today: date(2023, 5, 6), want: PhaseAfter},
		{name: "two days after is none", dateStr: "05-05", today: date(2023, 5, 7), want: PhaseNone},
		{name: "inside default window", dateStr: "05-05", today: date(2023, 4, 29), want: PhaseBefore},
		{name: "window edge", dateStr: "05-05", today: date(2023, 4, 28), want: PhaseBefore},
		{name: "just outside window", dateStr: "05-05", today: date(2023, 4, 27), want: PhaseNone},
		{name: "custom window", dateStr: "05-05", today: date(2023, 4, 25), beforeDays: 10, want: PhaseBefore},
		{name: "before across new year", dateStr: "01-02", today: date(2023, 12, 28), want: PhaseBefore},
		{name: "after across new year", dateStr: "12-31", today: date(2024, 1, 1), want: PhaseAfter},
		{name: "leap day during substituted", dateStr: "02-29", today: date(2023, 2, 28), want: PhaseDuring},
		{name: "leap day during real", dateStr: "02-29", today: date(2024, 2, 29), want: PhaseDuring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePhase(tt.dateStr, tt.today, tt.beforeDays)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePhaseOffsetTracksMatchedOccurrence(t *testing.T) {
	// Lead-up straddling New Year: the offset counts to next year's date.
	phase, offset, err := ResolvePhaseOffset("01-02", date(2023, 12, 28), 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseBefore, phase)
	assert.Equal(t, 5, offset)

	// Day-after straddling New Year: the offset points back to last year.
	phase, offset, err = ResolvePhaseOffset("12-31", date(2024, 1, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseAfter, phase)
	assert.Equal(t, -1, offset)

	// Outside every window the offset counts to the next occurrence.
	phase, offset, err = ResolvePhaseOffset("05-05", date(2023, 6, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseNone, phase)
	assert.Equal(t, 339, offset)
}

func TestValidate(t *testing.T) {
	valid := Holiday{Name: "Star Festival", Date: "07-07", Color: "#D4A13D"}
	require.NoError(t, Validate(valid))

	assert.Error(t, Validate(Holiday{Name: "", Date: "07-07", Color: "#D4A13D"}))
	assert.Error(t, Validate(Holiday{Name: "X", Date: "07-7", Color: "#D4A13D"}))
	assert.Error(t, Validate(Holiday{Name: "X", Date: "07-07", Color: "D4A13D"}))
	assert.Error(t, Validate(Holiday{Name: "X", Date: "07-07", Color: "#D4A13"}))
	assert.Error(t, Validate(Holiday{Name: "X", Date: "07-07", Color: "#GGGGGG"}))
}

func TestFindFuzzy(t *testing.T) {
	holidays := map[string]Holiday{
		"Star Festival":   {Name: "Star Festival", Date: "07-07"},
		"Spring Blossom":  {Name: "Spring Blossom", Date: "03-20"},
		"Harvest Moon":    {Name: "Harvest Moon", Date: "09-17"},
		"Winter Solstice": {Name: "Winter Solstice", Date: "12-21"},
	}

	name, h, ok := Find(holidays, "star festival")
	require.True(t, ok)
	assert.Equal(t, "Star Festival", name)
	assert.Equal(t, "07-07", h.Date)

	name, _, ok = Find(holidays, "Star Festivle")
	require.True(t, ok)
	assert.Equal(t, "Star Festival", name)

	_, _, ok = Find(holidays, "completely unrelated")
	assert.False(t, ok)

	_, _, ok = Find(holidays, "  ")
	assert.False(t, ok)
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "Star Festival 07-07", RoleName(Holiday{Name: "Star Festival", Date: "07-07"}))
	assert.Equal(t, "Tanabata 07-07", RoleName(Holiday{Name: "Star Festival", DisplayName: "Tanabata", Date: "07-07"}))
}

func TestIsHolidayRole(t *testing.T) {
	assert.True(t, IsHolidayRole("Star Festival 07-07"))
	assert.False(t, IsHolidayRole("Moderator"))
	assert.False(t, IsHolidayRole("Level 10"))
}

func TestParseColor(t *testing.T) {
	got, err := ParseColor("#D4A13D")
	require.NoError(t, err)
	assert.Equal(t, 0xD4A13D, got)

	_, err = ParseColor("D4A13D")
	assert.Error(t, err)
}

func TestDecideRoleAction(t *testing.T) {
	h := Holiday{Name: "Star Festival", Date: "07-07"}

	action, matched := DecideRoleAction(h, []string{"Moderator", "Star Festival 07-07"})
	assert.Equal(t, RoleActionUpdate, action)
	assert.Equal(t, "Star Festival 07-07", matched)

	action, matched = DecideRoleAction(h, []string{"star festival 07-07"})
	assert.Equal(t, RoleActionUpdate, action, "matching is case-insensitive")
	assert.Equal(t, "star festival 07-07", matched)

	// A role from a different holiday sharing the date is not adopted.
	action, matched = DecideRoleAction(h, []string{"Kids Day 07-07"})
	assert.Equal(t, RoleActionCreate, action)
	assert.Empty(t, matched)

	// A role created before the holiday's date changed still matches and
	// gets refreshed instead of duplicated.
	action, matched = DecideRoleAction(h, []string{"Star Festival 07-06"})
	assert.Equal(t, RoleActionUpdate, action)
	assert.Equal(t, "Star Festival 07-06", matched)

	// Roles generated from a display name match too.
	withDisplay := Holiday{Name: "Star Festival", DisplayName: "Tanabata", Date: "07-07"}
	action, matched = DecideRoleAction(withDisplay, []string{"Tanabata 07-07"})
	assert.Equal(t, RoleActionUpdate, action)
	assert.Equal(t, "Tanabata 07-07", matched)

	// A longer role name that merely shares a prefix word is not a holiday
	// role and stays untouched.
	action, _ = DecideRoleAction(h, []string{"Star Festival Committee"})
	assert.Equal(t, RoleActionCreate, action)

	action, matched = DecideRoleAction(h, []string{"Moderator", "Harvest Moon 09-17"})
	assert.Equal(t, RoleActionCreate, action)
	assert.Empty(t, matched)
}
