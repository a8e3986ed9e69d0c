// package movieclub runs the movie club: date polls with button voting,
// candidate-night scheduling around US holidays, and movie metadata lookups.
package movieclub

import (
	"sort"
	"time"
)

// candidateWindow is how many trailing days of the month are considered for
// movie night.
const candidateWindow = 14

// dateKey is the storage format for poll dates.
const dateKey = "2006-01-02"

// nthWeekday returns the n-th occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekdayOf returns the final occurrence of a weekday in a month.
func lastWeekdayOf(year int, month time.Month, weekday time.Weekday) time.Time {
	t := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) - int(weekday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

// USHolidays returns the days the club avoids for a year: the federal
// holidays plus the club's own blocked dates.
func USHolidays(year int) map[string]string {
	fixed := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}

	thanksgiving := nthWeekday(year, time.November, time.Thursday, 4)

	days := map[time.Time]string{
		fixed(time.January, 1):    "New Year's Day",
		nthWeekday(year, time.January, time.Monday, 3):   "Martin Luther King Jr. Day",
		nthWeekday(year, time.February, time.Monday, 3):  "Washington's Birthday",
		lastWeekdayOf(year, time.May, time.Monday):       "Memorial Day",
		fixed(time.June, 19):      "Juneteenth",
		fixed(time.July, 4):       "Independence Day",
		nthWeekday(year, time.September, time.Monday, 1): "Labor Day",
		nthWeekday(year, time.October, time.Monday, 2):   "Columbus Day",
		fixed(time.November, 11):  "Veterans Day",
		thanksgiving:              "Thanksgiving",
		fixed(time.December, 25):  "Christmas Day",

		fixed(time.October, 31):   "Halloween",
		fixed(time.December, 24):  "Christmas Eve",
		fixed(time.December, 31):  "New Year's Eve",
		fixed(time.February, 14):  "Valentine's Day",
		nthWeekday(year, time.May, time.Sunday, 2):  "Mother's Day",
		nthWeekday(year, time.June, time.Sunday, 3): "Father's Day",
		fixed(time.September, 21): "September 21st",
		thanksgiving.AddDate(0, 0, -1): "Thanksgiving Eve",
	}

	out := make(map[string]string, len(days))
	for day, name := range days {
		out[day.Format(dateKey)] = name
	}
	return out
}

// CandidateDates lists the last days of a month that could host movie night,
// before filtering.
func CandidateDates(year int, month time.Month) []time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	first := lastDay.AddDate(0, 0, -candidateWindow)
	dates := make([]time.Time, 0, candidateWindow+1)
	for d := first; !d.After(lastDay); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// FilterCandidates drops weekends, Mondays, and any date within one day of a
// blocked holiday.
func FilterCandidates(dates []time.Time, holidays map[string]string) []time.Time {
	var out []time.Time
	for _, d := range dates {
		switch d.Weekday() {
		case time.Saturday, time.Sunday, time.Monday:
			continue
		}
		blocked := false
		for _, offset := range []int{-1, 0, 1} {
			if _, ok := holidays[d.AddDate(0, 0, offset).Format(dateKey)]; ok {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		out = append(out, d)
	}
	return out
}

// PollDates resolves the candidate dates for a poll. With a zero month it
// starts from two weeks after today and walks forward month by month until at
// least three dates survive filtering.
func PollDates(year int, month time.Month, today time.Time) []time.Time {
	const minDates = 3

	if month != 0 {
		return FilterCandidates(CandidateDates(year, month), USHolidays(year))
	}

	earliest := today.AddDate(0, 0, candidateWindow)
	y, m := earliest.Year(), earliest.Month()
	for tries := 0; tries < 12; tries++ {
		candidates := CandidateDates(y, m)
		var reachable []time.Time
		for _, d := range candidates {
			if !d.Before(earliest) {
				reachable = append(reachable, d)
			}
		}
		filtered := FilterCandidates(reachable, USHolidays(y))
		if len(filtered) >= minDates {
			return filtered
		}
		next := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		y, m = next.Year(), next.Month()
	}
	return nil
}

// SortedDateKeys returns poll date keys in chronological order.
func SortedDateKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}

// PresentableDate renders a date key like "Tue, Sep 24".
func PresentableDate(key string) string {
	d, err := time.Parse(dateKey, key)
	if err != nil {
		return key
	}
	return d.Format("Mon, Jan 02")
}
