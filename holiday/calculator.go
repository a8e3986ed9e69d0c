package holiday

import (
	"sort"
	"time"
)

// Offset pairs a holiday name with its signed day offset from a reference
// date. Positive offsets are upcoming, zero is today, negative already
// passed this year.
type Offset struct {
	Name string
	Days int
}

// ComputeOffsets evaluates every holiday against the reference date and
// returns the signed this-year offsets. Holidays with malformed dates are
// skipped; callers that need to surface those errors validate at input time.
func ComputeOffsets(holidays map[string]Holiday, today time.Time) map[string]int {
	offsets := make(map[string]int, len(holidays))
	for name, h := range holidays {
		days, err := DaysUntil(h.Date, today)
		if err != nil {
			continue
		}
		offsets[name] = days
	}
	return offsets
}

// FindUpcoming returns the holiday with the smallest strictly-positive day
// offset, together with the offset map for every holiday. Ties on the offset
// break by lexicographic name order so repeated runs agree. Empty string
// means nothing is upcoming.
func FindUpcoming(holidays map[string]Holiday, today time.Time) (string, map[string]int) {
	offsets := ComputeOffsets(holidays, today)

	upcoming := ""
	best := 0
	for name, days := range offsets {
		if days <= 0 {
			continue
		}
		if upcoming == "" || days < best || (days == best && name < upcoming) {
			upcoming = name
			best = days
		}
	}
	return upcoming, offsets
}

// Sorted returns all holidays ordered for display: future holidays ascending
// by how soon they arrive, then past holidays by how recently they passed.
func Sorted(holidays map[string]Holiday, today time.Time) []Offset {
	offsets := ComputeOffsets(holidays, today)

	var future, past []Offset
	for name, days := range offsets {
		if days > 0 {
			future = append(future, Offset{Name: name, Days: days})
		} else {
			past = append(past, Offset{Name: name, Days: days})
		}
	}

	sort.Slice(future, func(i, j int) bool {
		if future[i].Days != future[j].Days {
			return future[i].Days < future[j].Days
		}
		return future[i].Name < future[j].Name
	})
	sort.Slice(past, func(i, j int) bool {
		if past[i].Days != past[j].Days {
			return past[i].Days > past[j].Days
		}
		return past[i].Name < past[j].Name
	})

	return append(future, past...)
}
