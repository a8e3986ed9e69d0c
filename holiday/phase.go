package holiday

import "time"

// Phase is where a holiday sits relative to its announcement window.
type Phase string

const (
	// PhaseBefore covers the lead-up window ahead of the holiday.
	PhaseBefore Phase = "before"
	// PhaseDuring is the holiday itself.
	PhaseDuring Phase = "during"
	// PhaseAfter is the day immediately following the holiday.
	PhaseAfter Phase = "after"
	// PhaseNone is everything else.
	PhaseNone Phase = ""
)

// DefaultBeforeDays is the length of the lead-up window when a guild has not
// configured one.
const DefaultBeforeDays = 7

// ResolvePhase classifies the reference date against a holiday's window.
// beforeDays <= 0 falls back to DefaultBeforeDays. The after phase is exactly
// one day long and follows the holiday across a year boundary, so Jan 1 is
// "after" a Dec 31 holiday.
func ResolvePhase(dateStr string, today time.Time, beforeDays int) (Phase, error) {
	phase, _, err := ResolvePhaseOffset(dateStr, today, beforeDays)
	return phase, err
}

// ResolvePhaseOffset resolves the phase together with the signed day offset
// to the occurrence that matched: 0 during, -1 after, 1..beforeDays before.
// The occurrence may sit in a neighboring calendar year, which is why callers
// inside a window must not recompute the offset from this year's date. When
// no window matches, the offset counts to the next occurrence.
func ResolvePhaseOffset(dateStr string, today time.Time, beforeDays int) (Phase, int, error) {
	if beforeDays <= 0 {
		beforeDays = DefaultBeforeDays
	}

	month, day, err := ParseMonthDay(dateStr)
	if err != nil {
		return PhaseNone, 0, err
	}

	// Check this year's occurrence, plus the neighbors so windows that
	// straddle New Year still resolve.
	for _, year := range []int{today.Year() - 1, today.Year(), today.Year() + 1} {
		occ := Occurrence(month, day, year)
		offset := daysBetween(today, occ)
		switch {
		case offset == 0:
			return PhaseDuring, 0, nil
		case offset == -1:
			return PhaseAfter, -1, nil
		case offset > 0 && offset <= beforeDays:
			return PhaseBefore, offset, nil
		}
	}

	next := daysBetween(today, Occurrence(month, day, today.Year()))
	if next < 0 {
		next = daysBetween(today, Occurrence(month, day, today.Year()+1))
	}
	return PhaseNone, next, nil
}
