// package holiday holds the pure calendar logic behind the seasonal roles
// cog: day offsets, phase windows, validation, and name matching. Nothing in
// here touches Discord or storage, which keeps the date edge cases (leap
// days, year rollover) testable against fixed reference dates.
package holiday

import (
	"fmt"
	"time"
)

// Holiday is one configured holiday. Date is "MM-DD"; the year is always
// derived from the reference date at evaluation time.
type Holiday struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Color       string `json:"color"`
	Image       string `json:"image,omitempty"`
	Banner      string `json:"banner,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsLeapYear reports whether the given year is a leap year.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ParseMonthDay parses an "MM-DD" string into month and day. Feb 29 is
// accepted; substitution for non-leap years happens at occurrence time.
func ParseMonthDay(dateStr string) (month, day int, err error) {
	if len(dateStr) != 5 || dateStr[2] != '-' {
		return 0, 0, fmt.Errorf("invalid date format, expected MM-DD, got %q", dateStr)
	}
	if _, err := fmt.Sscanf(dateStr, "%02d-%02d", &month, &day); err != nil {
		return 0, 0, fmt.Errorf("invalid date format, expected MM-DD, got %q", dateStr)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month out of range in %q", dateStr)
	}
	if day < 1 || day > daysInMonth[month] {
		return 0, 0, fmt.Errorf("day out of range in %q", dateStr)
	}
	return month, day, nil
}

// Occurrence returns the holiday's date in the given year. A Feb 29 holiday
// lands on Feb 28 in non-leap years.
func Occurrence(month, day, year int) time.Time {
	if month == 2 && day == 29 && !IsLeapYear(year) {
		day = 28
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(midnight(to).Sub(midnight(from)).Hours() / 24)
}

// DaysUntil returns the signed day offset from today to this year's
// occurrence of the holiday. Negative means the holiday already passed this
// year; zero means today is the day.
func DaysUntil(dateStr string, today time.Time) (int, error) {
	month, day, err := ParseMonthDay(dateStr)
	if err != nil {
		return 0, err
	}
	return daysBetween(today, Occurrence(month, day, today.Year())), nil
}

// DaysUntilNext returns the day count to the nearest future (or current)
// occurrence of the holiday, rolling into next year when this year's date has
// already passed. The result is never negative.
func DaysUntilNext(dateStr string, today time.Time) (int, error) {
	month, day, err := ParseMonthDay(dateStr)
	if err != nil {
		return 0, err
	}
	days := daysBetween(today, Occurrence(month, day, today.Year()))
	if days < 0 {
		days = daysBetween(today, Occurrence(month, day, today.Year()+1))
	}
	return days, nil
}
