package holiday

import (
	"fmt"
	"regexp"
	"strings"

	edlib "github.com/hbollon/go-edlib"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateDate checks that the date string is a well-formed MM-DD.
func ValidateDate(dateStr string) error {
	_, _, err := ParseMonthDay(dateStr)
	return err
}

// ValidateColor checks that the color is a #RRGGBB hex string.
func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("invalid color %q, expected #RRGGBB", color)
	}
	return nil
}

// ValidateName checks that the holiday name is non-empty and short enough to
// fit in a role name alongside the date suffix.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("holiday name must not be empty")
	}
	if len(trimmed) > maxNameLen {
		return fmt.Errorf("holiday name %q exceeds %d characters", trimmed, maxNameLen)
	}
	return nil
}

// Validate checks every field of a holiday definition.
func Validate(h Holiday) error {
	if err := ValidateName(h.Name); err != nil {
		return err
	}
	if err := ValidateDate(h.Date); err != nil {
		return err
	}
	if err := ValidateColor(h.Color); err != nil {
		return err
	}
	return nil
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a name guess to
// count as a match.
const fuzzyThreshold = float32(0.85)

// Find resolves a possibly-misspelled holiday name against the configured
// set. Exact matches (case-insensitive) win; otherwise the closest name above
// the similarity threshold is returned. ok is false when nothing is close
// enough.
func Find(holidays map[string]Holiday, query string) (name string, h Holiday, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return "", Holiday{}, false
	}

	for candidate, holiday := range holidays {
		if strings.ToLower(candidate) == lowered || strings.ToLower(holiday.DisplayName) == lowered {
			return candidate, holiday, true
		}
	}

	// Substring matches beat fuzzy scoring: "blossom" should hit "Spring
	// Blossom" without relying on edit distance.
	substrName := ""
	for candidate, holiday := range holidays {
		if strings.Contains(strings.ToLower(candidate), lowered) {
			if substrName == "" || candidate < substrName {
				substrName = candidate
				h = holiday
			}
		}
	}
	if substrName != "" {
		return substrName, h, true
	}

	best := float32(0)
	for candidate, holiday := range holidays {
		score := edlib.JaroWinklerSimilarity(lowered, strings.ToLower(candidate))
		if score > best || (score == best && ok && candidate < name) {
			best = score
			name = candidate
			h = holiday
			ok = true
		}
	}
	if best < fuzzyThreshold {
		return "", Holiday{}, false
	}
	return name, h, true
}
