// package seasonalroles applies holiday-themed roles and announcements on a
// schedule. A daily checker resolves each configured holiday into a phase
// window and drives role creation, assignment, cleanup, and the matching
// channel announcements.
package seasonalroles

import (
	"sort"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/holiday"
)

// CogName keys this cog's settings documents.
const CogName = "seasonalroles"

// DefaultDocument is the guild settings document every guild starts from.
func DefaultDocument() config.Document {
	return config.Document{
		"holidays": map[string]any{
			"New Year's Celebration": map[string]any{
				"date":  "01-01",
				"color": "#D3B44B",
				"image": "assets/new-years-01.png",
			},
			"Spring Blossom Festival": map[string]any{
				"date":  "03-20",
				"color": "#906D8D",
				"image": "assets/spring-blossom-01.png",
			},
			"Kids Day": map[string]any{
				"date":  "05-05",
				"color": "#68855A",
			},
			"Midsummer Festival": map[string]any{
				"date":  "06-21",
				"color": "#4A6E8A",
			},
			"Star Festival": map[string]any{
				"date":  "07-07",
				"color": "#D4A13D",
			},
			"Friendship Day": map[string]any{
				"date":  "08-02",
				"color": "#8A6E5C",
				"image": "assets/friendship-01.png",
			},
			"Harvest Festival": map[string]any{
				"date":  "09-22",
				"color": "#D37C40",
			},
			"Memories Festival": map[string]any{
				"date":  "10-15",
				"color": "#68855A",
			},
			"Spooky Festival": map[string]any{
				"date":  "10-31",
				"color": "#A8574E",
				"image": "assets/spooky-01.png",
			},
			"Winter Festival": map[string]any{
				"date":  "12-21",
				"color": "#6C8893",
				"image": "assets/winter-01.png",
			},
		},
		"opt_out_users":     []any{},
		"dry_run_mode":      true,
		"last_checked_date": "",
		"banner_management": map[string]any{
			"enabled":        false,
			"applied_banner": "",
		},
		"announcement_config": map[string]any{
			"enabled":            false,
			"channel_id":         "",
			"mention_type":       "",
			"mention_id":         "",
			"templates":          map[string]any{},
			"last_announcements": map[string]any{},
		},
	}
}

// holidaysFrom decodes the guild document's holiday table.
func holidaysFrom(doc config.Document) map[string]holiday.Holiday {
	sub := doc.Sub("holidays")
	out := make(map[string]holiday.Holiday, len(sub))
	for name := range sub {
		entry := sub.Sub(name)
		out[name] = holiday.Holiday{
			Name:        name,
			Date:        entry.String("date", ""),
			Color:       entry.String("color", ""),
			Image:       entry.String("image", ""),
			Banner:      entry.String("banner", ""),
			DisplayName: entry.String("display_name", ""),
		}
	}
	return out
}

// writeHoliday stores a holiday definition under its name.
func writeHoliday(doc config.Document, h holiday.Holiday) {
	entry := map[string]any{
		"date":  h.Date,
		"color": h.Color,
	}
	if h.Image != "" {
		entry["image"] = h.Image
	}
	if h.Banner != "" {
		entry["banner"] = h.Banner
	}
	if h.DisplayName != "" {
		entry["display_name"] = h.DisplayName
	}
	doc.Sub("holidays")[h.Name] = entry
}

func removeHoliday(doc config.Document, name string) bool {
	sub := doc.Sub("holidays")
	if !sub.Has(name) {
		return false
	}
	delete(sub, name)
	return true
}

// setOptOut adds or removes a user from the opt-out list, reporting whether
// the list changed.
func setOptOut(doc config.Document, userID string, optOut bool) bool {
	current := doc.StringSlice("opt_out_users")
	found := -1
	for i, id := range current {
		if id == userID {
			found = i
			break
		}
	}
	if optOut == (found >= 0) {
		return false
	}
	if optOut {
		current = append(current, userID)
		sort.Strings(current)
	} else {
		current = append(current[:found], current[found+1:]...)
	}
	next := make([]any, len(current))
	for i, id := range current {
		next[i] = id
	}
	doc["opt_out_users"] = next
	return true
}

func isOptedOut(doc config.Document, userID string) bool {
	for _, id := range doc.StringSlice("opt_out_users") {
		if id == userID {
			return true
		}
	}
	return false
}
