// package announce manages announcement channels, reusable message
// templates, and scheduled or recurring sends for a guild.
package announce

import (
	"strings"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
)

// CogName keys this cog's settings documents.
const CogName = "announce"

// historyLimit caps the stored send history per guild.
const historyLimit = 50

// DefaultDocument is the guild settings document every guild starts from.
func DefaultDocument() config.Document {
	return config.Document{
		"channels":        map[string]any{},
		"default_channel": "",
		"templates":       map[string]any{},
		"scheduled":       []any{},
		"history":         []any{},
		"allowed_roles":   []any{},
		"allowed_users":   []any{},
	}
}

// Template is a reusable announcement message. Kind is "text" or "embed".
type Template struct {
	Kind        string `json:"kind"`
	Content     string `json:"content,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// Render substitutes the {server_name}, {channel_name}, and {date}
// placeholders.
func (t Template) Render(serverName, channelName string, now time.Time) Template {
	replacer := strings.NewReplacer(
		"{server_name}", serverName,
		"{channel_name}", channelName,
		"{date}", now.Format("January 2, 2006"),
	)
	return Template{
		Kind:        t.Kind,
		Content:     replacer.Replace(t.Content),
		Title:       replacer.Replace(t.Title),
		Description: replacer.Replace(t.Description),
		Color:       t.Color,
	}
}

func templateFrom(doc config.Document) Template {
	return Template{
		Kind:        doc.String("kind", "text"),
		Content:     doc.String("content", ""),
		Title:       doc.String("title", ""),
		Description: doc.String("description", ""),
		Color:       int(doc.Int64("color", 0)),
	}
}

func writeTemplate(doc config.Document, name string, t Template) {
	entry := map[string]any{"kind": t.Kind}
	if t.Content != "" {
		entry["content"] = t.Content
	}
	if t.Title != "" {
		entry["title"] = t.Title
	}
	if t.Description != "" {
		entry["description"] = t.Description
	}
	if t.Color != 0 {
		entry["color"] = t.Color
	}
	doc.Sub("templates")[name] = entry
}

// resolveChannel maps a channel name to its ID, falling back to the default
// channel for an empty name.
func resolveChannel(doc config.Document, name string) string {
	if name == "" {
		return doc.String("default_channel", "")
	}
	return doc.Sub("channels").String(name, "")
}

// appendHistory records one sent announcement, keeping only the most recent
// entries.
func appendHistory(doc config.Document, entry map[string]any) {
	raw, _ := doc["history"].([]any)
	raw = append(raw, entry)
	if len(raw) > historyLimit {
		raw = raw[len(raw)-historyLimit:]
	}
	doc["history"] = raw
}
