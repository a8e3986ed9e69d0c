package weatherchannel

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const embedColor = 0x3498DB

// BuildEmbed renders the reports as one embed, a field per city, with the
// optional summary paragraph on top.
func BuildEmbed(reports []Report, summary string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Today's Weather",
		Description: summary,
		Color:       embedColor,
	}
	for _, report := range reports {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  report.City,
			Value: formatReport(report),
		})
	}
	return embed
}

func formatReport(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %.0f%s", r.Condition, r.Temperature, r.Unit)
	if r.TempMax != 0 || r.TempMin != 0 {
		fmt.Fprintf(&b, " (high %.0f%s / low %.0f%s)", r.TempMax, r.Unit, r.TempMin, r.Unit)
	}
	if r.Wind != "" {
		fmt.Fprintf(&b, "\nWind %s", r.Wind)
	}
	if r.Humidity > 0 {
		fmt.Fprintf(&b, ", humidity %d%%", r.Humidity)
	}
	for _, alert := range r.Alerts {
		fmt.Fprintf(&b, "\n⚠ %s", alert)
	}
	return b.String()
}

// SummaryPrompt flattens the reports into the prompt for the one-paragraph
// summary.
func SummaryPrompt(reports []Report) string {
	var b strings.Builder
	b.WriteString("Write one short, friendly paragraph summarizing today's weather across these cities. Mention any alerts. Plain text only.\n\n")
	for _, report := range reports {
		fmt.Fprintf(&b, "%s: %s\n", report.City, formatReport(report))
	}
	return b.String()
}
