package movieclub

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
)

// CogName keys this cog's settings documents.
const CogName = "movieclub"

// DefaultDocument is the guild settings document every guild starts from.
func DefaultDocument() config.Document {
	return config.Document{
		"channel_id":     "",
		"target_role_id": "",
		"active_poll":    "",
		"polls":          map[string]any{},
	}
}

// Poll is one date poll. Votes maps a date key to the set of user IDs that
// voted for it; user IDs are stringified snowflakes.
type Poll struct {
	ID        string
	ChannelID string
	MessageID string
	Dates     []string
	Votes     map[string]map[string]bool
	Open      bool
}

// NewPoll creates an open poll over the given candidate dates.
func NewPoll(dates []time.Time) Poll {
	keys := make([]string, len(dates))
	votes := make(map[string]map[string]bool, len(dates))
	for i, d := range dates {
		key := d.Format(dateKey)
		keys[i] = key
		votes[key] = map[string]bool{}
	}
	return Poll{
		ID:    uuid.New().String(),
		Dates: keys,
		Votes: votes,
		Open:  true,
	}
}

// ToggleVote flips a user's vote for one date and reports whether the vote is
// now present.
func (p *Poll) ToggleVote(date, userID string) (bool, error) {
	voters, ok := p.Votes[date]
	if !ok {
		return false, fmt.Errorf("date %s is not part of poll %s", date, p.ID)
	}
	if voters[userID] {
		delete(voters, userID)
		return false, nil
	}
	voters[userID] = true
	return true, nil
}

// VoteCount returns how many users voted for a date.
func (p *Poll) VoteCount(date string) int {
	return len(p.Votes[date])
}

// UniqueVoters returns the distinct users that voted for any date.
func (p *Poll) UniqueVoters() map[string]bool {
	out := make(map[string]bool)
	for _, voters := range p.Votes {
		for id := range voters {
			out[id] = true
		}
	}
	return out
}

// VotedDates lists the dates one user has voted for, chronologically.
func (p *Poll) VotedDates(userID string) []string {
	var out []string
	for date, voters := range p.Votes {
		if voters[userID] {
			out = append(out, date)
		}
	}
	return SortedDateKeys(out)
}

// Winner returns the date with the most votes, ties broken by earliest date.
// ok is false when nobody voted.
func (p *Poll) Winner() (string, bool) {
	best := ""
	bestCount := 0
	for _, date := range SortedDateKeys(p.Dates) {
		if count := len(p.Votes[date]); count > bestCount {
			best = date
			bestCount = count
		}
	}
	return best, bestCount > 0
}

// pollFrom decodes a poll from its stored document.
func pollFrom(doc config.Document, id string) Poll {
	p := Poll{
		ID:        id,
		ChannelID: doc.String("channel_id", ""),
		MessageID: doc.String("message_id", ""),
		Dates:     doc.StringSlice("dates"),
		Votes:     make(map[string]map[string]bool),
		Open:      doc.Bool("open", false),
	}
	votes := doc.Sub("votes")
	for _, date := range p.Dates {
		voters := map[string]bool{}
		for _, id := range votes.StringSlice(date) {
			voters[id] = true
		}
		p.Votes[date] = voters
	}
	return p
}

// encode serializes the poll back into document form.
func (p Poll) encode() map[string]any {
	dates := make([]any, len(p.Dates))
	for i, d := range p.Dates {
		dates[i] = d
	}
	votes := make(map[string]any, len(p.Votes))
	for date, voters := range p.Votes {
		ids := make([]any, 0, len(voters))
		for _, id := range SortedDateKeys(keysOf(voters)) {
			ids = append(ids, id)
		}
		votes[date] = ids
	}
	return map[string]any{
		"channel_id": p.ChannelID,
		"message_id": p.MessageID,
		"dates":      dates,
		"votes":      votes,
		"open":       p.Open,
	}
}

func keysOf(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
