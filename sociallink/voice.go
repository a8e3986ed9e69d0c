package sociallink

import (
	"sync"
	"time"
)

const voiceDay = "2006-01-02"

type voiceSession struct {
	guildID   string
	channelID string
	since     time.Time
}

// PairCredit reports that a pair of users earned voice points.
type PairCredit struct {
	GuildID string
	A       string
	B       string
}

// VoiceTracker accumulates time pairs of users spend together in voice
// channels. A pair earns at most one voice credit per day, once their shared
// time crosses the threshold.
type VoiceTracker struct {
	mu       sync.Mutex
	day      string
	sessions map[string]voiceSession
	shared   map[string]time.Duration
	awarded  map[string]bool
	now      func() time.Time
}

// NewVoiceTracker creates an empty tracker.
func NewVoiceTracker() *VoiceTracker {
	return &VoiceTracker{
		sessions: make(map[string]voiceSession),
		shared:   make(map[string]time.Duration),
		awarded:  make(map[string]bool),
		now:      time.Now,
	}
}

// Update records a voice state change. An empty channel ID means the user
// left voice. It returns the pairs that crossed the daily threshold with this
// change.
func (t *VoiceTracker) Update(guildID, userID, channelID string, threshold time.Duration) []PairCredit {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)

	var credits []PairCredit
	if prev, ok := t.sessions[userID]; ok && prev.channelID != channelID {
		elapsed := now.Sub(prev.since)
		for otherID, other := range t.sessions {
			if otherID == userID || other.guildID != prev.guildID || other.channelID != prev.channelID {
				continue
			}
			// Both were in the channel; credit the overlap since the later
			// of the two joins.
			overlap := elapsed
			if other.since.After(prev.since) {
				overlap = now.Sub(other.since)
			}
			key := pairKey(userID, otherID)
			t.shared[key] += overlap
			if t.shared[key] >= threshold && !t.awarded[key] {
				t.awarded[key] = true
				credits = append(credits, PairCredit{GuildID: prev.guildID, A: userID, B: otherID})
			}
		}
	}

	if channelID == "" {
		delete(t.sessions, userID)
	} else {
		t.sessions[userID] = voiceSession{guildID: guildID, channelID: channelID, since: now}
	}
	return credits
}

// rollover resets the per-day accounting when the calendar day changes.
// Open sessions survive so time spanning midnight counts toward the new day.
func (t *VoiceTracker) rollover(now time.Time) {
	day := now.UTC().Format(voiceDay)
	if t.day == day {
		return
	}
	t.day = day
	t.shared = make(map[string]time.Duration)
	t.awarded = make(map[string]bool)
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
