package sociallink

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/config"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// CogName keys this cog's settings documents.
const CogName = "sociallink"

// journalLimit caps stored journal entries per user.
const journalLimit = 100

// DefaultDocument is the guild settings document: points per interaction
// source and the voice-time threshold.
func DefaultDocument() config.Document {
	return config.Document{
		"events": map[string]any{
			"voice_channel":   map[string]any{"duration_threshold": 1800, "points": 10},
			"message_mention": map[string]any{"points": 5},
			"reaction":        map[string]any{"points": 2},
			"media_share":     map[string]any{"points": 3},
			"quote":           map[string]any{"points": 3},
		},
	}
}

// PointsFor reads the configured points for an interaction source.
func PointsFor(doc config.Document, source string) int {
	return int(doc.Sub("events").Sub(source).Int64("points", 0))
}

// VoiceThreshold reads the voice session length, in seconds, that earns
// points.
func VoiceThreshold(doc config.Document) int {
	return int(doc.Sub("events").Sub("voice_channel").Int64("duration_threshold", 1800))
}

// Service owns confidant scores. Scores live in per-user documents; every
// interaction credits both directions of the pair.
type Service struct {
	store       *config.Store
	bus         *Bus
	progression Progression
	logger      *logging.Logger
	now         func() time.Time
}

// NewService wires the score service to the bus and store.
func NewService(store *config.Store, bus *Bus, progression Progression, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:       store,
		bus:         bus,
		progression: progression,
		logger:      logger.WithCog(CogName),
		now:         time.Now,
	}
}

// Score returns one user's points toward another.
func (svc *Service) Score(ctx context.Context, userID, otherID string) (int, error) {
	doc, err := svc.store.User(ctx, userID, CogName)
	if err != nil {
		return 0, err
	}
	return int(doc.Sub("scores").Int64(otherID, 0)), nil
}

// AddPoints credits an interaction between two users. Both sides gain the
// points; a side crossing a level boundary fires a level-up event.
func (svc *Service) AddPoints(ctx context.Context, guildID, actorID, targetID string, points int, source string) error {
	if actorID == targetID || points == 0 {
		return nil
	}
	if err := svc.credit(ctx, guildID, actorID, targetID, points, source); err != nil {
		return err
	}
	return svc.credit(ctx, guildID, targetID, actorID, points, source)
}

func (svc *Service) credit(ctx context.Context, guildID, userID, otherID string, points int, source string) error {
	leveledTo := 0
	err := svc.store.UpdateUser(ctx, userID, CogName, func(doc config.Document) error {
		scores := doc.Sub("scores")
		before := int(scores.Int64(otherID, 0))
		after := before + points
		scores[otherID] = after
		doc["aggregate_score"] = doc.Int64("aggregate_score", 0) + int64(points)

		if newLevel := svc.progression.Level(after); newLevel > svc.progression.Level(before) {
			leveledTo = newLevel
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("crediting %d points to %s: %w", points, userID, err)
	}

	if leveledTo > 0 {
		metrics.SocialLinkLevelUps.Add(1)
		svc.logger.Info("confidant rank increased", "userID", userID, "confidantID", otherID, "level", leveledTo, "source", source)
		svc.bus.Fire(EventLevelUp, Payload{
			GuildID:  guildID,
			ActorID:  userID,
			TargetID: otherID,
			Level:    leveledTo,
			Points:   points,
			Source:   source,
		})
	}
	return nil
}

// Confidant is one scored relationship.
type Confidant struct {
	UserID string
	Score  int
	Level  int
}

// Confidants lists a user's relationships, highest score first.
func (svc *Service) Confidants(ctx context.Context, userID string) ([]Confidant, error) {
	doc, err := svc.store.User(ctx, userID, CogName)
	if err != nil {
		return nil, err
	}
	scores := doc.Sub("scores")
	out := make([]Confidant, 0, len(scores))
	for otherID := range scores {
		score := int(scores.Int64(otherID, 0))
		out = append(out, Confidant{
			UserID: otherID,
			Score:  score,
			Level:  svc.progression.Level(score),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// SetScore overwrites one direction of a pair's score, for admin repair.
func (svc *Service) SetScore(ctx context.Context, userID, otherID string, score int) error {
	return svc.store.UpdateUser(ctx, userID, CogName, func(doc config.Document) error {
		scores := doc.Sub("scores")
		before := scores.Int64(otherID, 0)
		scores[otherID] = score
		doc["aggregate_score"] = doc.Int64("aggregate_score", 0) - before + int64(score)
		return nil
	})
}

// Reset wipes a user's scores and journal.
func (svc *Service) Reset(ctx context.Context, userID string) error {
	return svc.store.UpdateUser(ctx, userID, CogName, func(doc config.Document) error {
		doc["scores"] = map[string]any{}
		doc["aggregate_score"] = int64(0)
		doc["journal"] = []any{}
		return nil
	})
}

// JournalEntry is one journal line about a confidant.
type JournalEntry struct {
	ConfidantID string `json:"confidant_id"`
	Rank        int    `json:"rank"`
	Entry       string `json:"entry"`
	Timestamp   string `json:"timestamp"`
}

// AddJournalEntry records a journal line, stamped with the pair's current
// rank.
func (svc *Service) AddJournalEntry(ctx context.Context, userID, confidantID, entry string) (JournalEntry, error) {
	var written JournalEntry
	err := svc.store.UpdateUser(ctx, userID, CogName, func(doc config.Document) error {
		score := int(doc.Sub("scores").Int64(confidantID, 0))
		written = JournalEntry{
			ConfidantID: confidantID,
			Rank:        svc.progression.Level(score),
			Entry:       entry,
			Timestamp:   svc.now().UTC().Format(time.RFC3339),
		}
		raw, _ := doc["journal"].([]any)
		raw = append(raw, map[string]any{
			"confidant_id": written.ConfidantID,
			"rank":         written.Rank,
			"entry":        written.Entry,
			"timestamp":    written.Timestamp,
		})
		if len(raw) > journalLimit {
			raw = raw[len(raw)-journalLimit:]
		}
		doc["journal"] = raw
		return nil
	})
	return written, err
}

// Journal returns a user's entries, newest last. With a confidant ID it
// filters to that pair.
func (svc *Service) Journal(ctx context.Context, userID, confidantID string) ([]JournalEntry, error) {
	doc, err := svc.store.User(ctx, userID, CogName)
	if err != nil {
		return nil, err
	}
	raw, _ := doc["journal"].([]any)
	var out []JournalEntry
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := config.Document(entry)
		if confidantID != "" && e.String("confidant_id", "") != confidantID {
			continue
		}
		out = append(out, JournalEntry{
			ConfidantID: e.String("confidant_id", ""),
			Rank:        int(e.Int64("rank", 0)),
			Entry:       e.String("entry", ""),
			Timestamp:   e.String("timestamp", ""),
		})
	}
	return out, nil
}

// LatestJournalEntry returns the newest entry about a confidant, if any.
func (svc *Service) LatestJournalEntry(ctx context.Context, userID, confidantID string) (JournalEntry, bool) {
	entries, err := svc.Journal(ctx, userID, confidantID)
	if err != nil || len(entries) == 0 {
		return JournalEntry{}, false
	}
	return entries[len(entries)-1], true
}
