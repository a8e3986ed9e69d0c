package sociallink

import (
	"fmt"
	"math"
	"strings"
)

// Progression tuning. A level costs base + level^exponent points, so early
// ranks come quickly and later ranks stretch out.
const (
	defaultBase     = 10
	defaultExponent = 2
	defaultMaxLevel = 10
)

// Progression computes levels from accumulated points.
type Progression struct {
	Base     int
	Exponent int
	MaxLevel int
}

// DefaultProgression is the standard tuning.
func DefaultProgression() Progression {
	return Progression{Base: defaultBase, Exponent: defaultExponent, MaxLevel: defaultMaxLevel}
}

// PointsForLevel is the incremental cost of advancing from the given level.
func (p Progression) PointsForLevel(level int) int {
	return p.Base + int(math.Pow(float64(level), float64(p.Exponent)))
}

// Level converts a score to a level by peeling off each level's cost in
// turn, capped at MaxLevel.
func (p Progression) Level(score int) int {
	level := 0
	for score >= p.PointsForLevel(level) && level < p.MaxLevel {
		score -= p.PointsForLevel(level)
		level++
	}
	return level
}

// StarRating renders a level as filled and hollow stars.
func (p Progression) StarRating(level int) string {
	if level > p.MaxLevel {
		level = p.MaxLevel
	}
	return strings.Repeat("★", level) + strings.Repeat("☆", p.MaxLevel-level)
}

// LevelHandler reacts to one confidant pair reaching a level.
type LevelHandler func(p Payload)

// Notifier owns the per-level rank-up behavior. The handler table must cover
// every level up to the progression cap; a gap is a construction error, not a
// silent runtime no-op.
type Notifier struct {
	progression Progression
	handlers    map[int]LevelHandler
}

// NewNotifier validates the level table and returns the notifier.
func NewNotifier(progression Progression, handlers map[int]LevelHandler) (*Notifier, error) {
	for level := 1; level <= progression.MaxLevel; level++ {
		if handlers[level] == nil {
			return nil, fmt.Errorf("no handler registered for level %d", level)
		}
	}
	return &Notifier{progression: progression, handlers: handlers}, nil
}

// HandleLevelUp dispatches the reached level to its handler. Levels beyond
// the cap use the cap's handler.
func (n *Notifier) HandleLevelUp(p Payload) {
	level := p.Level
	if level > n.progression.MaxLevel {
		level = n.progression.MaxLevel
	}
	if h := n.handlers[level]; h != nil {
		h(p)
	}
}
