// package sociallink scores member-to-member interactions into Persona-style
// confidant ranks: listeners turn messages, reactions, and voice time into
// points, and the leveling service turns points into levels and rank-up
// notifications.
package sociallink

import (
	"sync"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

// Event names fired on the bus.
const (
	EventLevelUp       = "on_level_up"
	EventInteraction   = "on_interaction"
	EventAvatarChanged = "on_avatar_changed"
)

// Payload carries the data of one bus event.
type Payload struct {
	GuildID  string
	ActorID  string
	TargetID string
	Level    int
	Points   int
	Source   string
}

// Handler consumes one event payload.
type Handler func(Payload)

// Bus is an in-process publish/subscribe registry. It is constructed at
// startup and handed to producers and consumers explicitly; there is no
// package-level instance.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *logging.Logger

	// sync forces in-line dispatch, used by tests.
	sync bool
}

// NewBus creates an empty event bus.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.WithCog(CogName),
	}
}

// Subscribe registers a handler for an event name.
func (b *Bus) Subscribe(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

// Fire dispatches the payload to every subscriber. Handlers run on their own
// goroutines; a panicking handler is logged and does not take down its
// siblings or the caller.
func (b *Bus) Fire(event string, p Payload) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Warn("event fired with no subscribers", "event", event)
		return
	}
	metrics.SocialLinkEventsFired.Add(1)

	for _, h := range handlers {
		run := func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "event", event, "panic", r)
				}
			}()
			h(p)
		}
		if b.sync {
			run(h)
		} else {
			go run(h)
		}
	}
}
