package events

import (
	"context"
	"sync"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// EventType names an event published on the Bus.
type EventType string

const (
	EventTypeConfigChanged  EventType = "config_changed"
	EventTypeSessionStarted EventType = "session_started"
	EventTypeSessionEnded   EventType = "session_ended"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
}

// ConfigChangedEvent is emitted after a configuration write was committed.
type ConfigChangedEvent struct {
	Scope    string
	Patch    document.Map
	Document document.Map
	At       time.Time
}

func (e ConfigChangedEvent) Type() EventType { return EventTypeConfigChanged }

type SessionStartedEvent struct {
	SessionID string
	UserID    string
	GuildID   string
	At        time.Time
}

func (e SessionStartedEvent) Type() EventType { return EventTypeSessionStarted }

// SessionEndedEvent carries why a configuration session went away
// ("closed", "expired" or "shutdown").
type SessionEndedEvent struct {
	SessionID string
	UserID    string
	GuildID   string
	Reason    string
	Duration  time.Duration
}

func (e SessionEndedEvent) Type() EventType { return EventTypeSessionEnded }

// Handler receives events. Handlers run on the emitting goroutine and must
// not block; long work belongs on the task router.
type Handler func(ctx context.Context, event Event)

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

// Subscribe adds a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit delivers event to every handler subscribed to its type. A panicking
// handler is logged and does not stop the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	if b == nil || event == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	for i, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorLoggerRaw().Error("Event handler panicked",
						"event_type", string(event.Type()),
						"handler_index", i,
						"panic", r,
					)
				}
			}()
			h(ctx, event)
		}()
	}
}
