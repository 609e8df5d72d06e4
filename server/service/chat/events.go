package chat

import (
	"context"
	"log/slog"
	"sync"
)

// EventType represents the type of chat event.
type EventType string

const (
	// EventSettingsChanged is fired when the user updates profile settings
	// (pet name, API credentials).
	EventSettingsChanged EventType = "settings_changed"
	// EventErrorNotice is fired when an operation degrades into a
	// user-visible diagnostic; listeners surface it as a transient notice.
	EventErrorNotice EventType = "error_notice"
)

// Event is one bus payload.
type Event struct {
	Type EventType
	// PetName carries the new name for EventSettingsChanged.
	PetName string
	// Notice carries the diagnostic text for EventErrorNotice.
	Notice string
}

// EventListener processes one event. Listeners must not block.
type EventListener func(ctx context.Context, event *Event)

// EventBus fans events out to registered listeners. It replaces the ambient
// shared-preference polling the mobile client did: settings changes reach
// live services through an explicit channel.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]EventListener),
	}
}

// Subscribe registers a listener for a specific event type.
func (b *EventBus) Subscribe(eventType EventType, listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], listener)
}

// Publish delivers the event to all registered listeners, recovering from
// listener panics so a bad subscriber cannot take down the publisher.
func (b *EventBus) Publish(ctx context.Context, event *Event) {
	b.mu.RLock()
	listeners := append([]EventListener(nil), b.listeners[event.Type]...)
	b.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("event listener panicked", "event_type", event.Type, "panic", r)
				}
			}()
			listener(ctx, event)
		}()
	}
}
