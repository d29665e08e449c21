package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handler processes a single delivered envelope. Returning an error marks
// the delivery failed for this subscriber only; it is logged and never
// propagated to other subscribers or to the publisher.
type Handler func(ctx context.Context, env Envelope) error

// Subscription identifies one registration in the registry. Go functions are
// not comparable, so removal goes through the token handed out by Add rather
// than by callback reference; the token removes exactly the registration
// that created it.
type Subscription struct {
	id        uint64
	eventType string
}

// EventType returns the event type this subscription is registered for.
func (s *Subscription) EventType() string {
	if s == nil {
		return ""
	}
	return s.eventType
}

type entry struct {
	id      uint64
	handler Handler
}

// SubscriberRegistry is the thread-safe event-type to handler-list mapping.
// Registering the same handler twice is allowed and results in two
// invocations per event; each registration gets its own token.
type SubscriberRegistry struct {
	mu     sync.RWMutex
	byType map[string][]entry
	nextID atomic.Uint64
}

// NewSubscriberRegistry returns an empty registry.
func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{byType: make(map[string][]entry)}
}

// Add appends a handler for an event type and returns its token.
func (r *SubscriberRegistry) Add(eventType string, h Handler) *Subscription {
	sub := &Subscription{id: r.nextID.Add(1), eventType: eventType}

	r.mu.Lock()
	r.byType[eventType] = append(r.byType[eventType], entry{id: sub.id, handler: h})
	r.mu.Unlock()

	return sub
}

// Remove deletes the registration behind the token. No-op if the token is
// nil or already removed.
func (r *SubscriberRegistry) Remove(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.byType[sub.eventType]
	for i := range entries {
		if entries[i].id == sub.id {
			r.byType[sub.eventType] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(r.byType[sub.eventType]) == 0 {
		delete(r.byType, sub.eventType)
	}
}

// handlersFor returns a snapshot of the registrations for an event type.
// The copy is safe to iterate while Add/Remove run concurrently.
func (r *SubscriberRegistry) handlersFor(eventType string) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byType[eventType]
	if len(entries) == 0 {
		return nil
	}
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	return snapshot
}

// Counts returns the subscriber count per event type.
func (r *SubscriberRegistry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.byType))
	for t, entries := range r.byType {
		counts[t] = len(entries)
	}
	return counts
}

// TotalSubscribers returns the number of live registrations.
func (r *SubscriberRegistry) TotalSubscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, entries := range r.byType {
		total += len(entries)
	}
	return total
}

// TotalEventTypes returns the number of event types with subscribers.
func (r *SubscriberRegistry) TotalEventTypes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}
