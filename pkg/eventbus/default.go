package eventbus

import (
	"context"
	"sync"
)

var (
	defaultBus   *Bus
	defaultBusMu sync.Mutex
)

// Default returns the process-wide singleton Bus, initializing it from the
// environment on first access. Two calls always return the same instance.
//
// Prefer constructing a Bus with New at the composition root and injecting
// it; Default exists for callers that need ambient access (and mirrors how
// the ERP modules historically reached the bus).
func Default() *Bus {
	defaultBusMu.Lock()
	defer defaultBusMu.Unlock()

	if defaultBus == nil {
		defaultBus = New(FromEnv())
	}
	return defaultBus
}

// SetDefault replaces the process-wide default Bus. Tests use this to
// install a fresh instance instead of resetting global state.
func SetDefault(b *Bus) {
	defaultBusMu.Lock()
	defaultBus = b
	defaultBusMu.Unlock()
}

// Publish is the facade using the default bus.
func Publish(ctx context.Context, eventType string, data Payload) bool {
	return Default().Publish(ctx, eventType, data)
}

// Subscribe is the facade using the default bus.
func Subscribe(eventType string, h Handler) *Subscription {
	return Default().Subscribe(eventType, h)
}

// Unsubscribe is the facade using the default bus.
func Unsubscribe(sub *Subscription) {
	Default().Unsubscribe(sub)
}
