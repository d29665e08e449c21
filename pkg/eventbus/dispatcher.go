package eventbus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Dispatcher delivers one envelope to every registered handler for its type.
// Delivery is best-effort and fire-and-forget: a failing or panicking
// handler is logged and isolated, the remaining handlers still run.
type Dispatcher struct {
	registry *SubscriberRegistry
	logger   zerolog.Logger
	notify   func(BusEvent)
}

// NewDispatcher builds a dispatcher over a registry. notify may be nil.
func NewDispatcher(registry *SubscriberRegistry, logger zerolog.Logger, notify func(BusEvent)) *Dispatcher {
	if notify == nil {
		notify = func(BusEvent) {}
	}
	return &Dispatcher{registry: registry, logger: logger, notify: notify}
}

// Dispatch invokes all handlers registered for env.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) {
	entries := d.registry.handlersFor(env.Type)
	for i := range entries {
		d.invoke(ctx, entries[i], env)
	}
	if len(entries) > 0 {
		d.notify(BusEvent{Type: BusEventDispatched, EventType: env.Type, EventID: env.EventID})
	}
}

// deliverOne hands a single envelope to a single handler through the same
// guard as regular dispatch. Used for persistent catch-up deliveries.
func (d *Dispatcher) deliverOne(ctx context.Context, sub *Subscription, h Handler, env Envelope) {
	d.invoke(ctx, entry{id: sub.id, handler: h}, env)
}

func (d *Dispatcher) invoke(ctx context.Context, e entry, env Envelope) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return e.handler(ctx, env)
	}()

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("event_type", env.Type).
			Str("event_id", env.EventID).
			Uint64("subscription", e.id).
			Msg("event handler failed")
		d.notify(BusEvent{Type: BusEventHandlerError, EventType: env.Type, EventID: env.EventID, Err: err})
	}
}
