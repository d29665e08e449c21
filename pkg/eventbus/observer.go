package eventbus

import (
	"github.com/rs/zerolog"
)

// BusEventType enumerates bus lifecycle events for the Observer pattern.
type BusEventType string

const (
	BusEventPublishedBroker BusEventType = "published_broker"
	BusEventPublishedLocal  BusEventType = "published_local"
	BusEventDispatched      BusEventType = "dispatched"
	BusEventHandlerError    BusEventType = "handler_error"
	BusEventReplayDelivered BusEventType = "replay_delivered"
	BusEventBrokerUp        BusEventType = "broker_up"
	BusEventBrokerDown      BusEventType = "broker_down"
)

// BusEvent carries telemetry for observers.
type BusEvent struct {
	Type      BusEventType
	EventType string
	EventID   string
	Err       error
}

// Observer receives bus lifecycle events. Implementations must be
// non-blocking; they run inline on the publish/dispatch path.
type Observer interface {
	OnBusEvent(e BusEvent)
}

// ObserverFunc lets a plain function satisfy Observer.
type ObserverFunc func(e BusEvent)

func (f ObserverFunc) OnBusEvent(e BusEvent) { f(e) }

// LoggingObserver emits bus events via zerolog.
type LoggingObserver struct {
	Logger zerolog.Logger
}

func (o LoggingObserver) OnBusEvent(e BusEvent) {
	ev := o.Logger.With().
		Str("bus_event", string(e.Type)).
		Str("event_type", e.EventType).
		Str("event_id", e.EventID).
		Logger()

	switch e.Type {
	case BusEventHandlerError, BusEventBrokerDown:
		ev.Warn().Err(e.Err).Msg("event bus")
	default:
		ev.Debug().Msg("event bus")
	}
}
