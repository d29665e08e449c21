package eventbus

import (
	"context"
	"time"
)

// Bus status values reported by HealthCheck.
const (
	StatusHealthy  = "healthy"  // broker connected and responding
	StatusDegraded = "degraded" // broker connection present but failing
	StatusFallback = "fallback" // enabled, delivering in-process only
	StatusDisabled = "disabled" // switched off by configuration
)

// Broker status values reported by HealthCheck.
const (
	BrokerConnected    = "connected"
	BrokerDisconnected = "disconnected"
	BrokerError        = "error"
)

// Health is the HealthCheck result.
type Health struct {
	Status    string    `json:"status"`
	Broker    string    `json:"broker"`
	Listening bool      `json:"listening"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the snapshot returned by Stats.
type Stats struct {
	Enabled          bool           `json:"enabled"`
	BrokerConnected  bool           `json:"broker_connected"`
	Listening        bool           `json:"listening"`
	Subscribers      map[string]int `json:"subscribers"`
	TotalEventTypes  int            `json:"total_event_types"`
	TotalSubscribers int            `json:"total_subscribers"`
}

// HealthCheck pings the broker and reports the bus state. A broker problem
// is reported here and nowhere else; it never fails callers of Publish.
func (b *Bus) HealthCheck(ctx context.Context) Health {
	h := Health{
		Status:    StatusHealthy,
		Broker:    BrokerDisconnected,
		Listening: b.Listening(),
		Timestamp: b.now().UTC(),
	}

	switch {
	case !b.cfg.Enabled:
		h.Status = StatusDisabled
	case b.connector.Connected():
		if b.connector.Ping(ctx) {
			h.Broker = BrokerConnected
		} else {
			h.Status = StatusDegraded
			h.Broker = BrokerError
		}
	default:
		h.Status = StatusFallback
	}
	return h
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Enabled:          b.cfg.Enabled,
		BrokerConnected:  b.connector.Connected(),
		Listening:        b.Listening(),
		Subscribers:      b.registry.Counts(),
		TotalEventTypes:  b.registry.TotalEventTypes(),
		TotalSubscribers: b.registry.TotalSubscribers(),
	}
}
