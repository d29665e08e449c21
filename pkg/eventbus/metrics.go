package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes bus telemetry as prometheus collectors.
type Metrics struct {
	PublishedTotal     *prometheus.CounterVec
	DispatchedTotal    *prometheus.CounterVec
	HandlerErrorsTotal *prometheus.CounterVec
	BrokerReconnects   prometheus.Counter
	BrokerConnected    prometheus.Gauge
}

// NewMetrics builds and registers the bus collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpbus_events_published_total",
				Help: "Events accepted by the bus, by event type and delivery path",
			},
			[]string{"type", "path"},
		),
		DispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpbus_events_dispatched_total",
				Help: "Envelopes dispatched to local subscribers, by event type",
			},
			[]string{"type"},
		),
		HandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpbus_handler_errors_total",
				Help: "Subscriber handler failures, by event type",
			},
			[]string{"type"},
		),
		BrokerReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "erpbus_broker_reconnects_total",
				Help: "Times the broker connection was re-established",
			},
		),
		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "erpbus_broker_connected",
				Help: "Whether the broker connection is live (1) or down (0)",
			},
		),
	}

	reg.MustRegister(
		m.PublishedTotal,
		m.DispatchedTotal,
		m.HandlerErrorsTotal,
		m.BrokerReconnects,
		m.BrokerConnected,
	)
	return m
}

// Observer returns an Observer feeding these collectors from bus events.
func (m *Metrics) Observer() Observer {
	return ObserverFunc(func(e BusEvent) {
		switch e.Type {
		case BusEventPublishedBroker:
			m.PublishedTotal.WithLabelValues(e.EventType, "broker").Inc()
		case BusEventPublishedLocal:
			m.PublishedTotal.WithLabelValues(e.EventType, "local").Inc()
		case BusEventDispatched:
			m.DispatchedTotal.WithLabelValues(e.EventType).Inc()
		case BusEventHandlerError:
			m.HandlerErrorsTotal.WithLabelValues(e.EventType).Inc()
		case BusEventBrokerUp:
			m.BrokerReconnects.Inc()
			m.BrokerConnected.Set(1)
		case BusEventBrokerDown:
			m.BrokerConnected.Set(0)
		}
	})
}
