package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grupoatlas/erpbus/pkg/eventbus"
)

const (
	defaultWindow  = 30 * 24 * time.Hour
	defaultLimit   = 5
	dashboardDays  = 30
	alertListLimit = 20
	maxLiveAlerts  = 20
)

// Period is the date window a dashboard covers.
type Period struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`
}

// KPISet carries the consolidated headline indicators.
type KPISet struct {
	SalesTotal       float64 `json:"sales_total"`
	SalesCount       int     `json:"sales_count"`
	AvgTicket        float64 `json:"avg_ticket"`
	LowStockProducts int     `json:"low_stock_products"`
}

// LiveAlert is an alert-class event observed on the bus since startup.
type LiveAlert struct {
	EventType  string           `json:"event_type"`
	EventID    string           `json:"event_id"`
	Data       eventbus.Payload `json:"data"`
	ReceivedAt time.Time        `json:"received_at"`
}

// Dashboard is the consolidated snapshot. Sections from failing or absent
// sources are nil/empty and Partial is set; the call itself never fails on
// a source error.
type Dashboard struct {
	Period      Period            `json:"period"`
	Partial     bool              `json:"partial"`
	KPIs        *KPISet           `json:"kpis,omitempty"`
	Sales       *SalesSummary     `json:"sales,omitempty"`
	DailySales  []DailySales      `json:"daily_sales,omitempty"`
	TopProducts []ProductSales    `json:"top_products,omitempty"`
	Inventory   *InventorySummary `json:"inventory,omitempty"`
	Alerts      []AlertRecord     `json:"alerts,omitempty"`
	LiveAlerts  []LiveAlert       `json:"live_alerts,omitempty"`
}

// Aggregator composes the read-only providers. All fields are optional;
// missing providers behave like uninstalled modules.
type Aggregator struct {
	sales     SalesStats
	inventory InventoryStats
	alerts    AlertSource

	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	live []LiveAlert
	subs []*eventbus.Subscription
	bus  *eventbus.Bus
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger injects the aggregator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithNow injects the timestamp source (tests).
func WithNow(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds an Aggregator over the given providers. Any provider may be
// nil; its sections are then omitted and flagged partial.
func New(sales SalesStats, inventory InventoryStats, alerts AlertSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		sales:     sales,
		inventory: inventory,
		alerts:    alerts,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	return a
}

// AttachBus subscribes the aggregator to alert-class events so dashboards
// include alerts raised since startup even before they land in storage.
func (a *Aggregator) AttachBus(bus *eventbus.Bus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bus != nil {
		return
	}
	a.bus = bus
	for _, eventType := range []string{eventbus.EventStockLowDetected, eventbus.EventAnomalyDetected} {
		a.subs = append(a.subs, bus.Subscribe(eventType, a.onAlertEvent))
	}
}

// Detach removes the bus subscriptions registered by AttachBus.
func (a *Aggregator) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sub := range a.subs {
		a.bus.Unsubscribe(sub)
	}
	a.subs = nil
	a.bus = nil
}

func (a *Aggregator) onAlertEvent(_ context.Context, env eventbus.Envelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.live = append(a.live, LiveAlert{
		EventType:  env.Type,
		EventID:    env.EventID,
		Data:       env.Data,
		ReceivedAt: a.now().UTC(),
	})
	if len(a.live) > maxLiveAlerts {
		a.live = a.live[len(a.live)-maxLiveAlerts:]
	}
	return nil
}

func (a *Aggregator) liveAlerts() []LiveAlert {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.live) == 0 {
		return nil
	}
	out := make([]LiveAlert, len(a.live))
	copy(out, a.live)
	return out
}

// BuildDashboard assembles the consolidated snapshot for a window. Zero
// from/to default to the last 30 days ending now.
func (a *Aggregator) BuildDashboard(ctx context.Context, from, to time.Time) Dashboard {
	now := a.now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}

	d := Dashboard{
		Period: Period{From: from, To: to, GeneratedAt: now},
	}

	if summary, ok := a.fetchSales(ctx, from, to); ok {
		d.Sales = summary
	} else {
		d.Partial = true
	}

	if a.sales != nil {
		if daily, err := a.sales.DailyTotals(ctx, from, to, dashboardDays); err == nil {
			d.DailySales = daily
		} else {
			a.logger.Error().Err(err).Msg("daily sales unavailable")
			d.Partial = true
		}
		if top, err := a.sales.TopProducts(ctx, from, to, 10); err == nil {
			d.TopProducts = top
		} else {
			a.logger.Error().Err(err).Msg("top products unavailable")
			d.Partial = true
		}
	}

	if inv, ok := a.fetchInventory(ctx); ok {
		d.Inventory = inv
	} else {
		d.Partial = true
	}

	if a.alerts != nil {
		if alerts, err := a.alerts.OpenAlerts(ctx, alertListLimit); err == nil {
			d.Alerts = alerts
		} else {
			a.logger.Error().Err(err).Msg("alert list unavailable")
			d.Partial = true
		}
	} else {
		d.Partial = true
	}

	d.LiveAlerts = a.liveAlerts()
	d.KPIs = buildKPIs(d.Sales, d.Inventory)

	a.logger.Info().
		Bool("partial", d.Partial).
		Int("alerts", len(d.Alerts)).
		Int("live_alerts", len(d.LiveAlerts)).
		Msg("dashboard generated")
	return d
}

func (a *Aggregator) fetchSales(ctx context.Context, from, to time.Time) (*SalesSummary, bool) {
	if a.sales == nil {
		return nil, false
	}
	summary, err := a.sales.PeriodSummary(ctx, from, to)
	if err != nil {
		a.logger.Error().Err(err).Msg("sales summary unavailable")
		return nil, false
	}
	return &summary, true
}

func (a *Aggregator) fetchInventory(ctx context.Context) (*InventorySummary, bool) {
	if a.inventory == nil {
		return nil, false
	}
	summary, err := a.inventory.Summary(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("inventory summary unavailable")
		return nil, false
	}
	return &summary, true
}

func buildKPIs(sales *SalesSummary, inventory *InventorySummary) *KPISet {
	if sales == nil && inventory == nil {
		return nil
	}
	k := &KPISet{}
	if sales != nil {
		k.SalesTotal = sales.Total
		k.SalesCount = sales.Count
		k.AvgTicket = sales.AvgTicket
	}
	if inventory != nil {
		k.LowStockProducts = inventory.LowStock
	}
	return k
}
