package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupoatlas/erpbus/pkg/eventbus"
)

// fakeSales serves canned data and records the limits it was asked for.
type fakeSales struct {
	summary    SalesSummary
	daily      []DailySales
	top        []ProductSales
	recent     []SaleRecord
	err        error
	lastLimits []int
}

func (f *fakeSales) PeriodSummary(context.Context, time.Time, time.Time) (SalesSummary, error) {
	return f.summary, f.err
}

func (f *fakeSales) DailyTotals(_ context.Context, _, _ time.Time, limit int) ([]DailySales, error) {
	f.lastLimits = append(f.lastLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return capDaily(f.daily, limit), nil
}

func (f *fakeSales) TopProducts(_ context.Context, _, _ time.Time, limit int) ([]ProductSales, error) {
	f.lastLimits = append(f.lastLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.top) {
		return f.top[:limit], nil
	}
	return f.top, nil
}

func (f *fakeSales) RecentSales(_ context.Context, _ time.Time, limit int) ([]SaleRecord, error) {
	f.lastLimits = append(f.lastLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func capDaily(d []DailySales, limit int) []DailySales {
	if limit < len(d) {
		return d[:limit]
	}
	return d
}

type fakeInventory struct {
	summary  InventorySummary
	critical []CriticalProduct
	err      error
}

func (f *fakeInventory) Summary(context.Context) (InventorySummary, error) {
	return f.summary, f.err
}

func (f *fakeInventory) CriticalProducts(_ context.Context, limit int) ([]CriticalProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.critical) {
		return f.critical[:limit], nil
	}
	return f.critical, nil
}

type fakeAlerts struct {
	alerts []AlertRecord
	err    error
}

func (f *fakeAlerts) OpenAlerts(_ context.Context, limit int) ([]AlertRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.alerts) {
		return f.alerts[:limit], nil
	}
	return f.alerts, nil
}

func fullProviders() (*fakeSales, *fakeInventory, *fakeAlerts) {
	sales := &fakeSales{
		summary: SalesSummary{Total: 1500, Count: 10, AvgTicket: 150},
		daily: []DailySales{
			{Date: "2026-03-01", Total: 500, Count: 3},
			{Date: "2026-03-02", Total: 1000, Count: 7},
		},
		top: []ProductSales{
			{ProductID: 1, Code: "A-1", Name: "Widget", Quantity: 12, Revenue: 600},
		},
		recent: []SaleRecord{
			{ID: 9, Customer: "acme", Total: 100, SoldAt: time.Now()},
		},
	}
	inventory := &fakeInventory{
		summary: InventorySummary{TotalProducts: 40, LowStock: 4, OutOfStock: 1, CriticalPct: 10},
		critical: []CriticalProduct{
			{ID: 3, Name: "Bolt", Stock: 1, MinStock: 5, Deficit: 4},
		},
	}
	alerts := &fakeAlerts{
		alerts: []AlertRecord{
			{ID: 1, Kind: "STOCK_LOW", Title: "Bolt low", CreatedAt: time.Now()},
		},
	}
	return sales, inventory, alerts
}

func TestBuildDashboard_AllSections(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)

	d := a.BuildDashboard(context.Background(), time.Time{}, time.Time{})

	assert.False(t, d.Partial)
	require.NotNil(t, d.Sales)
	assert.Equal(t, 1500.0, d.Sales.Total)
	assert.Len(t, d.DailySales, 2)
	assert.Len(t, d.TopProducts, 1)
	require.NotNil(t, d.Inventory)
	assert.Equal(t, 4, d.Inventory.LowStock)
	assert.Len(t, d.Alerts, 1)

	require.NotNil(t, d.KPIs)
	assert.Equal(t, 1500.0, d.KPIs.SalesTotal)
	assert.Equal(t, 10, d.KPIs.SalesCount)
	assert.Equal(t, 4, d.KPIs.LowStockProducts)
}

func TestBuildDashboard_DefaultsToLast30Days(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts, WithNow(func() time.Time { return fixed }))

	d := a.BuildDashboard(context.Background(), time.Time{}, time.Time{})

	assert.Equal(t, fixed, d.Period.To)
	assert.Equal(t, fixed.Add(-30*24*time.Hour), d.Period.From)
	assert.Equal(t, fixed, d.Period.GeneratedAt)
}

func TestBuildDashboard_FailingSourceIsPartial(t *testing.T) {
	sales, _, alerts := fullProviders()
	inventory := &fakeInventory{err: errors.New("db down")}
	a := New(sales, inventory, alerts)

	d := a.BuildDashboard(context.Background(), time.Time{}, time.Time{})

	// The broken source is flagged, the rest still comes through.
	assert.True(t, d.Partial)
	assert.Nil(t, d.Inventory)
	require.NotNil(t, d.Sales)
	assert.Equal(t, 1500.0, d.Sales.Total)
	assert.Len(t, d.Alerts, 1)

	require.NotNil(t, d.KPIs)
	assert.Equal(t, 0, d.KPIs.LowStockProducts)
}

func TestBuildDashboard_NilProvidersAreOmitted(t *testing.T) {
	a := New(nil, nil, nil)

	d := a.BuildDashboard(context.Background(), time.Time{}, time.Time{})

	assert.True(t, d.Partial)
	assert.Nil(t, d.Sales)
	assert.Nil(t, d.Inventory)
	assert.Nil(t, d.Alerts)
	assert.Nil(t, d.KPIs)
}

func TestAttachBus_CollectsLiveAlerts(t *testing.T) {
	cfg := eventbus.Defaults()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 50 * time.Millisecond
	cfg.MaxConnectAttempts = 1
	cfg.BackoffBase = time.Millisecond

	bus := eventbus.New(cfg)
	defer bus.Close(context.Background())

	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)
	a.AttachBus(bus)
	defer a.Detach()

	require.True(t, bus.Publish(context.Background(), eventbus.EventStockLowDetected, eventbus.Payload{
		"product_id": 42,
		"stock":      2,
	}))
	require.True(t, bus.Publish(context.Background(), eventbus.EventAnomalyDetected, eventbus.Payload{
		"metric": "sales_drop",
	}))
	// Non-alert events are not collected.
	require.True(t, bus.Publish(context.Background(), eventbus.EventSaleRegistered, eventbus.Payload{"sale_id": 1}))

	d := a.BuildDashboard(context.Background(), time.Time{}, time.Time{})
	require.Len(t, d.LiveAlerts, 2)
	assert.Equal(t, eventbus.EventStockLowDetected, d.LiveAlerts[0].EventType)
	assert.Equal(t, 42, d.LiveAlerts[0].Data["product_id"])
	assert.Equal(t, eventbus.EventAnomalyDetected, d.LiveAlerts[1].EventType)
}

func TestDetach_StopsCollecting(t *testing.T) {
	cfg := eventbus.Defaults()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 50 * time.Millisecond
	cfg.MaxConnectAttempts = 1
	cfg.BackoffBase = time.Millisecond

	bus := eventbus.New(cfg)
	defer bus.Close(context.Background())

	a := New(nil, nil, nil)
	a.AttachBus(bus)
	a.Detach()

	require.True(t, bus.Publish(context.Background(), eventbus.EventStockLowDetected, nil))
	assert.Empty(t, a.liveAlerts())
}

func TestLiveAlerts_BoundedRingBuffer(t *testing.T) {
	a := New(nil, nil, nil)

	for i := 0; i < maxLiveAlerts+5; i++ {
		env := eventbus.Envelope{Type: eventbus.EventStockLowDetected, EventID: "id", Data: eventbus.Payload{"n": i}}
		require.NoError(t, a.onAlertEvent(context.Background(), env))
	}

	live := a.liveAlerts()
	require.Len(t, live, maxLiveAlerts)
	// Oldest entries were evicted.
	assert.Equal(t, 5, live[0].Data["n"])
}
