package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentSales, ParseIntent("sales"))
	assert.Equal(t, IntentSales, ParseIntent(" SALES "))
	assert.Equal(t, IntentInventory, ParseIntent("Inventory"))
	assert.Equal(t, IntentFinancial, ParseIntent("financial"))
	assert.Equal(t, IntentForecast, ParseIntent("forecast"))
	assert.Equal(t, IntentGeneral, ParseIntent(""))
	assert.Equal(t, IntentGeneral, ParseIntent("weather"))
}

func TestBuildContext_SalesIntentOnlySalesSections(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), IntentSales, 5)

	assert.Equal(t, IntentSales, rc.Intent)
	assert.False(t, rc.Partial)
	assert.NotNil(t, rc.Data.SalesSummary)
	assert.Len(t, rc.Data.SalesToday, 1)
	// Inventory sections stay out of a sales-scoped context.
	assert.Nil(t, rc.Data.Inventory)
	assert.Nil(t, rc.Data.CriticalProducts)
}

func TestBuildContext_InventoryIntent(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), IntentInventory, 5)

	require.NotNil(t, rc.Data.Inventory)
	assert.Equal(t, 40, rc.Data.Inventory.TotalProducts)
	assert.Len(t, rc.Data.CriticalProducts, 1)
	assert.Nil(t, rc.Data.SalesSummary)
}

func TestBuildContext_FinancialIntentUsesMonthWindow(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), IntentFinancial, 5)

	require.NotNil(t, rc.Data.MonthSales)
	assert.Equal(t, 1500.0, rc.Data.MonthSales.Total)
	assert.Nil(t, rc.Data.SalesToday)
}

func TestBuildContext_ForecastIntentReturnsTrend(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), IntentForecast, 5)

	assert.Len(t, rc.Data.DailyTrend, 2)
	assert.Nil(t, rc.Data.SalesSummary)
}

func TestBuildContext_LimitIsRespected(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	sales.recent = []SaleRecord{
		{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6},
	}
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), IntentSales, 2)
	assert.Len(t, rc.Data.SalesToday, 2)

	// A non-positive limit falls back to the default bound.
	rc = a.BuildContext(context.Background(), IntentSales, 0)
	assert.Len(t, rc.Data.SalesToday, defaultLimit)
}

func TestBuildContext_GeneralIntentMergesReducedSections(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	sales.recent = []SaleRecord{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	a := New(sales, inventory, alerts)

	rc := a.BuildContext(context.Background(), "UNKNOWN", 10)

	assert.Equal(t, IntentGeneral, rc.Intent)
	// General caps each section at three records regardless of limit.
	assert.Len(t, rc.Data.SalesToday, 3)
	assert.NotNil(t, rc.Data.SalesSummary)
	assert.NotNil(t, rc.Data.Inventory)
	assert.Len(t, rc.Data.CriticalProducts, 1)
}

func TestBuildContext_MissingProviderIsPartial(t *testing.T) {
	a := New(nil, &fakeInventory{summary: InventorySummary{TotalProducts: 5}}, nil)

	rc := a.BuildContext(context.Background(), IntentSales, 5)
	assert.True(t, rc.Partial)
	assert.Nil(t, rc.Data.SalesSummary)

	rc = a.BuildContext(context.Background(), IntentInventory, 5)
	assert.False(t, rc.Partial)
	require.NotNil(t, rc.Data.Inventory)
}

func TestBuildContext_SourceErrorIsPartial(t *testing.T) {
	sales := &fakeSales{err: errors.New("db down")}
	a := New(sales, nil, nil)

	rc := a.BuildContext(context.Background(), IntentFinancial, 5)
	assert.True(t, rc.Partial)
	assert.Nil(t, rc.Data.MonthSales)
}

func TestHealthCheck_AllSourcesHealthy(t *testing.T) {
	sales, inventory, alerts := fullProviders()
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	a := New(sales, inventory, alerts, WithNow(func() time.Time { return fixed }))

	h := a.HealthCheck(context.Background())

	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.Checks["sales"])
	assert.True(t, h.Checks["inventory"])
	assert.True(t, h.Checks["alerts"])
	assert.Equal(t, fixed, h.Timestamp)
}

func TestHealthCheck_FailingSourceDegrades(t *testing.T) {
	sales, _, alerts := fullProviders()
	a := New(sales, &fakeInventory{err: errors.New("db down")}, alerts)

	h := a.HealthCheck(context.Background())

	assert.Equal(t, "degraded", h.Status)
	assert.True(t, h.Checks["sales"])
	assert.False(t, h.Checks["inventory"])
}

func TestHealthCheck_NilSourceIsUnhealthy(t *testing.T) {
	a := New(nil, nil, nil)

	h := a.HealthCheck(context.Background())
	assert.Equal(t, "degraded", h.Status)
}
