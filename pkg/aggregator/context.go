package aggregator

import (
	"context"
	"strings"
	"time"
)

// Intent is the coarse classification of what a consumer needs. It bounds
// which sections BuildContext fetches.
type Intent string

const (
	IntentSales     Intent = "SALES"
	IntentInventory Intent = "INVENTORY"
	IntentFinancial Intent = "FINANCIAL"
	IntentForecast  Intent = "FORECAST"
	IntentGeneral   Intent = "GENERAL"
)

// ParseIntent maps a free-form tag to an Intent, defaulting to general.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentSales:
		return IntentSales
	case IntentInventory:
		return IntentInventory
	case IntentFinancial:
		return IntentFinancial
	case IntentForecast:
		return IntentForecast
	}
	return IntentGeneral
}

// ContextData holds the intent-scoped sections. Only the sections relevant
// to the requested intent are populated.
type ContextData struct {
	SalesToday       []SaleRecord      `json:"sales_today,omitempty"`
	SalesSummary     *SalesSummary     `json:"sales_summary,omitempty"`
	CriticalProducts []CriticalProduct `json:"critical_products,omitempty"`
	Inventory        *InventorySummary `json:"inventory,omitempty"`
	MonthSales       *SalesSummary     `json:"month_sales,omitempty"`
	DailyTrend       []DailySales      `json:"daily_trend,omitempty"`
}

// RetrievalContext is the bounded payload handed to AI/reporting consumers.
type RetrievalContext struct {
	Intent    Intent      `json:"intent"`
	Timestamp time.Time   `json:"timestamp"`
	Partial   bool        `json:"partial,omitempty"`
	Data      ContextData `json:"data"`
}

// BuildContext fetches only the data relevant to the intent, each section
// bounded by limit records. Selective retrieval is the design point: the
// payload stays small and bounded no matter how much data exists.
func (a *Aggregator) BuildContext(ctx context.Context, intent Intent, limit int) RetrievalContext {
	if limit < 1 {
		limit = defaultLimit
	}

	rc := RetrievalContext{
		Intent:    intent,
		Timestamp: a.now().UTC(),
	}

	switch intent {
	case IntentSales:
		rc.Data, rc.Partial = a.salesContext(ctx, limit)
	case IntentInventory:
		rc.Data, rc.Partial = a.inventoryContext(ctx, limit)
	case IntentFinancial:
		rc.Data, rc.Partial = a.financialContext(ctx)
	case IntentForecast:
		rc.Data, rc.Partial = a.forecastContext(ctx, limit)
	default:
		rc.Intent = IntentGeneral
		// General context: a reduced slice of sales and inventory.
		reduced := limit
		if reduced > 3 {
			reduced = 3
		}
		sales, p1 := a.salesContext(ctx, reduced)
		inv, p2 := a.inventoryContext(ctx, reduced)
		rc.Data = ContextData{
			SalesToday:       sales.SalesToday,
			SalesSummary:     sales.SalesSummary,
			CriticalProducts: inv.CriticalProducts,
			Inventory:        inv.Inventory,
		}
		rc.Partial = p1 || p2
	}

	a.logger.Debug().Str("intent", string(rc.Intent)).Bool("partial", rc.Partial).Msg("retrieval context generated")
	return rc
}

func (a *Aggregator) salesContext(ctx context.Context, limit int) (ContextData, bool) {
	if a.sales == nil {
		return ContextData{}, true
	}

	var data ContextData
	partial := false
	now := a.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if recent, err := a.sales.RecentSales(ctx, dayStart, limit); err == nil {
		data.SalesToday = recent
	} else {
		a.logger.Error().Err(err).Msg("recent sales unavailable")
		partial = true
	}
	if summary, err := a.sales.PeriodSummary(ctx, dayStart, now); err == nil {
		data.SalesSummary = &summary
	} else {
		a.logger.Error().Err(err).Msg("day summary unavailable")
		partial = true
	}
	return data, partial
}

func (a *Aggregator) inventoryContext(ctx context.Context, limit int) (ContextData, bool) {
	if a.inventory == nil {
		return ContextData{}, true
	}

	var data ContextData
	partial := false

	if critical, err := a.inventory.CriticalProducts(ctx, limit); err == nil {
		data.CriticalProducts = critical
	} else {
		a.logger.Error().Err(err).Msg("critical products unavailable")
		partial = true
	}
	if summary, err := a.inventory.Summary(ctx); err == nil {
		data.Inventory = &summary
	} else {
		a.logger.Error().Err(err).Msg("inventory summary unavailable")
		partial = true
	}
	return data, partial
}

func (a *Aggregator) financialContext(ctx context.Context) (ContextData, bool) {
	if a.sales == nil {
		return ContextData{}, true
	}

	now := a.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	summary, err := a.sales.PeriodSummary(ctx, monthStart, now)
	if err != nil {
		a.logger.Error().Err(err).Msg("month summary unavailable")
		return ContextData{}, true
	}
	return ContextData{MonthSales: &summary}, false
}

func (a *Aggregator) forecastContext(ctx context.Context, limit int) (ContextData, bool) {
	if a.sales == nil {
		return ContextData{}, true
	}

	now := a.now().UTC()
	from := now.Add(-defaultWindow)

	trend, err := a.sales.DailyTotals(ctx, from, now, limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("daily trend unavailable")
		return ContextData{}, true
	}
	return ContextData{DailyTrend: trend}, false
}
