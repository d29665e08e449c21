package aggregator

import (
	"context"
	"time"
)

// SalesSummary aggregates sales over a window.
type SalesSummary struct {
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	AvgTicket float64 `json:"avg_ticket"`
}

// DailySales is one day's sales total.
type DailySales struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// ProductSales ranks a product by units sold in a window.
type ProductSales struct {
	ProductID uint    `json:"product_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// SaleRecord is a single recent sale.
type SaleRecord struct {
	ID       uint      `json:"id"`
	Customer string    `json:"customer"`
	Total    float64   `json:"total"`
	SoldAt   time.Time `json:"sold_at"`
}

// InventorySummary aggregates stock state.
type InventorySummary struct {
	TotalProducts int     `json:"total_products"`
	LowStock      int     `json:"low_stock"`
	OutOfStock    int     `json:"out_of_stock"`
	CriticalPct   float64 `json:"critical_pct"`
}

// CriticalProduct is a product at or below its minimum stock.
type CriticalProduct struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Stock    int    `json:"stock"`
	MinStock int    `json:"min_stock"`
	Deficit  int    `json:"deficit"`
}

// AlertRecord is an unresolved system alert.
type AlertRecord struct {
	ID        uint      `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ProductID *uint     `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SalesStats is the read-only boundary to the sales module.
type SalesStats interface {
	PeriodSummary(ctx context.Context, from, to time.Time) (SalesSummary, error)
	DailyTotals(ctx context.Context, from, to time.Time, limit int) ([]DailySales, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	RecentSales(ctx context.Context, since time.Time, limit int) ([]SaleRecord, error)
}

// InventoryStats is the read-only boundary to the inventory module.
type InventoryStats interface {
	Summary(ctx context.Context) (InventorySummary, error)
	CriticalProducts(ctx context.Context, limit int) ([]CriticalProduct, error)
}

// AlertSource is the read-only boundary to the alerting module.
type AlertSource interface {
	OpenAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}
