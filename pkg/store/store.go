package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/grupoatlas/erpbus/pkg/aggregator"
)

// Store provides the aggregator's read-only providers over Postgres.
type Store struct {
	db *gorm.DB
}

var (
	_ aggregator.SalesStats     = (*Store)(nil)
	_ aggregator.InventoryStats = (*Store)(nil)
	_ aggregator.AlertSource    = (*Store)(nil)
)

// Open connects to Postgres and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing gorm handle (tests, shared pools).
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the read-model tables. Intended for development and
// test databases; production schemas are owned by the writing modules.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Product{}, &Sale{}, &SaleItem{}, &Alert{})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PeriodSummary aggregates sales totals over [from, to].
func (s *Store) PeriodSummary(ctx context.Context, from, to time.Time) (aggregator.SalesSummary, error) {
	var row struct {
		Total float64
		Count int64
		Avg   float64
	}
	err := s.db.WithContext(ctx).
		Model(&Sale{}).
		Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS count, COALESCE(AVG(total), 0) AS avg").
		Where("sold_at BETWEEN ? AND ?", from, to).
		Where("status NOT IN ?", excludedSaleStates).
		Scan(&row).Error
	if err != nil {
		return aggregator.SalesSummary{}, fmt.Errorf("store: period summary: %w", err)
	}
	return aggregator.SalesSummary{
		Total:     row.Total,
		Count:     int(row.Count),
		AvgTicket: row.Avg,
	}, nil
}

// DailyTotals returns per-day sales totals within [from, to], oldest first.
func (s *Store) DailyTotals(ctx context.Context, from, to time.Time, limit int) ([]aggregator.DailySales, error) {
	var rows []struct {
		Day   time.Time
		Total float64
		Count int64
	}
	err := s.db.WithContext(ctx).
		Model(&Sale{}).
		Select("DATE(sold_at) AS day, COALESCE(SUM(total), 0) AS total, COUNT(*) AS count").
		Where("sold_at BETWEEN ? AND ?", from, to).
		Where("status NOT IN ?", excludedSaleStates).
		Group("DATE(sold_at)").
		Order("day").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: daily totals: %w", err)
	}

	out := make([]aggregator.DailySales, 0, len(rows))
	for _, r := range rows {
		out = append(out, aggregator.DailySales{
			Date:  r.Day.Format("2006-01-02"),
			Total: r.Total,
			Count: int(r.Count),
		})
	}
	return out, nil
}

// TopProducts ranks products by units sold within [from, to].
func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]aggregator.ProductSales, error) {
	var rows []struct {
		ProductID uint
		Code      string
		Name      string
		Quantity  int64
		Revenue   float64
	}
	err := s.db.WithContext(ctx).
		Table("sale_items").
		Select("products.id AS product_id, products.code AS code, products.name AS name, "+
			"SUM(sale_items.quantity) AS quantity, "+
			"SUM(sale_items.quantity * sale_items.unit_price) AS revenue").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Where("sales.sold_at BETWEEN ? AND ?", from, to).
		Where("sales.status NOT IN ?", excludedSaleStates).
		Group("products.id, products.code, products.name").
		Order("quantity DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: top products: %w", err)
	}

	out := make([]aggregator.ProductSales, 0, len(rows))
	for _, r := range rows {
		out = append(out, aggregator.ProductSales{
			ProductID: r.ProductID,
			Code:      r.Code,
			Name:      r.Name,
			Quantity:  int(r.Quantity),
			Revenue:   r.Revenue,
		})
	}
	return out, nil
}

// RecentSales lists the newest sales since a point in time.
func (s *Store) RecentSales(ctx context.Context, since time.Time, limit int) ([]aggregator.SaleRecord, error) {
	var sales []Sale
	err := s.db.WithContext(ctx).
		Where("sold_at >= ?", since).
		Where("status NOT IN ?", excludedSaleStates).
		Order("sold_at DESC").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent sales: %w", err)
	}

	out := make([]aggregator.SaleRecord, 0, len(sales))
	for _, sale := range sales {
		customer := sale.Customer
		if customer == "" {
			customer = "anonymous"
		}
		out = append(out, aggregator.SaleRecord{
			ID:       sale.ID,
			Customer: customer,
			Total:    sale.Total,
			SoldAt:   sale.SoldAt,
		})
	}
	return out, nil
}

// Summary aggregates inventory stock state.
func (s *Store) Summary(ctx context.Context) (aggregator.InventorySummary, error) {
	var total, low, zero int64

	db := s.db.WithContext(ctx)
	if err := db.Model(&Product{}).Count(&total).Error; err != nil {
		return aggregator.InventorySummary{}, fmt.Errorf("store: inventory summary: %w", err)
	}
	if err := db.Model(&Product{}).Where("stock <= min_stock").Count(&low).Error; err != nil {
		return aggregator.InventorySummary{}, fmt.Errorf("store: inventory summary: %w", err)
	}
	if err := db.Model(&Product{}).Where("stock = 0").Count(&zero).Error; err != nil {
		return aggregator.InventorySummary{}, fmt.Errorf("store: inventory summary: %w", err)
	}

	return aggregator.InventorySummary{
		TotalProducts: int(total),
		LowStock:      int(low),
		OutOfStock:    int(zero),
		CriticalPct:   criticalPct(int(low), int(total)),
	}, nil
}

// CriticalProducts lists products at or below minimum stock, lowest first.
func (s *Store) CriticalProducts(ctx context.Context, limit int) ([]aggregator.CriticalProduct, error) {
	var products []Product
	err := s.db.WithContext(ctx).
		Where("stock <= min_stock").
		Order("stock").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("store: critical products: %w", err)
	}

	out := make([]aggregator.CriticalProduct, 0, len(products))
	for _, p := range products {
		out = append(out, aggregator.CriticalProduct{
			ID:       p.ID,
			Name:     p.Name,
			Stock:    p.Stock,
			MinStock: p.MinStock,
			Deficit:  p.MinStock - p.Stock,
		})
	}
	return out, nil
}

// OpenAlerts lists unresolved alerts, newest first.
func (s *Store) OpenAlerts(ctx context.Context, limit int) ([]aggregator.AlertRecord, error) {
	var alerts []Alert
	err := s.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("store: open alerts: %w", err)
	}

	out := make([]aggregator.AlertRecord, 0, len(alerts))
	for _, a := range alerts {
		title := a.Title
		if title == "" {
			title = a.Kind
		}
		out = append(out, aggregator.AlertRecord{
			ID:        a.ID,
			Kind:      a.Kind,
			Title:     title,
			Message:   a.Message,
			ProductID: a.ProductID,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

// criticalPct is the share of products at or below minimum stock, rounded
// to one decimal.
func criticalPct(low, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(low) / float64(total) * 100
	return float64(int(pct*10+0.5)) / 10
}
