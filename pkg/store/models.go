package store

import "time"

// Sale states excluded from every aggregate: voided and cancelled sales
// never count toward totals.
var excludedSaleStates = []string{"VOIDED", "CANCELLED"}

// Product is the inventory item row.
type Product struct {
	ID       uint   `gorm:"primaryKey"`
	Code     string `gorm:"size:64;uniqueIndex"`
	Name     string `gorm:"size:255"`
	Stock    int
	MinStock int
	Price    float64
}

// Sale is a sale header row.
type Sale struct {
	ID       uint   `gorm:"primaryKey"`
	Customer string `gorm:"size:255"`
	Total    float64
	Status   string    `gorm:"size:32;index"`
	SoldAt   time.Time `gorm:"index"`
	Items    []SaleItem
}

// SaleItem is a sale line row.
type SaleItem struct {
	ID        uint `gorm:"primaryKey"`
	SaleID    uint `gorm:"index"`
	ProductID uint `gorm:"index"`
	Quantity  int
	UnitPrice float64
}

// Alert is an automatic system alert row.
type Alert struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"size:64"`
	Title     string `gorm:"size:255"`
	Message   string
	ProductID *uint
	Resolved  bool      `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
}
