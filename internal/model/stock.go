package model

import (
	"errors"
	"time"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockBusy         = errors.New("stock record is locked by another operation")
)

type StockRecord struct {
	ID                string    `db:"id" json:"id"`
	ProductID         string    `db:"product_id" json:"product_id"`
	SKU               *string   `db:"sku" json:"sku"`
	NumInStock        int       `db:"num_in_stock" json:"num_in_stock"`
	NumAllocated      int       `db:"num_allocated" json:"num_allocated"`
	LowStockThreshold *int      `db:"low_stock_threshold" json:"low_stock_threshold"`
	Price             *float64  `db:"price" json:"price"`
	PriceCurrency     string    `db:"price_currency" json:"price_currency"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// NetStockLevel is the stock that can still be allocated.
func (s *StockRecord) NetStockLevel() int {
	return s.NumInStock - s.NumAllocated
}

func (s *StockRecord) IsLow() bool {
	return s.LowStockThreshold != nil && s.NetStockLevel() <= *s.LowStockThreshold
}

// CanAllocate reports whether qty units can be allocated.
func (s *StockRecord) CanAllocate(qty int) bool {
	return qty > 0 && qty <= s.NetStockLevel()
}

const (
	MovementAdjustment = "adjustment"
	MovementAllocation = "allocation"
)

type StockMovement struct {
	ID             string    `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	QuantityChange int       `db:"quantity_change" json:"quantity_change"`
	QuantityBefore int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int       `db:"quantity_after" json:"quantity_after"`
	ReferenceType  *string   `db:"reference_type" json:"reference_type"`
	ReferenceID    *string   `db:"reference_id" json:"reference_id"`
	Notes          string    `db:"notes" json:"notes"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
