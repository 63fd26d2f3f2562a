package dto

type ProductIDInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// AdjustStockInput changes the physical stock level. Optional fields
// overwrite the record when set.
type AdjustStockInput struct {
	ProductID         string   `json:"product_id" validate:"required,uuid"`
	QuantityChange    int      `json:"quantity_change"`
	SKU               *string  `json:"sku" validate:"omitempty,max=128"`
	LowStockThreshold *int     `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	Price             *float64 `json:"price" validate:"omitempty,gte=0"`
	PriceCurrency     string   `json:"price_currency" validate:"omitempty,len=3"`
	Reason            string   `json:"reason" validate:"max=512"`
	ReferenceType     string   `json:"reference_type" validate:"max=64"`
	ReferenceID       string   `json:"reference_id" validate:"max=128"`
}

type AllocateStockInput struct {
	ProductID     string `json:"product_id" validate:"required,uuid"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	ReferenceType string `json:"reference_type" validate:"max=64"`
	ReferenceID   string `json:"reference_id" validate:"max=128"`
}
