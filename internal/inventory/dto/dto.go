package dto

type LowStockFilters struct {
	Page     int `json:"page" validate:"gte=0"`
	PageSize int `json:"page_size" validate:"gte=0,lte=500"`
}

type MovementFilters struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	MovementType string `json:"movement_type" validate:"omitempty,oneof=adjustment allocation"`
	Page         int    `json:"page" validate:"gte=0"`
	PageSize     int    `json:"page_size" validate:"gte=0,lte=500"`
}
