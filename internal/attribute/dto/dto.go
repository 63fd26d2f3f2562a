package dto

type AttributeFilters struct {
	ProductClassID string `json:"product_class_id" validate:"omitempty,uuid"`
	ValueType      string `json:"value_type"`
	Search         string `json:"search" validate:"max=128"`
	Page           int    `json:"page" validate:"gte=0"`
	PageSize       int    `json:"page_size" validate:"gte=0,lte=500"`
}
