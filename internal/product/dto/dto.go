package dto

import "github.com/zariny/ecommerce/internal/model"

type ProductFilters struct {
	ProductClassID    string         `json:"product_class_id" validate:"omitempty,uuid"`
	IncludeSubclasses bool           `json:"include_subclasses"`
	IsPublic          *bool          `json:"is_public"`
	SearchQuery       string         `json:"search" validate:"max=256"`
	Attributes        map[string]any `json:"attributes"`
	SortBy            string         `json:"sort_by" validate:"omitempty,oneof=title created_at updated_at"`
	SortOrder         string         `json:"sort_order" validate:"omitempty,oneof=asc desc"`
	Page              int            `json:"page" validate:"gte=0"`
	PageSize          int            `json:"page_size" validate:"gte=0,lte=500"`

	// ProductClassIDs is resolved from ProductClassID by the use case.
	ProductClassIDs []string `json:"product_class_ids,omitempty" validate:"-"`
}

// ProductDetail is a product together with its attribute values keyed by
// slug.
type ProductDetail struct {
	*model.Product
	Attributes map[string]any `json:"attributes"`
}
