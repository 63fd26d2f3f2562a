package dto

type ClassFilters struct {
	Abstract *bool  `json:"abstract"`
	Search   string `json:"search" validate:"max=128"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=500"`
}

// AttributeFilters narrow the resolved attribute set of a class.
type AttributeFilters struct {
	Required  *bool  `json:"required"`
	ValueType string `json:"value_type"`
}
