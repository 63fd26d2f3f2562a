package dto

type CreateClassInput struct {
	Title            string         `json:"title" validate:"required,max=128"`
	Slug             string         `json:"slug" validate:"required,max=128"`
	RequiresShipping *bool          `json:"requires_shipping"`
	TracksStock      *bool          `json:"tracks_stock"`
	Abstract         bool           `json:"abstract"`
	Metadata         map[string]any `json:"metadata"`
	Bases            []string       `json:"bases" validate:"unique,dive,uuid"`
}

// UpdateClassInput replaces every field, including the base set.
type UpdateClassInput struct {
	ID               string         `json:"id" validate:"required,uuid"`
	Title            string         `json:"title" validate:"required,max=128"`
	Slug             string         `json:"slug" validate:"required,max=128"`
	RequiresShipping bool           `json:"requires_shipping"`
	TracksStock      bool           `json:"tracks_stock"`
	Abstract         bool           `json:"abstract"`
	Metadata         map[string]any `json:"metadata"`
	Bases            []string       `json:"bases" validate:"unique,dive,uuid"`
}

type RelationInput struct {
	BaseID     string `json:"base_id" validate:"required,uuid"`
	SubclassID string `json:"subclass_id" validate:"required,uuid"`
}

type ClassIDInput struct {
	ID string `json:"id" validate:"required,uuid"`
}

type LineageInput struct {
	ID          string `json:"id" validate:"required,uuid"`
	IncludeSelf bool   `json:"include_self"`
}

type GetAttributesInput struct {
	ID      string           `json:"id" validate:"required,uuid"`
	Filters AttributeFilters `json:"filters"`
}
