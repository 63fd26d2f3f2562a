package dto

type CreateProductInput struct {
	ProductClassID string         `json:"product_class_id" validate:"required,uuid"`
	Title          string         `json:"title" validate:"required,max=255"`
	Slug           string         `json:"slug" validate:"required,max=255"`
	Description    string         `json:"description"`
	IsPublic       *bool          `json:"is_public"`
	Attributes     map[string]any `json:"attributes"`
}

type UpdateProductInput struct {
	ID          string `json:"id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"required,max=255"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// SetAttributesInput writes the given values; a null value removes the
// attribute from the product. Attributes not mentioned are kept.
type SetAttributesInput struct {
	ID         string         `json:"id" validate:"required,uuid"`
	Attributes map[string]any `json:"attributes" validate:"required,min=1"`
}

type ProductIDInput struct {
	ID string `json:"id" validate:"required,uuid"`
}
