package model

import "github.com/zariny/ecommerce/internal/dynvalue"

// ProductAttribute is a typed field definable on one or more product classes.
type ProductAttribute struct {
	BaseModel
	Name            string        `db:"name" json:"name"`
	Slug            string        `db:"slug" json:"slug"`
	ValueType       dynvalue.Type `db:"value_type" json:"value_type"`
	Required        bool          `db:"required" json:"required"`
	ProductClassIDs []string      `db:"-" json:"product_class_ids"`
}

// Clean coerces input to the attribute's declared value type.
func (a *ProductAttribute) Clean(input any) (dynvalue.Value, error) {
	return dynvalue.Clean(a.ValueType, input)
}

// ProductAttributeValue is one stored fact for a (product, attribute) pair.
// Slug and ValueType are read from the owning attribute in the same query.
type ProductAttributeValue struct {
	ID          string         `db:"id" json:"id"`
	ProductID   string         `db:"product_id" json:"product_id"`
	AttributeID string         `db:"attribute_id" json:"attribute_id"`
	Value       dynvalue.Value `db:"value" json:"value"`
	Slug        string         `db:"slug" json:"slug"`
	ValueType   dynvalue.Type  `db:"value_type" json:"value_type"`
}
