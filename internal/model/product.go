package model

type Product struct {
	BaseModel
	ProductClassID string  `db:"product_class_id" json:"product_class_id"`
	Title          string  `db:"title" json:"title"`
	Slug           string  `db:"slug" json:"slug"`
	Description    *string `db:"description" json:"description"`
	IsPublic       bool    `db:"is_public" json:"is_public"`

	attr *AttributeContainer
}

// Attr returns the product's attribute container, creating it on first use.
func (p *Product) Attr(store AttributeStore) *AttributeContainer {
	if p.attr == nil {
		p.attr = newAttributeContainer(p, store)
	}
	return p.attr
}

// InvalidateAttributes drops cached attribute values and pending writes.
// Call it whenever the product is reloaded from the store.
func (p *Product) InvalidateAttributes() {
	if p.attr != nil {
		p.attr.Invalidate()
	}
}
