package model

import "time"

// ProductClass is a node of the inheritance graph. Abstract classes only
// exist to be inherited from and cannot own products.
type ProductClass struct {
	BaseModel
	Title            string   `db:"title" json:"title"`
	Slug             string   `db:"slug" json:"slug"`
	RequiresShipping bool     `db:"requires_shipping" json:"requires_shipping"`
	TracksStock      bool     `db:"tracks_stock" json:"tracks_stock"`
	Abstract         bool     `db:"abstract" json:"abstract"`
	Metadata         Metadata `db:"metadata" json:"metadata"`
	Bases            []string `db:"-" json:"bases"` // direct bases, filled on demand
}

// ProductClassRelation is the edge base -> subclass.
type ProductClassRelation struct {
	ID         string    `db:"id" json:"id"`
	BaseID     string    `db:"base_id" json:"base_id"`
	SubclassID string    `db:"subclass_id" json:"subclass_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
