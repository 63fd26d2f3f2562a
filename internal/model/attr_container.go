package model

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zariny/ecommerce/internal/dynvalue"
)

var (
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrProductNotSaved   = errors.New("product must be saved before its attributes")
)

type pendingWrite struct {
	attribute ProductAttribute
	value     dynvalue.Value
	unset     bool
}

// AttributeContainer is the per-product view over attribute values. Reads
// go through an AttributeCache; writes are buffered until Save. Buffered
// writes are not visible to reads before they are saved.
type AttributeContainer struct {
	product *Product
	store   AttributeStore
	cache   *AttributeCache
	dirty   []pendingWrite
}

func newAttributeContainer(p *Product, store AttributeStore) *AttributeContainer {
	return &AttributeContainer{
		product: p,
		store:   store,
		cache:   newAttributeCache(p.ID, store),
	}
}

// Get looks a value up by attribute slug.
func (c *AttributeContainer) Get(ctx context.Context, slug string) (dynvalue.Value, bool, error) {
	row, ok, err := c.view().Get(ctx, slug)
	if err != nil || !ok {
		return dynvalue.Value{}, false, err
	}
	return row.Value, true, nil
}

// MustGet is Get that treats a missing slug as ErrAttributeNotFound.
func (c *AttributeContainer) MustGet(ctx context.Context, slug string) (dynvalue.Value, error) {
	v, ok, err := c.Get(ctx, slug)
	if err != nil {
		return dynvalue.Value{}, err
	}
	if !ok {
		return dynvalue.Value{}, &FieldError{Field: slug, Err: ErrAttributeNotFound}
	}
	return v, nil
}

// Value returns the native value for slug, or def when it is not set.
func (c *AttributeContainer) Value(ctx context.Context, slug string, def any) (any, error) {
	v, ok, err := c.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return v.Native(), nil
}

// All returns every stored value of the product.
func (c *AttributeContainer) All(ctx context.Context) ([]ProductAttributeValue, error) {
	return c.view().All(ctx)
}

// Set cleans input against the attribute type and buffers the write.
func (c *AttributeContainer) Set(attr ProductAttribute, input any) error {
	v, err := attr.Clean(input)
	if err != nil {
		return &FieldError{Field: attr.Slug, Err: err}
	}
	c.dirty = append(c.dirty, pendingWrite{attribute: attr, value: v})
	return nil
}

// Unset buffers removal of the attribute's value.
func (c *AttributeContainer) Unset(attr ProductAttribute) {
	c.dirty = append(c.dirty, pendingWrite{attribute: attr, unset: true})
}

func (c *AttributeContainer) Dirty() bool {
	return len(c.dirty) > 0
}

// Save flushes buffered writes in one store call. Stored values the buffer
// does not mention are left untouched. On failure the buffer is kept so the
// caller may retry.
func (c *AttributeContainer) Save(ctx context.Context) error {
	if len(c.dirty) == 0 {
		return nil
	}
	if c.product.ID == "" {
		return ErrProductNotSaved
	}

	stored, err := c.view().All(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]string, len(stored))
	for _, row := range stored {
		known[row.AttributeID] = row.ID
	}

	changes := &AttributeChanges{}
	for _, w := range collapse(c.dirty) {
		id, exists := known[w.attribute.ID]
		switch {
		case w.unset:
			if exists {
				changes.Delete = append(changes.Delete, id)
			}
		case exists:
			changes.Update = append(changes.Update, c.row(id, w))
		default:
			changes.Create = append(changes.Create, c.row(uuid.New().String(), w))
		}
	}

	if !changes.Empty() {
		if err := c.store.SaveAttributeValues(ctx, c.product.ID, changes); err != nil {
			return err
		}
	}
	c.dirty = nil
	c.resetCache()
	return nil
}

// Invalidate discards cached values and buffered writes.
func (c *AttributeContainer) Invalidate() {
	c.dirty = nil
	c.resetCache()
}

// view returns the cache, rebuilding it if the product id changed since it
// was created, as happens when a new product is inserted.
func (c *AttributeContainer) view() *AttributeCache {
	if c.cache.productID != c.product.ID {
		c.resetCache()
	}
	return c.cache
}

func (c *AttributeContainer) resetCache() {
	c.cache.Close()
	c.cache = newAttributeCache(c.product.ID, c.store)
}

func (c *AttributeContainer) row(id string, w pendingWrite) ProductAttributeValue {
	return ProductAttributeValue{
		ID:          id,
		ProductID:   c.product.ID,
		AttributeID: w.attribute.ID,
		Value:       w.value,
		Slug:        w.attribute.Slug,
		ValueType:   w.attribute.ValueType,
	}
}

// collapse keeps the last write per attribute, ordered by first appearance.
func collapse(writes []pendingWrite) []pendingWrite {
	index := make(map[string]int, len(writes))
	out := make([]pendingWrite, 0, len(writes))
	for _, w := range writes {
		if i, ok := index[w.attribute.ID]; ok {
			out[i] = w
			continue
		}
		index[w.attribute.ID] = len(out)
		out = append(out, w)
	}
	return out
}
