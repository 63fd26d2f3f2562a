package model

import "context"

// AttributeValueIterator yields a product's stored attribute values one at
// a time. Next reports false once the rows are exhausted.
type AttributeValueIterator interface {
	Next(ctx context.Context) (ProductAttributeValue, bool, error)
	Close() error
}

// AttributeChanges is the write set produced by AttributeContainer.Save.
type AttributeChanges struct {
	Update []ProductAttributeValue
	Create []ProductAttributeValue
	Delete []string // value ids
}

func (c *AttributeChanges) Empty() bool {
	return len(c.Update) == 0 && len(c.Create) == 0 && len(c.Delete) == 0
}

// AttributeStore persists attribute values for products.
type AttributeStore interface {
	AttributeValues(productID string) AttributeValueIterator
	SaveAttributeValues(ctx context.Context, productID string, changes *AttributeChanges) error
}

// AttributeCache memoizes attribute values keyed by slug. Rows are pulled
// from the store lazily, only as far as a lookup needs.
type AttributeCache struct {
	productID string
	store     AttributeStore

	values map[string]ProductAttributeValue
	order  []string
	iter   AttributeValueIterator
	done   bool
}

func newAttributeCache(productID string, store AttributeStore) *AttributeCache {
	return &AttributeCache{
		productID: productID,
		store:     store,
		values:    make(map[string]ProductAttributeValue),
	}
}

// Get returns the stored value for slug, reading further rows on a miss.
func (c *AttributeCache) Get(ctx context.Context, slug string) (ProductAttributeValue, bool, error) {
	if v, ok := c.values[slug]; ok {
		return v, true, nil
	}
	for {
		row, ok, err := c.next(ctx)
		if err != nil || !ok {
			return ProductAttributeValue{}, false, err
		}
		if row.Slug == slug {
			return row, true, nil
		}
	}
}

// All drains the iterator and returns every value in store order.
func (c *AttributeCache) All(ctx context.Context) ([]ProductAttributeValue, error) {
	for {
		_, ok, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	out := make([]ProductAttributeValue, 0, len(c.order))
	for _, slug := range c.order {
		out = append(out, c.values[slug])
	}
	return out, nil
}

func (c *AttributeCache) next(ctx context.Context) (ProductAttributeValue, bool, error) {
	if c.done {
		return ProductAttributeValue{}, false, nil
	}
	if c.store == nil {
		c.done = true
		return ProductAttributeValue{}, false, nil
	}
	if c.iter == nil {
		c.iter = c.store.AttributeValues(c.productID)
	}
	row, ok, err := c.iter.Next(ctx)
	if err != nil {
		// A fresh iterator is opened on the next call; rows already memoized
		// are overwritten in place.
		c.iter.Close()
		c.iter = nil
		return ProductAttributeValue{}, false, err
	}
	if !ok {
		c.done = true
		return ProductAttributeValue{}, false, c.closeIter()
	}
	if _, seen := c.values[row.Slug]; !seen {
		c.order = append(c.order, row.Slug)
	}
	c.values[row.Slug] = row
	return row, true, nil
}

func (c *AttributeCache) closeIter() error {
	if c.iter == nil {
		return nil
	}
	err := c.iter.Close()
	c.iter = nil
	return err
}

// Close releases the underlying iterator, if any.
func (c *AttributeCache) Close() error {
	return c.closeIter()
}
