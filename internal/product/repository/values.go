package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/zariny/ecommerce/internal/model"
)

var errIteratorClosed = errors.New("attribute value iterator closed")

// valueIterator pages through a product's attribute values with keyset
// pagination on the value id.
type valueIterator struct {
	repo      *PGRepository
	productID string
	batchSize int

	buf    []model.ProductAttributeValue
	lastID string
	done   bool
	closed bool
}

func (it *valueIterator) Next(ctx context.Context) (model.ProductAttributeValue, bool, error) {
	if it.closed {
		return model.ProductAttributeValue{}, false, errIteratorClosed
	}
	if len(it.buf) == 0 {
		if it.done {
			return model.ProductAttributeValue{}, false, nil
		}
		if err := it.fetch(ctx); err != nil {
			return model.ProductAttributeValue{}, false, err
		}
		if len(it.buf) == 0 {
			return model.ProductAttributeValue{}, false, nil
		}
	}
	v := it.buf[0]
	it.buf = it.buf[1:]
	return v, true, nil
}

func (it *valueIterator) fetch(ctx context.Context) error {
	var rows []model.ProductAttributeValue
	query := `
        SELECT v.id, v.product_id, v.attribute_id, v.value, a.slug, a.value_type
        FROM product_attribute_values v
        JOIN product_attributes a ON a.id = v.attribute_id
        WHERE v.product_id = $1 AND v.id > $2::uuid
        ORDER BY v.id
        LIMIT $3`
	if err := sqlx.SelectContext(ctx, it.repo.ext(ctx), &rows, query, it.productID, it.lastID, it.batchSize); err != nil {
		return err
	}
	if len(rows) < it.batchSize {
		it.done = true
	}
	if len(rows) > 0 {
		it.lastID = rows[len(rows)-1].ID
	}
	it.buf = rows
	return nil
}

func (it *valueIterator) Close() error {
	it.closed = true
	it.buf = nil
	return nil
}
