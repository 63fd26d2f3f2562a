package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
	"github.com/zariny/ecommerce/internal/product"
	"github.com/zariny/ecommerce/internal/product/dto"
)

const (
	productColumns   = `id, product_class_id, title, slug, description, is_public, created_at, updated_at`
	defaultBatchSize = 100
	zeroUUID         = "00000000-0000-0000-0000-000000000000"
)

type PGRepository struct {
	DB        *sqlx.DB
	batchSize int
}

// NewPGRepository returns a repository that reads and writes attribute
// values in batches of batchSize rows.
func NewPGRepository(db *sqlx.DB, batchSize int) *PGRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PGRepository{DB: db, batchSize: batchSize}
}

type txKey struct{}

// WithinTx runs fn in one transaction. Repository calls made with the
// context passed to fn join it; nested calls reuse the outer transaction.
func (r *PGRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGRepository) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.DB
}

// Create inserts the product only while its class is concrete. FOR SHARE
// waits for a concurrent class update and re-checks the committed row.
func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (` + productColumns + `)
        SELECT :id, :product_class_id, :title, :slug, :description, :is_public, :created_at, :updated_at
        WHERE EXISTS (
            SELECT 1 FROM product_classes
            WHERE id = CAST(:product_class_id AS uuid) AND NOT abstract
            FOR SHARE
        )
    `
	res, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, p)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &model.FieldError{Field: "product_class_id", Err: model.ErrAbstractClass}
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 LIMIT 1`
	err := sqlx.GetContext(ctx, r.ext(ctx), &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ProductFilters, attrs []product.AttributeFilter) ([]model.Product, int, error) {
	var products []model.Product
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if len(f.ProductClassIDs) > 0 {
		conditions = append(conditions, "product_class_id = ANY(CAST(:class_ids AS uuid[]))")
		args["class_ids"] = pq.Array(f.ProductClassIDs)
	}
	if f.IsPublic != nil {
		conditions = append(conditions, "is_public = :is_public")
		args["is_public"] = *f.IsPublic
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(title ILIKE :search OR slug ILIKE :search OR description ILIKE :search)")
		args["search"] = "%" + escapeLike(f.SearchQuery) + "%"
	}
	for i, af := range attrs {
		cond, err := attributeCondition(i, af, args)
		if err != nil {
			return nil, 0, err
		}
		conditions = append(conditions, cond)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM products"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	orderBy := "created_at DESC"
	if f.SortBy != "" {
		switch f.SortBy {
		case "title":
			orderBy = "title"
		case "updated_at":
			orderBy = "updated_at"
		default:
			orderBy = "created_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s, id", productColumns, whereClause, orderBy)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.SelectContext(ctx, &products, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	return products, count, nil
}

func (r *PGRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products
        SET title = :title,
            slug = :slug,
            description = :description,
            is_public = :is_public,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, p)
	if err != nil {
		return mapWriteError(err)
	}
	return expectRow(res)
}

// Delete removes the product; attribute values and stock cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := r.ext(ctx).ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// AttributeValues walks the product's values in id order, fetching one
// batch per round trip.
func (r *PGRepository) AttributeValues(productID string) model.AttributeValueIterator {
	return &valueIterator{repo: r, productID: productID, batchSize: r.batchSize, lastID: zeroUUID}
}

// SaveAttributeValues applies the change set in a single transaction, or
// in the caller's transaction when ctx carries one from WithinTx.
func (r *PGRepository) SaveAttributeValues(ctx context.Context, productID string, changes *model.AttributeChanges) error {
	if changes == nil || changes.Empty() {
		return nil
	}
	return r.WithinTx(ctx, func(ctx context.Context) error {
		tx := r.ext(ctx)
		for _, batch := range chunk(changes.Update, r.batchSize) {
			if err := updateValues(ctx, tx, productID, batch); err != nil {
				return err
			}
		}
		for _, batch := range chunk(changes.Create, r.batchSize) {
			if err := insertValues(ctx, tx, batch); err != nil {
				return err
			}
		}
		for _, batch := range chunk(changes.Delete, r.batchSize) {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM product_attribute_values WHERE product_id = $1 AND id = ANY($2::uuid[])`,
				productID, pq.Array(batch))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func updateValues(ctx context.Context, tx sqlx.ExtContext, productID string, batch []model.ProductAttributeValue) error {
	ids := make([]string, 0, len(batch))
	docs := make([]string, 0, len(batch))
	for _, v := range batch {
		doc, err := v.Value.Encode()
		if err != nil {
			return fmt.Errorf("attribute %s: %w", v.Slug, err)
		}
		ids = append(ids, v.ID)
		docs = append(docs, string(doc))
	}
	_, err := tx.ExecContext(ctx, `
        UPDATE product_attribute_values AS v
        SET value = u.value
        FROM unnest($1::uuid[], $2::jsonb[]) AS u(id, value)
        WHERE v.id = u.id AND v.product_id = $3`,
		pq.Array(ids), pq.Array(docs), productID)
	return err
}

func insertValues(ctx context.Context, tx sqlx.ExtContext, batch []model.ProductAttributeValue) error {
	query := `
        INSERT INTO product_attribute_values (id, product_id, attribute_id, value)
        VALUES (:id, :product_id, :attribute_id, :value)
    `
	if _, err := sqlx.NamedExecContext(ctx, tx, query, batch); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return &model.FieldError{Field: "attributes", Err: fmt.Errorf("product attribute: %w", model.ErrNotFound)}
		}
		return mapWriteError(err)
	}
	return nil
}

// attributeCondition renders one filter as an EXISTS over the value table.
// Values are compared on the "value" member of the stored document.
func attributeCondition(i int, f product.AttributeFilter, args map[string]interface{}) (string, error) {
	slugArg := fmt.Sprintf("attr_slug_%d", i)
	valArg := fmt.Sprintf("attr_val_%d", i)
	args[slugArg] = f.Slug

	var match string
	switch {
	case f.Lookup == product.LookupExact:
		doc, err := json.Marshal(f.Value)
		if err != nil {
			return "", err
		}
		args[valArg] = string(doc)
		match = fmt.Sprintf("v.value->'value' = CAST(:%s AS jsonb)", valArg)
	case f.Lookup == product.LookupIn:
		docs := []string{}
		for _, item := range f.Value.([]any) {
			doc, err := json.Marshal(item)
			if err != nil {
				return "", err
			}
			docs = append(docs, string(doc))
		}
		args[valArg] = pq.Array(docs)
		match = fmt.Sprintf("v.value->'value' = ANY(CAST(:%s AS jsonb[]))", valArg)
	case f.IsRange():
		op := rangeOperators[f.Lookup]
		if n, ok := numeric(f.Value); ok {
			args[valArg] = n
			match = fmt.Sprintf("jsonb_typeof(v.value->'value') = 'number' AND CAST(v.value->>'value' AS numeric) %s CAST(:%s AS numeric)", op, valArg)
		} else {
			args[valArg] = fmt.Sprint(f.Value)
			match = fmt.Sprintf("v.value->>'value' %s :%s", op, valArg)
		}
	case f.Lookup == product.LookupContains:
		args[valArg] = "%" + escapeLike(fmt.Sprint(f.Value)) + "%"
		match = fmt.Sprintf("v.value->>'value' LIKE :%s", valArg)
	case f.Lookup == product.LookupIContains:
		args[valArg] = "%" + escapeLike(fmt.Sprint(f.Value)) + "%"
		match = fmt.Sprintf("v.value->>'value' ILIKE :%s", valArg)
	default:
		return "", fmt.Errorf("%w %q", product.ErrUnsupportedLookup, f.Lookup)
	}

	return fmt.Sprintf(`EXISTS (
            SELECT 1 FROM product_attribute_values v
            JOIN product_attributes a ON a.id = v.attribute_id
            WHERE v.product_id = products.id AND a.slug = :%s AND %s)`, slugArg, match), nil
}

var rangeOperators = map[product.Lookup]string{
	product.LookupGt:  ">",
	product.LookupGte: ">=",
	product.LookupLt:  "<",
	product.LookupLte: "<=",
}

func numeric(v any) (string, bool) {
	switch n := v.(type) {
	case json.Number:
		return n.String(), true
	case float64, float32, int, int32, int64:
		return fmt.Sprint(n), true
	}
	return "", false
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("product: %w", model.ErrConflict)
	case postgres.IsForeignKeyViolation(err):
		return &model.FieldError{Field: "product_class_id", Err: fmt.Errorf("product class: %w", model.ErrNotFound)}
	}
	return err
}
