package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zariny/ecommerce/internal/attribute/dto"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
)

const attributeColumns = `id, name, slug, value_type, required, created_at, updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// Create inserts the attribute together with its class links.
func (r *PGRepository) Create(ctx context.Context, a *model.ProductAttribute) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO product_attributes (` + attributeColumns + `)
        VALUES (:id, :name, :slug, :value_type, :required, :created_at, :updated_at)
    `
	if _, err := tx.NamedExecContext(ctx, query, a); err != nil {
		return mapWriteError(err)
	}
	if err := assign(ctx, tx, a.ID, a.ProductClassIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.ProductAttribute, error) {
	var a model.ProductAttribute
	query := `SELECT ` + attributeColumns + ` FROM product_attributes WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &a, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.DB.SelectContext(ctx, &a.ProductClassIDs,
		`SELECT product_class_id FROM product_class_attributes WHERE attribute_id = $1 ORDER BY product_class_id`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.AttributeFilters) ([]model.ProductAttribute, int, error) {
	var attrs []model.ProductAttribute
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductClassID != "" {
		conditions = append(conditions,
			"id IN (SELECT attribute_id FROM product_class_attributes WHERE product_class_id = :product_class_id)")
		args["product_class_id"] = f.ProductClassID
	}
	if f.ValueType != "" {
		conditions = append(conditions, "value_type = :value_type")
		args["value_type"] = f.ValueType
	}
	if f.Search != "" {
		conditions = append(conditions, "(name ILIKE :search OR slug ILIKE :search)")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM product_attributes"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + attributeColumns + " FROM product_attributes" + whereClause + " ORDER BY slug ASC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &attrs, args); err != nil {
		return nil, 0, err
	}
	return attrs, count, nil
}

// Update locks the attribute row before checking stored values, so value
// inserts (which key share lock the attribute) cannot interleave with a
// value type change.
func (r *PGRepository) Update(ctx context.Context, a *model.ProductAttribute) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	if err := tx.GetContext(ctx, &current,
		`SELECT value_type FROM product_attributes WHERE id = $1 FOR UPDATE`, a.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	}
	if current != string(a.ValueType) {
		var hasValues bool
		if err := tx.GetContext(ctx, &hasValues,
			`SELECT EXISTS (SELECT 1 FROM product_attribute_values WHERE attribute_id = $1)`, a.ID); err != nil {
			return err
		}
		if hasValues {
			return &model.FieldError{Field: "value_type", Err: model.ErrInUse}
		}
	}

	query := `
        UPDATE product_attributes
        SET name = :name,
            slug = :slug,
            value_type = :value_type,
            required = :required,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := tx.NamedExecContext(ctx, query, a)
	if err != nil {
		return mapWriteError(err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the attribute; class links and stored values cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM product_attributes WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *PGRepository) Assign(ctx context.Context, attributeID string, classIDs []string) error {
	return assign(ctx, r.DB, attributeID, classIDs)
}

func (r *PGRepository) Unassign(ctx context.Context, attributeID, classID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM product_class_attributes WHERE attribute_id = $1 AND product_class_id = $2`, attributeID, classID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func assign(ctx context.Context, e sqlx.ExecerContext, attributeID string, classIDs []string) error {
	if len(classIDs) == 0 {
		return nil
	}
	_, err := e.ExecContext(ctx, `
        INSERT INTO product_class_attributes (product_class_id, attribute_id)
        SELECT unnest($1::uuid[]), $2::uuid
        ON CONFLICT DO NOTHING`,
		pq.Array(classIDs), attributeID)
	if postgres.IsForeignKeyViolation(err) {
		return &model.FieldError{Field: "product_class_ids", Err: fmt.Errorf("product class: %w", model.ErrNotFound)}
	}
	return err
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
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("product attribute: %w", model.ErrConflict)
	}
	return err
}
