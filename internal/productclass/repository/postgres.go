package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zariny/ecommerce/internal/inheritance"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
	"github.com/zariny/ecommerce/internal/productclass"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

// graphLockKey is the advisory lock serializing class graph writes.
const graphLockKey int64 = 0x70636c67

const classColumns = `id, title, slug, requires_shipping, tracks_stock, abstract, metadata, created_at, updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.ProductClass, error) {
	var c model.ProductClass
	query := `SELECT ` + classColumns + ` FROM product_classes WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.DB.SelectContext(ctx, &c.Bases,
		`SELECT base_id FROM product_class_relations WHERE subclass_id = $1 ORDER BY base_id`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) ([]model.ProductClass, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var classes []model.ProductClass
	query := `SELECT ` + classColumns + ` FROM product_classes WHERE id = ANY($1) ORDER BY title, id`
	if err := r.DB.SelectContext(ctx, &classes, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ClassFilters) ([]model.ProductClass, int, error) {
	var classes []model.ProductClass
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.Abstract != nil {
		conditions = append(conditions, "abstract = :abstract")
		args["abstract"] = *f.Abstract
	}
	if f.Search != "" {
		conditions = append(conditions, "(title ILIKE :search OR slug ILIKE :search)")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM product_classes"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + classColumns + " FROM product_classes" + whereClause + " ORDER BY title ASC, id ASC"
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

	if err := nstmt.SelectContext(ctx, &classes, args); err != nil {
		return nil, 0, err
	}
	return classes, count, nil
}

func (r *PGRepository) FindAttributes(ctx context.Context, classIDs []string, f *dto.AttributeFilters) ([]model.ProductAttribute, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	conditions := []string{"pca.product_class_id = ANY($1)"}
	args := []interface{}{pq.Array(classIDs)}

	if f != nil && f.Required != nil {
		args = append(args, *f.Required)
		conditions = append(conditions, fmt.Sprintf("a.required = $%d", len(args)))
	}
	if f != nil && f.ValueType != "" {
		args = append(args, f.ValueType)
		conditions = append(conditions, fmt.Sprintf("a.value_type = $%d", len(args)))
	}

	query := `
        SELECT DISTINCT a.id, a.name, a.slug, a.value_type, a.required, a.created_at, a.updated_at
        FROM product_attributes a
        JOIN product_class_attributes pca ON pca.attribute_id = a.id
        WHERE ` + strings.Join(conditions, " AND ") + `
        ORDER BY a.slug`

	var attrs []model.ProductAttribute
	if err := r.DB.SelectContext(ctx, &attrs, query, args...); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (r *PGRepository) LoadGraph(ctx context.Context) (*inheritance.EdgeSet, error) {
	return loadGraph(ctx, r.DB)
}

func (r *PGRepository) MutateGraph(ctx context.Context, fn func(ctx context.Context, tx productclass.GraphTx) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, graphLockKey); err != nil {
		return fmt.Errorf("lock class graph: %w", err)
	}
	graph, err := loadGraph(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &graphTx{tx: tx, graph: graph}); err != nil {
		return err
	}
	return tx.Commit()
}

func loadGraph(ctx context.Context, q sqlx.QueryerContext) (*inheritance.EdgeSet, error) {
	var edges []inheritance.Edge
	if err := sqlx.SelectContext(ctx, q, &edges,
		`SELECT base_id, subclass_id FROM product_class_relations`); err != nil {
		return nil, fmt.Errorf("load class graph: %w", err)
	}
	return inheritance.NewEdgeSet(edges), nil
}

type graphTx struct {
	tx    *sqlx.Tx
	graph *inheritance.EdgeSet
}

func (g *graphTx) Graph() *inheritance.EdgeSet {
	return g.graph
}

func (g *graphTx) MissingClasses(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := g.tx.SelectContext(ctx, &found,
		`SELECT id FROM product_classes WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// LockProducts takes FOR UPDATE on the class row, which conflicts with the
// key share lock a product insert takes on its class.
func (g *graphTx) LockProducts(ctx context.Context, id string) (bool, error) {
	var locked string
	if err := g.tx.GetContext(ctx, &locked,
		`SELECT id FROM product_classes WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("product class %s: %w", id, model.ErrNotFound)
		}
		return false, err
	}
	var exists bool
	err := g.tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM products WHERE product_class_id = $1)`, id)
	return exists, err
}

func (g *graphTx) CreateClass(ctx context.Context, c *model.ProductClass) error {
	query := `
        INSERT INTO product_classes (` + classColumns + `)
        VALUES (:id, :title, :slug, :requires_shipping, :tracks_stock, :abstract, :metadata, :created_at, :updated_at)
    `
	_, err := g.tx.NamedExecContext(ctx, query, c)
	return mapWriteError(err)
}

func (g *graphTx) UpdateClass(ctx context.Context, c *model.ProductClass) error {
	query := `
        UPDATE product_classes
        SET title = :title,
            slug = :slug,
            requires_shipping = :requires_shipping,
            tracks_stock = :tracks_stock,
            abstract = :abstract,
            metadata = :metadata,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := g.tx.NamedExecContext(ctx, query, c)
	if err != nil {
		return mapWriteError(err)
	}
	return expectRow(res)
}

// DeleteClass removes the class; relations and attribute links cascade.
func (g *graphTx) DeleteClass(ctx context.Context, id string) error {
	res, err := g.tx.ExecContext(ctx, `DELETE FROM product_classes WHERE id = $1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	return expectRow(res)
}

func (g *graphTx) InsertRelations(ctx context.Context, relations []model.ProductClassRelation) error {
	if len(relations) == 0 {
		return nil
	}
	query := `
        INSERT INTO product_class_relations (id, base_id, subclass_id, created_at)
        VALUES (:id, :base_id, :subclass_id, :created_at)
    `
	_, err := g.tx.NamedExecContext(ctx, query, relations)
	return mapWriteError(err)
}

func (g *graphTx) DeleteRelation(ctx context.Context, baseID, subclassID string) (bool, error) {
	res, err := g.tx.ExecContext(ctx,
		`DELETE FROM product_class_relations WHERE base_id = $1 AND subclass_id = $2`, baseID, subclassID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (g *graphTx) DeleteBases(ctx context.Context, subclassID string) error {
	_, err := g.tx.ExecContext(ctx, `DELETE FROM product_class_relations WHERE subclass_id = $1`, subclassID)
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
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("product class: %w", model.ErrConflict)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("product class: %w", model.ErrInUse)
	}
	return err
}
