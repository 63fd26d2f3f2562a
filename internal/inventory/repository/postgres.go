package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
)

const (
	stockColumns = `id, product_id, sku, num_in_stock, num_allocated, low_stock_threshold,
        price, price_currency, created_at, updated_at`
	movementColumns = `id, product_id, movement_type, quantity_change, quantity_before, quantity_after,
        reference_type, reference_id, notes, created_at`
	lowStockCondition = "low_stock_threshold IS NOT NULL AND num_in_stock - num_allocated <= low_stock_threshold"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByProduct(ctx context.Context, productID string) (*model.StockRecord, error) {
	var rec model.StockRecord
	query := `SELECT ` + stockColumns + ` FROM stock_records WHERE product_id = $1`
	err := r.DB.GetContext(ctx, &rec, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) FindLowStock(ctx context.Context, f *dto.LowStockFilters) ([]model.StockRecord, int, error) {
	var items []model.StockRecord
	var count int

	if err := r.DB.GetContext(ctx, &count, "SELECT count(*) FROM stock_records WHERE "+lowStockCondition); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + stockColumns + " FROM stock_records WHERE " + lowStockCondition +
		" ORDER BY num_in_stock - num_allocated ASC, updated_at DESC"
	if f.PageSize > 0 {
		page := max(f.Page, 1)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}
	if err := r.DB.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) TracksStock(ctx context.Context, productID string) (bool, bool, error) {
	var tracks bool
	err := r.DB.GetContext(ctx, &tracks, `
        SELECT c.tracks_stock
        FROM products p
        JOIN product_classes c ON c.id = p.product_class_id
        WHERE p.id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return tracks, true, nil
}

func (r *PGRepository) SaveWithMovement(ctx context.Context, rec *model.StockRecord, movement *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsertQuery := `
        INSERT INTO stock_records (` + stockColumns + `)
        VALUES (
            :id, :product_id, :sku, :num_in_stock, :num_allocated, :low_stock_threshold,
            :price, :price_currency, :created_at, :updated_at
        )
        ON CONFLICT (product_id)
        DO UPDATE SET
            sku = EXCLUDED.sku,
            num_in_stock = EXCLUDED.num_in_stock,
            num_allocated = EXCLUDED.num_allocated,
            low_stock_threshold = EXCLUDED.low_stock_threshold,
            price = EXCLUDED.price,
            price_currency = EXCLUDED.price_currency,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := tx.NamedExecContext(ctx, upsertQuery, rec); err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return &model.FieldError{Field: "sku", Err: fmt.Errorf("stock record: %w", model.ErrConflict)}
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("product %s: %w", rec.ProductID, model.ErrNotFound)
		}
		return fmt.Errorf("failed to save stock record: %w", err)
	}

	insertQuery := `
        INSERT INTO stock_movements (` + movementColumns + `)
        VALUES (
            :id, :product_id, :movement_type, :quantity_change, :quantity_before, :quantity_after,
            :reference_type, :reference_id, :notes, :created_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, insertQuery, movement); err != nil {
		return fmt.Errorf("failed to log stock movement: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{"product_id = :product_id"}
	args := map[string]interface{}{"product_id": f.ProductID}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stock_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + movementColumns + " FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		page := max(f.Page, 1)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
