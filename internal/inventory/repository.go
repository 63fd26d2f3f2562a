package inventory

import (
	"context"

	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/model"
)

type Repository interface {
	GetByProduct(ctx context.Context, productID string) (*model.StockRecord, error)
	FindLowStock(ctx context.Context, filters *dto.LowStockFilters) ([]model.StockRecord, int, error)

	// TracksStock reports whether the product's class tracks stock. found
	// is false when the product does not exist.
	TracksStock(ctx context.Context, productID string) (tracks bool, found bool, err error)

	// SaveWithMovement upserts the record and logs the movement in one
	// transaction.
	SaveWithMovement(ctx context.Context, rec *model.StockRecord, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
