package inventory

import (
	"context"

	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/model"
)

type UseCase interface {
	GetStock(ctx context.Context, productID string) (*model.StockRecord, error)
	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.StockRecord, error)
	AllocateStock(ctx context.Context, input *dto.AllocateStockInput) (*model.StockRecord, error)
	ListLowStock(ctx context.Context, filters *dto.LowStockFilters) ([]model.StockRecord, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
