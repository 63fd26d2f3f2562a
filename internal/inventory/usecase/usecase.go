package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zariny/ecommerce/internal/inventory"
	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/cache"
	"github.com/zariny/ecommerce/internal/pkg/logger"
)

const (
	lockAttempts   = 3
	lockRetryDelay = 100 * time.Millisecond
)

type inventoryUseCase struct {
	repo    inventory.Repository
	cache   *cache.RedisClient
	lockTTL time.Duration
	logger  logger.ZapLogger
}

// NewInventoryUseCase builds the use case. Without a cache, stock writes
// are not serialized across instances.
func NewInventoryUseCase(repo inventory.Repository, cache *cache.RedisClient, lockTTL time.Duration, log logger.ZapLogger) inventory.UseCase {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &inventoryUseCase{
		repo:    repo,
		cache:   cache,
		lockTTL: lockTTL,
		logger:  log,
	}
}

// GetStock returns the product's stock record, or an empty one when none
// has been written yet.
func (uc *inventoryUseCase) GetStock(ctx context.Context, productID string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		_, found, err := uc.repo.TracksStock(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("product %s: %w", productID, model.ErrNotFound)
		}
		return &model.StockRecord{ProductID: productID, PriceCurrency: "USD"}, nil
	}
	return rec, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, filters *dto.LowStockFilters) ([]model.StockRecord, int, error) {
	return uc.repo.FindLowStock(ctx, filters)
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.StockRecord, error) {
	release, err := uc.lock(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := uc.loadForWrite(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	before := rec.NumInStock
	after := before + input.QuantityChange
	if after < 0 || after < rec.NumAllocated {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, model.ErrInsufficientStock)
	}
	rec.NumInStock = after
	if input.SKU != nil {
		rec.SKU = input.SKU
	}
	if input.LowStockThreshold != nil {
		rec.LowStockThreshold = input.LowStockThreshold
	}
	if input.Price != nil {
		rec.Price = input.Price
	}
	if input.PriceCurrency != "" {
		rec.PriceCurrency = input.PriceCurrency
	}

	movement := newMovement(rec, model.MovementAdjustment, input.QuantityChange, before, after,
		input.ReferenceType, input.ReferenceID, input.Reason)
	if err := uc.repo.SaveWithMovement(ctx, rec, movement); err != nil {
		return nil, err
	}

	if rec.IsLow() {
		uc.logger.Warn("stock below threshold",
			zap.String("product_id", rec.ProductID), zap.Int("net_stock", rec.NetStockLevel()))
	}
	return rec, nil
}

// AllocateStock reserves stock for an order line. Products whose class does
// not track stock are skipped and yield a nil record.
func (uc *inventoryUseCase) AllocateStock(ctx context.Context, input *dto.AllocateStockInput) (*model.StockRecord, error) {
	tracks, found, err := uc.repo.TracksStock(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, model.ErrNotFound)
	}
	if !tracks {
		return nil, nil
	}

	release, err := uc.lock(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := uc.repo.GetByProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.CanAllocate(input.Quantity) {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, model.ErrInsufficientStock)
	}

	before := rec.NumAllocated
	rec.NumAllocated += input.Quantity
	rec.UpdatedAt = time.Now()

	movement := newMovement(rec, model.MovementAllocation, input.Quantity, before, rec.NumAllocated,
		input.ReferenceType, input.ReferenceID, "")
	if err := uc.repo.SaveWithMovement(ctx, rec, movement); err != nil {
		return nil, err
	}
	return rec, nil
}

// loadForWrite returns the stored record or a fresh one for a known product.
func (uc *inventoryUseCase) loadForWrite(ctx context.Context, productID string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if rec == nil {
		_, found, err := uc.repo.TracksStock(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("product %s: %w", productID, model.ErrNotFound)
		}
		rec = &model.StockRecord{
			ID:            uuid.New().String(),
			ProductID:     productID,
			PriceCurrency: "USD",
			CreatedAt:     now,
		}
	}
	rec.UpdatedAt = now
	return rec, nil
}

// lock takes the per-product stock lock, retrying a few times before
// giving up with model.ErrStockBusy.
func (uc *inventoryUseCase) lock(ctx context.Context, productID string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}
	key := "lock:stock:" + productID
	value := uuid.New().String()

	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.cache.AcquireLock(ctx, key, value, uc.lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire stock lock", zap.String("product_id", productID), zap.Error(err))
		}
		if ok {
			return func() {
				if err := uc.cache.ReleaseLock(context.WithoutCancel(ctx), key, value); err != nil {
					uc.logger.Warn("failed to release stock lock", zap.String("product_id", productID), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return nil, fmt.Errorf("product %s: %w", productID, model.ErrStockBusy)
}

func newMovement(rec *model.StockRecord, kind string, change, before, after int, refType, refID, notes string) *model.StockMovement {
	return &model.StockMovement{
		ID:             uuid.New().String(),
		ProductID:      rec.ProductID,
		MovementType:   kind,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceType:  optional(refType),
		ReferenceID:    optional(refID),
		Notes:          notes,
		CreatedAt:      rec.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
