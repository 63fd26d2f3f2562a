package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zariny/ecommerce/internal/inventory"
	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/rpc"
)

const ServiceName = "catalog.v1.InventoryService"

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) Service() *rpc.Service {
	return &rpc.Service{
		Name: ServiceName,
		Methods: map[string]rpc.UnaryFunc{
			"GetStock":      h.GetStock,
			"AdjustStock":   h.AdjustStock,
			"AllocateStock": h.AllocateStock,
			"ListLowStock":  h.ListLowStock,
			"ListMovements": h.ListMovements,
		},
	}
}

func (h *InventoryHandler) GetStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ProductIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	rec, err := h.uc.GetStock(ctx, input.ProductID)
	if err != nil {
		h.logError("failed to get stock", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(stockResponse(rec))
}

func (h *InventoryHandler) AdjustStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.AdjustStockInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	rec, err := h.uc.AdjustStock(ctx, &input)
	if err != nil {
		h.logError("failed to adjust stock", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(stockResponse(rec))
}

func (h *InventoryHandler) AllocateStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.AllocateStockInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	rec, err := h.uc.AllocateStock(ctx, &input)
	if err != nil {
		h.logError("failed to allocate stock", err)
		return nil, rpc.ToStatus(err)
	}
	if rec == nil {
		return rpc.Encode(map[string]any{"stock": nil, "tracked": false})
	}
	resp := stockResponse(rec)
	resp["tracked"] = true
	return rpc.Encode(resp)
}

func (h *InventoryHandler) ListLowStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filters dto.LowStockFilters
	if err := rpc.Decode(req, &filters); err != nil {
		return nil, err
	}
	items, count, err := h.uc.ListLowStock(ctx, &filters)
	if err != nil {
		h.logError("failed to list low stock", err)
		return nil, rpc.ToStatus(err)
	}
	if items == nil {
		items = []model.StockRecord{}
	}
	return rpc.Encode(map[string]any{
		"stock":     items,
		"total":     count,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filters dto.MovementFilters
	if err := rpc.Decode(req, &filters); err != nil {
		return nil, err
	}
	items, count, err := h.uc.ListMovements(ctx, &filters)
	if err != nil {
		h.logError("failed to list stock movements", err)
		return nil, rpc.ToStatus(err)
	}
	if items == nil {
		items = []model.StockMovement{}
	}
	return rpc.Encode(map[string]any{
		"movements": items,
		"total":     count,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func (h *InventoryHandler) logError(msg string, err error) {
	if rpc.IsInternal(err) {
		h.logger.Error(msg, zap.Error(err))
	}
}

func stockResponse(rec *model.StockRecord) map[string]any {
	return map[string]any{
		"stock":           rec,
		"net_stock_level": rec.NetStockLevel(),
		"is_low":          rec.IsLow(),
	}
}
