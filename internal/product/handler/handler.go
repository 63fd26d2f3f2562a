package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/rpc"
	"github.com/zariny/ecommerce/internal/product"
	"github.com/zariny/ecommerce/internal/product/dto"
)

const ServiceName = "catalog.v1.ProductService"

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductHandler) Service() *rpc.Service {
	return &rpc.Service{
		Name: ServiceName,
		Methods: map[string]rpc.UnaryFunc{
			"CreateProduct": h.CreateProduct,
			"GetProduct":    h.GetProduct,
			"ListProducts":  h.ListProducts,
			"UpdateProduct": h.UpdateProduct,
			"SetAttributes": h.SetAttributes,
			"DeleteProduct": h.DeleteProduct,
		},
	}
}

func (h *ProductHandler) CreateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.CreateProductInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	p, err := h.uc.CreateProduct(ctx, &input)
	if err != nil {
		h.logError("failed to create product", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product": p})
}

func (h *ProductHandler) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ProductIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	p, err := h.uc.GetProduct(ctx, input.ID)
	if err != nil {
		h.logError("failed to get product", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product": p})
}

func (h *ProductHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filters dto.ProductFilters
	if err := rpc.Decode(req, &filters); err != nil {
		return nil, err
	}
	products, count, err := h.uc.ListProducts(ctx, &filters)
	if err != nil {
		h.logError("failed to list products", err)
		return nil, rpc.ToStatus(err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return rpc.Encode(map[string]any{
		"products":  products,
		"total":     count,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func (h *ProductHandler) UpdateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.UpdateProductInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	p, err := h.uc.UpdateProduct(ctx, &input)
	if err != nil {
		h.logError("failed to update product", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product": p})
}

func (h *ProductHandler) SetAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.SetAttributesInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	p, err := h.uc.SetAttributes(ctx, &input)
	if err != nil {
		h.logError("failed to set product attributes", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product": p})
}

func (h *ProductHandler) DeleteProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ProductIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.DeleteProduct(ctx, input.ID); err != nil {
		h.logError("failed to delete product", err)
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *ProductHandler) logError(msg string, err error) {
	if rpc.IsInternal(err) {
		h.logger.Error(msg, zap.Error(err))
	}
}
