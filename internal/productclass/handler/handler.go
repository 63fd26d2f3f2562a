package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/rpc"
	"github.com/zariny/ecommerce/internal/productclass"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

const ServiceName = "catalog.v1.ProductClassService"

type ProductClassHandler struct {
	uc     productclass.UseCase
	logger logger.ZapLogger
}

func NewProductClassHandler(uc productclass.UseCase, log logger.ZapLogger) *ProductClassHandler {
	return &ProductClassHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductClassHandler) Service() *rpc.Service {
	return &rpc.Service{
		Name: ServiceName,
		Methods: map[string]rpc.UnaryFunc{
			"CreateClass":    h.CreateClass,
			"GetClass":       h.GetClass,
			"ListClasses":    h.ListClasses,
			"UpdateClass":    h.UpdateClass,
			"DeleteClass":    h.DeleteClass,
			"AddRelation":    h.AddRelation,
			"RemoveRelation": h.RemoveRelation,
			"GetAncestors":   h.GetAncestors,
			"GetDescendants": h.GetDescendants,
			"GetAttributes":  h.GetAttributes,
		},
	}
}

func (h *ProductClassHandler) CreateClass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.CreateClassInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	c, err := h.uc.CreateClass(ctx, &input)
	if err != nil {
		h.logError("failed to create product class", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product_class": c})
}

func (h *ProductClassHandler) GetClass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ClassIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	c, err := h.uc.GetClass(ctx, input.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product_class": c})
}

func (h *ProductClassHandler) ListClasses(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filters dto.ClassFilters
	if err := rpc.Decode(req, &filters); err != nil {
		return nil, err
	}
	classes, count, err := h.uc.ListClasses(ctx, &filters)
	if err != nil {
		h.logError("failed to list product classes", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{
		"product_classes": nonNil(classes),
		"total":           count,
		"page":            filters.Page,
		"page_size":       filters.PageSize,
	})
}

func (h *ProductClassHandler) UpdateClass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.UpdateClassInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	c, err := h.uc.UpdateClass(ctx, &input)
	if err != nil {
		h.logError("failed to update product class", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product_class": c})
}

func (h *ProductClassHandler) DeleteClass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ClassIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.DeleteClass(ctx, input.ID); err != nil {
		h.logError("failed to delete product class", err)
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *ProductClassHandler) AddRelation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.RelationInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.AddRelation(ctx, &input); err != nil {
		h.logError("failed to add class relation", err)
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *ProductClassHandler) RemoveRelation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.RelationInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.RemoveRelation(ctx, &input); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *ProductClassHandler) GetAncestors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.LineageInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	classes, err := h.uc.GetAncestors(ctx, input.ID, input.IncludeSelf)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product_classes": nonNil(classes)})
}

func (h *ProductClassHandler) GetDescendants(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.LineageInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	classes, err := h.uc.GetDescendants(ctx, input.ID, input.IncludeSelf)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"product_classes": nonNil(classes)})
}

func (h *ProductClassHandler) GetAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.GetAttributesInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	attrs, err := h.uc.GetAttributes(ctx, input.ID, &input.Filters)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	if attrs == nil {
		attrs = []model.ProductAttribute{}
	}
	return rpc.Encode(map[string]any{"attributes": attrs})
}

func (h *ProductClassHandler) logError(msg string, err error) {
	if rpc.IsInternal(err) {
		h.logger.Error(msg, zap.Error(err))
	}
}

func nonNil(classes []model.ProductClass) []model.ProductClass {
	if classes == nil {
		return []model.ProductClass{}
	}
	return classes
}
