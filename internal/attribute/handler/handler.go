package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zariny/ecommerce/internal/attribute"
	"github.com/zariny/ecommerce/internal/attribute/dto"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/rpc"
)

const ServiceName = "catalog.v1.ProductAttributeService"

type AttributeHandler struct {
	uc     attribute.UseCase
	logger logger.ZapLogger
}

func NewAttributeHandler(uc attribute.UseCase, log logger.ZapLogger) *AttributeHandler {
	return &AttributeHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *AttributeHandler) Service() *rpc.Service {
	return &rpc.Service{
		Name: ServiceName,
		Methods: map[string]rpc.UnaryFunc{
			"CreateAttribute":   h.CreateAttribute,
			"GetAttribute":      h.GetAttribute,
			"ListAttributes":    h.ListAttributes,
			"UpdateAttribute":   h.UpdateAttribute,
			"DeleteAttribute":   h.DeleteAttribute,
			"AssignToClasses":   h.AssignToClasses,
			"UnassignFromClass": h.UnassignFromClass,
		},
	}
}

func (h *AttributeHandler) CreateAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.CreateAttributeInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	a, err := h.uc.CreateAttribute(ctx, &input)
	if err != nil {
		h.logError("failed to create attribute", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"attribute": a})
}

func (h *AttributeHandler) GetAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.AttributeIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	a, err := h.uc.GetAttribute(ctx, input.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"attribute": a})
}

func (h *AttributeHandler) ListAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filters dto.AttributeFilters
	if err := rpc.Decode(req, &filters); err != nil {
		return nil, err
	}
	attrs, count, err := h.uc.ListAttributes(ctx, &filters)
	if err != nil {
		h.logError("failed to list attributes", err)
		return nil, rpc.ToStatus(err)
	}
	if attrs == nil {
		attrs = []model.ProductAttribute{}
	}
	return rpc.Encode(map[string]any{
		"attributes": attrs,
		"total":      count,
		"page":       filters.Page,
		"page_size":  filters.PageSize,
	})
}

func (h *AttributeHandler) UpdateAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.UpdateAttributeInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	a, err := h.uc.UpdateAttribute(ctx, &input)
	if err != nil {
		h.logError("failed to update attribute", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"attribute": a})
}

func (h *AttributeHandler) DeleteAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.AttributeIDInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.DeleteAttribute(ctx, input.ID); err != nil {
		h.logError("failed to delete attribute", err)
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *AttributeHandler) AssignToClasses(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.AssignInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	a, err := h.uc.AssignToClasses(ctx, &input)
	if err != nil {
		h.logError("failed to assign attribute", err)
		return nil, rpc.ToStatus(err)
	}
	return rpc.Encode(map[string]any{"attribute": a})
}

func (h *AttributeHandler) UnassignFromClass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.UnassignInput
	if err := rpc.Decode(req, &input); err != nil {
		return nil, err
	}
	if err := h.uc.UnassignFromClass(ctx, &input); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (h *AttributeHandler) logError(msg string, err error) {
	if rpc.IsInternal(err) {
		h.logger.Error(msg, zap.Error(err))
	}
}
