package attribute

import (
	"context"

	"github.com/zariny/ecommerce/internal/attribute/dto"
	"github.com/zariny/ecommerce/internal/model"
)

type UseCase interface {
	CreateAttribute(ctx context.Context, input *dto.CreateAttributeInput) (*model.ProductAttribute, error)
	GetAttribute(ctx context.Context, id string) (*model.ProductAttribute, error)
	ListAttributes(ctx context.Context, filters *dto.AttributeFilters) ([]model.ProductAttribute, int, error)
	UpdateAttribute(ctx context.Context, input *dto.UpdateAttributeInput) (*model.ProductAttribute, error)
	DeleteAttribute(ctx context.Context, id string) error

	AssignToClasses(ctx context.Context, input *dto.AssignInput) (*model.ProductAttribute, error)
	UnassignFromClass(ctx context.Context, input *dto.UnassignInput) error
}
