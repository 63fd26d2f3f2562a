package attribute

import (
	"context"

	"github.com/zariny/ecommerce/internal/attribute/dto"
	"github.com/zariny/ecommerce/internal/model"
)

type Repository interface {
	Create(ctx context.Context, a *model.ProductAttribute) error
	FindByID(ctx context.Context, id string) (*model.ProductAttribute, error)
	FindAll(ctx context.Context, filters *dto.AttributeFilters) ([]model.ProductAttribute, int, error)
	// Update fails with a value_type FieldError wrapping model.ErrInUse when
	// the type changes while values are stored.
	Update(ctx context.Context, a *model.ProductAttribute) error
	Delete(ctx context.Context, id string) error

	Assign(ctx context.Context, attributeID string, classIDs []string) error
	Unassign(ctx context.Context, attributeID, classID string) (bool, error)
}
