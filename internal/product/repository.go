package product

import (
	"context"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/product/dto"
)

type Repository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters, attrs []AttributeFilter) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error

	// WithinTx runs fn in one transaction; repository calls made with the
	// context passed to fn take part in it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Attribute value store backing model.AttributeContainer.
	model.AttributeStore
}
