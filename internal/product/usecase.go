package product

import (
	"context"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/product/dto"
	classdto "github.com/zariny/ecommerce/internal/productclass/dto"
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*dto.ProductDetail, error)
	GetProduct(ctx context.Context, id string) (*dto.ProductDetail, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*dto.ProductDetail, error)
	SetAttributes(ctx context.Context, input *dto.SetAttributesInput) (*dto.ProductDetail, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Publisher emits catalog change events.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// ClassResolver is the part of the product class service that products
// depend on.
type ClassResolver interface {
	GetClass(ctx context.Context, id string) (*model.ProductClass, error)
	GetAttributes(ctx context.Context, id string, filters *classdto.AttributeFilters) ([]model.ProductAttribute, error)
	DescendantIDs(ctx context.Context, id string, includeSelf bool) ([]string, error)
}
