package productclass

import (
	"context"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

type UseCase interface {
	CreateClass(ctx context.Context, input *dto.CreateClassInput) (*model.ProductClass, error)
	GetClass(ctx context.Context, id string) (*model.ProductClass, error)
	ListClasses(ctx context.Context, filters *dto.ClassFilters) ([]model.ProductClass, int, error)
	UpdateClass(ctx context.Context, input *dto.UpdateClassInput) (*model.ProductClass, error)
	DeleteClass(ctx context.Context, id string) error

	AddRelation(ctx context.Context, input *dto.RelationInput) error
	RemoveRelation(ctx context.Context, input *dto.RelationInput) error

	GetAncestors(ctx context.Context, id string, includeSelf bool) ([]model.ProductClass, error)
	GetDescendants(ctx context.Context, id string, includeSelf bool) ([]model.ProductClass, error)
	DescendantIDs(ctx context.Context, id string, includeSelf bool) ([]string, error)
	GetAttributes(ctx context.Context, id string, filters *dto.AttributeFilters) ([]model.ProductAttribute, error)

	// VerifyGraph returns a cycle in the stored graph, or nil.
	VerifyGraph(ctx context.Context) ([]string, error)
}

// AttributeGenerationKey holds the counter that versions cached attribute
// sets. Anything changing the graph or class attribute links bumps it.
const AttributeGenerationKey = "catalog:attrs:gen"
