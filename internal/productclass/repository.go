package productclass

import (
	"context"

	"github.com/zariny/ecommerce/internal/inheritance"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*model.ProductClass, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.ProductClass, error)
	FindAll(ctx context.Context, filters *dto.ClassFilters) ([]model.ProductClass, int, error)
	FindAttributes(ctx context.Context, classIDs []string, filters *dto.AttributeFilters) ([]model.ProductAttribute, error)

	// LoadGraph reads every relation. The result is a snapshot and must not
	// be used to validate writes; use MutateGraph for that.
	LoadGraph(ctx context.Context) (*inheritance.EdgeSet, error)

	// MutateGraph runs fn in one transaction that holds the graph lock and
	// sees a graph loaded inside that transaction. fn's error rolls back.
	MutateGraph(ctx context.Context, fn func(ctx context.Context, tx GraphTx) error) error
}

// GraphTx is the write side of the class graph inside MutateGraph.
type GraphTx interface {
	Graph() *inheritance.EdgeSet
	MissingClasses(ctx context.Context, ids []string) ([]string, error)
	// LockProducts locks the class row against new products until the
	// transaction ends and reports whether any product uses the class.
	LockProducts(ctx context.Context, id string) (bool, error)
	CreateClass(ctx context.Context, c *model.ProductClass) error
	UpdateClass(ctx context.Context, c *model.ProductClass) error
	DeleteClass(ctx context.Context, id string) error
	InsertRelations(ctx context.Context, relations []model.ProductClassRelation) error
	DeleteRelation(ctx context.Context, baseID, subclassID string) (bool, error)
	DeleteBases(ctx context.Context, subclassID string) error
}
