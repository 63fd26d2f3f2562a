package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zariny/ecommerce/internal/attribute"
	"github.com/zariny/ecommerce/internal/attribute/dto"
	"github.com/zariny/ecommerce/internal/dynvalue"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/cache"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/productclass"
)

type attributeUseCase struct {
	repo   attribute.Repository
	cache  *cache.RedisClient
	logger logger.ZapLogger
}

func NewAttributeUseCase(repo attribute.Repository, cache *cache.RedisClient, log logger.ZapLogger) attribute.UseCase {
	return &attributeUseCase{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

func (uc *attributeUseCase) CreateAttribute(ctx context.Context, input *dto.CreateAttributeInput) (*model.ProductAttribute, error) {
	valueType, err := dynvalue.ParseType(input.ValueType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	a := &model.ProductAttribute{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		Name:            input.Name,
		Slug:            input.Slug,
		ValueType:       valueType,
		Required:        input.Required,
		ProductClassIDs: input.ProductClassIDs,
	}
	if err := uc.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if len(a.ProductClassIDs) > 0 {
		uc.bumpGeneration(ctx)
	}
	uc.logger.Info("product attribute created", zap.String("id", a.ID), zap.String("slug", a.Slug))
	return a, nil
}

func (uc *attributeUseCase) GetAttribute(ctx context.Context, id string) (*model.ProductAttribute, error) {
	a, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("product attribute %s: %w", id, model.ErrNotFound)
	}
	return a, nil
}

func (uc *attributeUseCase) ListAttributes(ctx context.Context, filters *dto.AttributeFilters) ([]model.ProductAttribute, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// UpdateAttribute refuses to change the value type once values are stored.
func (uc *attributeUseCase) UpdateAttribute(ctx context.Context, input *dto.UpdateAttributeInput) (*model.ProductAttribute, error) {
	valueType, err := dynvalue.ParseType(input.ValueType)
	if err != nil {
		return nil, err
	}
	a, err := uc.GetAttribute(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	a.Name = input.Name
	a.Slug = input.Slug
	a.ValueType = valueType
	a.Required = input.Required
	a.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	uc.bumpGeneration(ctx)
	return a, nil
}

func (uc *attributeUseCase) DeleteAttribute(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.bumpGeneration(ctx)
	return nil
}

func (uc *attributeUseCase) AssignToClasses(ctx context.Context, input *dto.AssignInput) (*model.ProductAttribute, error) {
	if _, err := uc.GetAttribute(ctx, input.AttributeID); err != nil {
		return nil, err
	}
	if err := uc.repo.Assign(ctx, input.AttributeID, input.ProductClassIDs); err != nil {
		return nil, err
	}
	uc.bumpGeneration(ctx)
	return uc.GetAttribute(ctx, input.AttributeID)
}

func (uc *attributeUseCase) UnassignFromClass(ctx context.Context, input *dto.UnassignInput) error {
	removed, err := uc.repo.Unassign(ctx, input.AttributeID, input.ProductClassID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("attribute %s on class %s: %w", input.AttributeID, input.ProductClassID, model.ErrNotFound)
	}
	uc.bumpGeneration(ctx)
	return nil
}

func (uc *attributeUseCase) bumpGeneration(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Bump(ctx, productclass.AttributeGenerationKey); err != nil {
		uc.logger.Error("failed to bump attribute cache generation", zap.Error(err))
	}
}
