package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zariny/ecommerce/internal/inheritance"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/cache"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/productclass"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

var attributeCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_class_attribute_cache_requests_total",
	Help: "Resolved attribute set lookups by cache result.",
}, []string{"result"})

type productClassUseCase struct {
	repo     productclass.Repository
	cache    *cache.RedisClient
	cacheTTL time.Duration
	logger   logger.ZapLogger
}

// NewProductClassUseCase builds the use case. cache may be nil, in which
// case attribute sets are always resolved from the database.
func NewProductClassUseCase(repo productclass.Repository, cache *cache.RedisClient, cacheTTL time.Duration, log logger.ZapLogger) productclass.UseCase {
	return &productClassUseCase{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

func (uc *productClassUseCase) CreateClass(ctx context.Context, input *dto.CreateClassInput) (*model.ProductClass, error) {
	now := time.Now()
	c := &model.ProductClass{
		BaseModel:        model.BaseModel{CreatedAt: now, UpdatedAt: now},
		Title:            input.Title,
		Slug:             input.Slug,
		RequiresShipping: boolOr(input.RequiresShipping, true),
		TracksStock:      boolOr(input.TracksStock, true),
		Abstract:         input.Abstract,
		Metadata:         model.Metadata(input.Metadata),
		Bases:            input.Bases,
	}

	err := uc.repo.MutateGraph(ctx, func(ctx context.Context, tx productclass.GraphTx) error {
		if err := checkBasesExist(ctx, tx, input.Bases); err != nil {
			return err
		}
		// The class has no id yet, so each base is checked as the only
		// base of an unsaved node.
		g := tx.Graph()
		for _, base := range input.Bases {
			if err := inheritance.ValidateRelation(g, base, ""); err != nil {
				return err
			}
		}

		c.ID = uuid.New().String()
		if err := tx.CreateClass(ctx, c); err != nil {
			return err
		}
		return tx.InsertRelations(ctx, relations(input.Bases, c.ID, now))
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("product class created", zap.String("id", c.ID), zap.Strings("bases", c.Bases))
	return c, nil
}

func (uc *productClassUseCase) GetClass(ctx context.Context, id string) (*model.ProductClass, error) {
	c, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("product class %s: %w", id, model.ErrNotFound)
	}
	return c, nil
}

func (uc *productClassUseCase) ListClasses(ctx context.Context, filters *dto.ClassFilters) ([]model.ProductClass, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *productClassUseCase) UpdateClass(ctx context.Context, input *dto.UpdateClassInput) (*model.ProductClass, error) {
	c, err := uc.GetClass(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	becomesAbstract := input.Abstract && !c.Abstract

	c.Title = input.Title
	c.Slug = input.Slug
	c.RequiresShipping = input.RequiresShipping
	c.TracksStock = input.TracksStock
	c.Abstract = input.Abstract
	c.Metadata = model.Metadata(input.Metadata)
	c.Bases = input.Bases
	c.UpdatedAt = time.Now()

	err = uc.repo.MutateGraph(ctx, func(ctx context.Context, tx productclass.GraphTx) error {
		if becomesAbstract {
			hasProducts, err := tx.LockProducts(ctx, c.ID)
			if err != nil {
				return err
			}
			if hasProducts {
				return &model.FieldError{Field: "abstract", Err: model.ErrAbstractClass}
			}
		}
		if err := checkBasesExist(ctx, tx, input.Bases); err != nil {
			return err
		}
		// The new base set replaces the old one, so validation runs
		// against the graph without the class's current bases.
		g := tx.Graph()
		g.RemoveBases(c.ID)
		for _, base := range input.Bases {
			if err := inheritance.ValidateRelation(g, base, c.ID); err != nil {
				return err
			}
			g.Add(base, c.ID)
		}

		if err := tx.UpdateClass(ctx, c); err != nil {
			return err
		}
		if err := tx.DeleteBases(ctx, c.ID); err != nil {
			return err
		}
		return tx.InsertRelations(ctx, relations(input.Bases, c.ID, c.UpdatedAt))
	})
	if err != nil {
		return nil, err
	}

	uc.bumpGeneration(ctx)
	return c, nil
}

func (uc *productClassUseCase) DeleteClass(ctx context.Context, id string) error {
	err := uc.repo.MutateGraph(ctx, func(ctx context.Context, tx productclass.GraphTx) error {
		return tx.DeleteClass(ctx, id)
	})
	if err != nil {
		return err
	}
	uc.bumpGeneration(ctx)
	uc.logger.Info("product class deleted", zap.String("id", id))
	return nil
}

func (uc *productClassUseCase) AddRelation(ctx context.Context, input *dto.RelationInput) error {
	err := uc.repo.MutateGraph(ctx, func(ctx context.Context, tx productclass.GraphTx) error {
		if err := checkBasesExist(ctx, tx, []string{input.BaseID, input.SubclassID}); err != nil {
			return err
		}
		if err := inheritance.ValidateRelation(tx.Graph(), input.BaseID, input.SubclassID); err != nil {
			return err
		}
		return tx.InsertRelations(ctx, relations([]string{input.BaseID}, input.SubclassID, time.Now()))
	})
	if err != nil {
		return err
	}
	uc.bumpGeneration(ctx)
	return nil
}

func (uc *productClassUseCase) RemoveRelation(ctx context.Context, input *dto.RelationInput) error {
	err := uc.repo.MutateGraph(ctx, func(ctx context.Context, tx productclass.GraphTx) error {
		removed, err := tx.DeleteRelation(ctx, input.BaseID, input.SubclassID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("relation %s -> %s: %w", input.BaseID, input.SubclassID, model.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.bumpGeneration(ctx)
	return nil
}

func (uc *productClassUseCase) GetAncestors(ctx context.Context, id string, includeSelf bool) ([]model.ProductClass, error) {
	ids, err := uc.lineage(ctx, id, includeSelf, inheritance.Ancestors)
	if err != nil {
		return nil, err
	}
	return uc.repo.FindByIDs(ctx, ids)
}

func (uc *productClassUseCase) GetDescendants(ctx context.Context, id string, includeSelf bool) ([]model.ProductClass, error) {
	ids, err := uc.DescendantIDs(ctx, id, includeSelf)
	if err != nil {
		return nil, err
	}
	return uc.repo.FindByIDs(ctx, ids)
}

func (uc *productClassUseCase) DescendantIDs(ctx context.Context, id string, includeSelf bool) ([]string, error) {
	return uc.lineage(ctx, id, includeSelf, inheritance.Descendants)
}

func (uc *productClassUseCase) lineage(ctx context.Context, id string, includeSelf bool,
	resolve func(inheritance.Graph, string, bool) inheritance.IDSet) ([]string, error) {
	if _, err := uc.GetClass(ctx, id); err != nil {
		return nil, err
	}
	g, err := uc.repo.LoadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return resolve(g, id, includeSelf).Slice(), nil
}

// GetAttributes returns the distinct attributes defined on the class or
// any of its ancestors, narrowed by filters.
func (uc *productClassUseCase) GetAttributes(ctx context.Context, id string, filters *dto.AttributeFilters) ([]model.ProductAttribute, error) {
	if filters == nil {
		filters = &dto.AttributeFilters{}
	}
	cacheKey := uc.attributesCacheKey(ctx, id, filters)
	if cacheKey != "" {
		if val, err := uc.cache.Client.Get(ctx, cacheKey).Bytes(); err == nil {
			var attrs []model.ProductAttribute
			if err := json.Unmarshal(val, &attrs); err == nil {
				attributeCacheRequests.WithLabelValues("hit").Inc()
				return attrs, nil
			}
		}
		attributeCacheRequests.WithLabelValues("miss").Inc()
	}

	ids, err := uc.lineage(ctx, id, true, inheritance.Ancestors)
	if err != nil {
		return nil, err
	}
	attrs, err := uc.repo.FindAttributes(ctx, ids, filters)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(attrs); err == nil {
			if err := uc.cache.Client.Set(ctx, cacheKey, data, uc.cacheTTL).Err(); err != nil {
				uc.logger.Warn("failed to cache class attributes", zap.String("class_id", id), zap.Error(err))
			}
		}
	}
	return attrs, nil
}

func (uc *productClassUseCase) VerifyGraph(ctx context.Context) ([]string, error) {
	g, err := uc.repo.LoadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return inheritance.FindCycle(g), nil
}

// attributesCacheKey returns "" when caching is off or the generation
// cannot be read.
func (uc *productClassUseCase) attributesCacheKey(ctx context.Context, id string, filters *dto.AttributeFilters) string {
	if uc.cache == nil {
		return ""
	}
	gen, err := uc.cache.Generation(ctx, productclass.AttributeGenerationKey)
	if err != nil {
		uc.logger.Warn("attribute cache unavailable", zap.Error(err))
		return ""
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("catalog:attrs:%d:%s:%x", gen, id, md5.Sum(data))
}

func (uc *productClassUseCase) bumpGeneration(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Bump(ctx, productclass.AttributeGenerationKey); err != nil {
		uc.logger.Error("failed to bump attribute cache generation", zap.Error(err))
	}
}

// checkBasesExist reports each unknown id as a field error on bases.
func checkBasesExist(ctx context.Context, tx productclass.GraphTx, ids []string) error {
	missing, err := tx.MissingClasses(ctx, ids)
	if err != nil {
		return err
	}
	var errs error
	for _, id := range missing {
		errs = multierr.Append(errs, &model.FieldError{
			Field: "bases",
			Err:   fmt.Errorf("product class %s: %w", id, model.ErrNotFound),
		})
	}
	return errs
}

func relations(bases []string, subclass string, at time.Time) []model.ProductClassRelation {
	out := make([]model.ProductClassRelation, 0, len(bases))
	for _, base := range bases {
		out = append(out, model.ProductClassRelation{
			ID:         uuid.New().String(),
			BaseID:     base,
			SubclassID: subclass,
			CreatedAt:  at,
		})
	}
	return out
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
