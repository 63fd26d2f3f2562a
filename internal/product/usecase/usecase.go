package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/cache"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/search"
	"github.com/zariny/ecommerce/internal/product"
	"github.com/zariny/ecommerce/internal/product/dto"
)

const (
	listCachePrefix = "catalog:products:list:"
	backgroundWait  = 10 * time.Second
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"product_class_id": { "type": "keyword" },
			"title": { "type": "text" },
			"slug": { "type": "keyword" },
			"description": { "type": "text" },
			"is_public": { "type": "boolean" },
			"attributes": { "type": "object", "dynamic": true },
			"created_at": { "type": "date" },
			"updated_at": { "type": "date" }
		}
	}
}`

// Settings holds the tunables of the product use case.
type Settings struct {
	CacheTTL    time.Duration
	SearchIndex string
}

type productUseCase struct {
	repo      product.Repository
	classes   product.ClassResolver
	cache     *cache.RedisClient
	es        *search.Client
	publisher product.Publisher
	settings  Settings
	logger    logger.ZapLogger
}

// NewProductUseCase wires the product use case. cache, es and publisher
// are optional and may be nil.
func NewProductUseCase(repo product.Repository, classes product.ClassResolver, cache *cache.RedisClient,
	es *search.Client, publisher product.Publisher, settings Settings, log logger.ZapLogger) product.UseCase {
	if settings.SearchIndex == "" {
		settings.SearchIndex = "products"
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = 5 * time.Minute
	}
	return &productUseCase{
		repo:      repo,
		classes:   classes,
		cache:     cache,
		es:        es,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*dto.ProductDetail, error) {
	class, err := uc.concreteClass(ctx, input.ProductClassID)
	if err != nil {
		return nil, err
	}
	allowed, err := uc.allowedAttributes(ctx, class.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Product{
		BaseModel:      model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ProductClassID: class.ID,
		Title:          input.Title,
		Slug:           input.Slug,
		Description:    optional(input.Description),
		IsPublic:       input.IsPublic == nil || *input.IsPublic,
	}

	// Null values are treated as absent on create.
	values := make(map[string]any, len(input.Attributes))
	for slug, v := range input.Attributes {
		if v != nil {
			values[slug] = v
		}
	}
	errs := uc.stage(p, allowed, values)
	for _, attr := range sortedAttributes(allowed) {
		if _, ok := values[attr.Slug]; attr.Required && !ok {
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + attr.Slug, Err: product.ErrAttributeRequired})
		}
	}
	if errs != nil {
		return nil, errs
	}

	err = uc.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.repo.Create(ctx, p); err != nil {
			return err
		}
		return p.Attr(uc.repo).Save(ctx)
	})
	if err != nil {
		return nil, err
	}

	detail, err := uc.detail(ctx, p)
	if err != nil {
		return nil, err
	}
	uc.afterWrite("product.created", detail)
	uc.logger.Info("product created", zap.String("id", p.ID), zap.String("product_class_id", p.ProductClassID))
	return detail, nil
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*dto.ProductDetail, error) {
	p, err := uc.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.detail(ctx, p)
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	attrFilters, err := product.ParseAttributeFilters(filters.Attributes)
	if err != nil {
		return nil, 0, err
	}

	filters.ProductClassIDs = nil
	if filters.ProductClassID != "" {
		if _, err := uc.classes.GetClass(ctx, filters.ProductClassID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, 0, &model.FieldError{Field: "product_class_id", Err: err}
			}
			return nil, 0, err
		}
		if err := uc.checkFilterable(ctx, filters.ProductClassID, attrFilters); err != nil {
			return nil, 0, err
		}
		filters.ProductClassIDs = []string{filters.ProductClassID}
		if filters.IncludeSubclasses {
			ids, err := uc.classes.DescendantIDs(ctx, filters.ProductClassID, true)
			if err != nil {
				return nil, 0, err
			}
			filters.ProductClassIDs = ids
		}
	}

	cacheKey := uc.listCacheKey(filters)
	if cacheKey != "" {
		if val, err := uc.cache.Client.Get(ctx, cacheKey).Bytes(); err == nil {
			var result listResult
			if err := json.Unmarshal(val, &result); err == nil {
				return result.Products, result.Count, nil
			}
		}
	}

	if filters.SearchQuery != "" && len(attrFilters) == 0 && uc.es != nil {
		products, count, err := uc.search(ctx, filters)
		if err == nil {
			return products, count, nil
		}
		uc.logger.Warn("search failed, falling back to database", zap.Error(err))
	}

	products, count, err := uc.repo.FindAll(ctx, filters, attrFilters)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(listResult{Products: products, Count: count}); err == nil {
			if err := uc.cache.Client.Set(ctx, cacheKey, data, uc.settings.CacheTTL).Err(); err != nil {
				uc.logger.Warn("failed to cache product list", zap.Error(err))
			}
		}
	}
	return products, count, nil
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*dto.ProductDetail, error) {
	p, err := uc.find(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	p.Title = input.Title
	p.Slug = input.Slug
	p.Description = optional(input.Description)
	p.IsPublic = input.IsPublic
	p.UpdatedAt = time.Now()

	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	detail, err := uc.detail(ctx, p)
	if err != nil {
		return nil, err
	}
	uc.afterWrite("product.updated", detail)
	return detail, nil
}

// SetAttributes writes the given values and removes those set to null.
// Attributes not named in the input keep their stored values.
func (uc *productUseCase) SetAttributes(ctx context.Context, input *dto.SetAttributesInput) (*dto.ProductDetail, error) {
	p, err := uc.find(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	allowed, err := uc.allowedAttributes(ctx, p.ProductClassID)
	if err != nil {
		return nil, err
	}

	attr := p.Attr(uc.repo)
	values := make(map[string]any, len(input.Attributes))
	var errs error
	for slug, v := range input.Attributes {
		if v != nil {
			values[slug] = v
			continue
		}
		a, ok := allowed[slug]
		switch {
		case !ok:
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + slug, Err: product.ErrAttributeNotAllowed})
		case a.Required:
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + slug, Err: product.ErrAttributeRequired})
		default:
			attr.Unset(a)
		}
	}
	errs = multierr.Append(errs, uc.stage(p, allowed, values))
	if errs != nil {
		return nil, errs
	}

	p.UpdatedAt = time.Now()
	err = uc.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := attr.Save(ctx); err != nil {
			return err
		}
		return uc.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	detail, err := uc.detail(ctx, p)
	if err != nil {
		return nil, err
	}
	uc.afterWrite("product.updated", detail)
	return detail, nil
}

func (uc *productUseCase) DeleteProduct(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("product %s: %w", id, model.ErrNotFound)
		}
		return err
	}

	if uc.cache != nil {
		go uc.invalidateListCache(context.Background())
	}
	if uc.es != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundWait)
			defer cancel()
			if err := uc.es.Delete(ctx, uc.settings.SearchIndex, id); err != nil {
				uc.logger.Error("failed to delete product from search index", zap.String("id", id), zap.Error(err))
			}
		}()
	}
	if uc.publisher != nil {
		go uc.publish(context.Background(), "product.deleted", id, nil)
	}
	uc.logger.Info("product deleted", zap.String("id", id))
	return nil
}

func (uc *productUseCase) find(ctx context.Context, id string) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

// concreteClass loads the class a product is created in. Abstract classes
// cannot hold products.
func (uc *productUseCase) concreteClass(ctx context.Context, id string) (*model.ProductClass, error) {
	class, err := uc.classes.GetClass(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &model.FieldError{Field: "product_class_id", Err: err}
		}
		return nil, err
	}
	if class.Abstract {
		return nil, &model.FieldError{Field: "product_class_id", Err: model.ErrAbstractClass}
	}
	return class, nil
}

// allowedAttributes returns the attributes of the class and its ancestors
// keyed by slug.
func (uc *productUseCase) allowedAttributes(ctx context.Context, classID string) (map[string]model.ProductAttribute, error) {
	attrs, err := uc.classes.GetAttributes(ctx, classID, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.ProductAttribute, len(attrs))
	for _, a := range attrs {
		out[a.Slug] = a
	}
	return out, nil
}

// stage cleans and buffers each value, reporting every rejected slug.
func (uc *productUseCase) stage(p *model.Product, allowed map[string]model.ProductAttribute, values map[string]any) error {
	slugs := make([]string, 0, len(values))
	for slug := range values {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var errs error
	container := p.Attr(uc.repo)
	for _, slug := range slugs {
		a, ok := allowed[slug]
		if !ok {
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + slug, Err: product.ErrAttributeNotAllowed})
			continue
		}
		if err := container.Set(a, values[slug]); err != nil {
			var fe *model.FieldError
			if errors.As(err, &fe) {
				err = fe.Err
			}
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + slug, Err: err})
		}
	}
	return errs
}

func (uc *productUseCase) checkFilterable(ctx context.Context, classID string, filters []product.AttributeFilter) error {
	if len(filters) == 0 {
		return nil
	}
	allowed, err := uc.allowedAttributes(ctx, classID)
	if err != nil {
		return err
	}
	var errs error
	for _, f := range filters {
		if _, ok := allowed[f.Slug]; !ok {
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + f.Slug, Err: product.ErrAttributeNotAllowed})
		}
	}
	return errs
}

func (uc *productUseCase) detail(ctx context.Context, p *model.Product) (*dto.ProductDetail, error) {
	values, err := p.Attr(uc.repo).All(ctx)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]any, len(values))
	for _, v := range values {
		attrs[v.Slug] = v.Value.Interface()
	}
	return &dto.ProductDetail{Product: p, Attributes: attrs}, nil
}

type listResult struct {
	Products []model.Product `json:"products"`
	Count    int             `json:"count"`
}

func (uc *productUseCase) listCacheKey(filters *dto.ProductFilters) string {
	if uc.cache == nil {
		return ""
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s%x", listCachePrefix, md5.Sum(data))
}

func (uc *productUseCase) invalidateListCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, backgroundWait)
	defer cancel()
	if err := uc.cache.DeletePattern(ctx, listCachePrefix+"*"); err != nil {
		uc.logger.Warn("failed to invalidate product list cache", zap.Error(err))
	}
}

func (uc *productUseCase) search(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	must := []map[string]any{
		{
			"multi_match": map[string]any{
				"query":  filters.SearchQuery,
				"fields": []string{"title^3", "slug", "description"},
			},
		},
	}
	var filter []map[string]any
	if len(filters.ProductClassIDs) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"product_class_id": filters.ProductClassIDs}})
	}
	if filters.IsPublic != nil {
		filter = append(filter, map[string]any{"term": map[string]any{"is_public": *filters.IsPublic}})
	}

	q := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must, "filter": filter},
		},
		"track_total_hits": true,
	}
	if filters.PageSize > 0 {
		page := max(filters.Page, 1)
		q["from"] = (page - 1) * filters.PageSize
		q["size"] = filters.PageSize
	}

	res, err := uc.es.Search(ctx, uc.settings.SearchIndex, q)
	if err != nil {
		return nil, 0, err
	}
	products := make([]model.Product, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var p model.Product
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			uc.logger.Warn("skipping malformed search hit", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, res.Hits.Total.Value, nil
}

// afterWrite refreshes derived state in the background: the list cache,
// the search index and the event stream.
func (uc *productUseCase) afterWrite(event string, detail *dto.ProductDetail) {
	if uc.cache != nil {
		go uc.invalidateListCache(context.Background())
	}
	if uc.es != nil {
		go uc.syncToElastic(context.Background(), detail)
	}
	if uc.publisher != nil {
		go uc.publish(context.Background(), event, detail.ID, detail)
	}
}

func (uc *productUseCase) syncToElastic(ctx context.Context, detail *dto.ProductDetail) {
	ctx, cancel := context.WithTimeout(ctx, backgroundWait)
	defer cancel()
	if err := uc.es.CreateIndex(ctx, uc.settings.SearchIndex, indexMapping); err != nil {
		uc.logger.Warn("failed to ensure search index", zap.Error(err))
	}
	if err := uc.es.Index(ctx, uc.settings.SearchIndex, detail.ID, detail); err != nil {
		uc.logger.Error("failed to index product", zap.String("id", detail.ID), zap.Error(err))
	}
}

type catalogEvent struct {
	Type       string             `json:"type"`
	ProductID  string             `json:"product_id"`
	Product    *dto.ProductDetail `json:"product,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func (uc *productUseCase) publish(ctx context.Context, event, productID string, detail *dto.ProductDetail) {
	ctx, cancel := context.WithTimeout(ctx, backgroundWait)
	defer cancel()
	data, err := json.Marshal(catalogEvent{Type: event, ProductID: productID, Product: detail, OccurredAt: time.Now().UTC()})
	if err != nil {
		uc.logger.Error("failed to encode catalog event", zap.Error(err))
		return
	}
	if err := uc.publisher.Publish(ctx, productID, data); err != nil {
		uc.logger.Error("failed to publish catalog event", zap.String("type", event), zap.Error(err))
	}
}

func sortedAttributes(attrs map[string]model.ProductAttribute) []model.ProductAttribute {
	out := make([]model.ProductAttribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
