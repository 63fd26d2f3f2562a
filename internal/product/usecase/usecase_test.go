package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/zariny/ecommerce/internal/dynvalue"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/product"
	"github.com/zariny/ecommerce/internal/product/dto"
	classdto "github.com/zariny/ecommerce/internal/productclass/dto"
)

type fakeRepo struct {
	products map[string]model.Product
	values   []model.ProductAttributeValue
	saveErr   error
	updateErr error
	deleted   []string
	rollbacks int
	lastList  *dto.ProductFilters
	lastAttr  []product.AttributeFilter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: map[string]model.Product{}}
}

func (r *fakeRepo) Create(ctx context.Context, p *model.Product) error {
	for _, existing := range r.products {
		if existing.Slug == p.Slug {
			return fmt.Errorf("product: %w", model.ErrConflict)
		}
	}
	r.products[p.ID] = *p
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeRepo) FindAll(ctx context.Context, f *dto.ProductFilters, attrs []product.AttributeFilter) ([]model.Product, int, error) {
	r.lastList = f
	r.lastAttr = attrs
	var out []model.Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Update(ctx context.Context, p *model.Product) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.products[p.ID]; !ok {
		return model.ErrNotFound
	}
	r.products[p.ID] = *p
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.products[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.products, id)
	r.deleted = append(r.deleted, id)
	return nil
}

// WithinTx restores products and values when fn fails.
func (r *fakeRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	products := make(map[string]model.Product, len(r.products))
	for id, p := range r.products {
		products[id] = p
	}
	values := append([]model.ProductAttributeValue(nil), r.values...)
	if err := fn(ctx); err != nil {
		r.products = products
		r.values = values
		r.rollbacks++
		return err
	}
	return nil
}

func (r *fakeRepo) AttributeValues(productID string) model.AttributeValueIterator {
	var rows []model.ProductAttributeValue
	for _, v := range r.values {
		if v.ProductID == productID {
			rows = append(rows, v)
		}
	}
	return &sliceIterator{rows: rows}
}

func (r *fakeRepo) SaveAttributeValues(ctx context.Context, productID string, changes *model.AttributeChanges) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	drop := map[string]bool{}
	for _, id := range changes.Delete {
		drop[id] = true
	}
	updated := map[string]model.ProductAttributeValue{}
	for _, v := range changes.Update {
		updated[v.ID] = v
	}
	var kept []model.ProductAttributeValue
	for _, v := range r.values {
		if drop[v.ID] {
			continue
		}
		if u, ok := updated[v.ID]; ok {
			v.Value = u.Value
		}
		kept = append(kept, v)
	}
	r.values = append(kept, changes.Create...)
	return nil
}

type sliceIterator struct {
	rows []model.ProductAttributeValue
	pos  int
}

func (it *sliceIterator) Next(ctx context.Context) (model.ProductAttributeValue, bool, error) {
	if it.pos >= len(it.rows) {
		return model.ProductAttributeValue{}, false, nil
	}
	it.pos++
	return it.rows[it.pos-1], true, nil
}

func (it *sliceIterator) Close() error { return nil }

type fakeClasses struct {
	classes     map[string]model.ProductClass
	attributes  map[string][]model.ProductAttribute
	descendants map[string][]string
}

func (c *fakeClasses) GetClass(ctx context.Context, id string) (*model.ProductClass, error) {
	class, ok := c.classes[id]
	if !ok {
		return nil, fmt.Errorf("product class %s: %w", id, model.ErrNotFound)
	}
	return &class, nil
}

func (c *fakeClasses) GetAttributes(ctx context.Context, id string, filters *classdto.AttributeFilters) ([]model.ProductAttribute, error) {
	return c.attributes[id], nil
}

func (c *fakeClasses) DescendantIDs(ctx context.Context, id string, includeSelf bool) ([]string, error) {
	return c.descendants[id], nil
}

func attribute(id, slug string, t dynvalue.Type, required bool) model.ProductAttribute {
	return model.ProductAttribute{BaseModel: model.BaseModel{ID: id}, Name: slug, Slug: slug, ValueType: t, Required: required}
}

func setup() (*fakeRepo, *fakeClasses, product.UseCase) {
	repo := newFakeRepo()
	isbn := attribute("a-isbn", "isbn", dynvalue.Text, true)
	pages := attribute("a-pages", "pages", dynvalue.Integer, false)
	published := attribute("a-published", "published", dynvalue.Date, false)
	classes := &fakeClasses{
		classes: map[string]model.ProductClass{
			"media": {BaseModel: model.BaseModel{ID: "media"}, Title: "Media", Abstract: true},
			"books": {BaseModel: model.BaseModel{ID: "books"}, Title: "Books"},
		},
		attributes: map[string][]model.ProductAttribute{
			"books": {isbn, pages, published},
		},
		descendants: map[string][]string{
			"books": {"books", "ebooks"},
		},
	}
	uc := NewProductUseCase(repo, classes, nil, nil, nil, Settings{}, logger.NewNop())
	return repo, classes, uc
}

func fieldErrors(t *testing.T, err error) map[string]error {
	t.Helper()
	out := map[string]error{}
	for _, e := range multierr.Errors(err) {
		var fe *model.FieldError
		require.True(t, errors.As(e, &fe), "unexpected error %v", e)
		out[fe.Field] = fe.Err
	}
	return out
}

func createBook(t *testing.T, uc product.UseCase, attrs map[string]any) *dto.ProductDetail {
	t.Helper()
	p, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{
		ProductClassID: "books",
		Title:          "Dune",
		Slug:           "dune",
		Attributes:     attrs,
	})
	require.NoError(t, err)
	return p
}

func TestCreateProduct(t *testing.T) {
	repo, _, uc := setup()

	p := createBook(t, uc, map[string]any{
		"isbn":      "978-0441013593",
		"pages":     json.Number("412"),
		"published": nil,
	})

	assert.NotEmpty(t, p.ID)
	assert.True(t, p.IsPublic)
	assert.Equal(t, map[string]any{"isbn": "978-0441013593", "pages": int64(412)}, p.Attributes)
	assert.Len(t, repo.values, 2)
}

func TestCreateProduct_RejectsAbstractClass(t *testing.T) {
	_, _, uc := setup()

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{ProductClassID: "media", Title: "x", Slug: "x"})
	errs := fieldErrors(t, err)
	assert.ErrorIs(t, errs["product_class_id"], model.ErrAbstractClass)
}

func TestCreateProduct_UnknownClass(t *testing.T) {
	_, _, uc := setup()

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{ProductClassID: "games", Title: "x", Slug: "x"})
	errs := fieldErrors(t, err)
	assert.ErrorIs(t, errs["product_class_id"], model.ErrNotFound)
}

func TestCreateProduct_ReportsEveryAttributeError(t *testing.T) {
	repo, _, uc := setup()

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{
		ProductClassID: "books",
		Title:          "Dune",
		Slug:           "dune",
		Attributes: map[string]any{
			"pages":  "many",
			"colour": "red",
		},
	})
	errs := fieldErrors(t, err)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs["attributes.colour"], product.ErrAttributeNotAllowed)
	assert.ErrorIs(t, errs["attributes.isbn"], product.ErrAttributeRequired)
	var verr *dynvalue.ValidationError
	assert.ErrorAs(t, errs["attributes.pages"], &verr)
	assert.Empty(t, repo.products)
}

func TestCreateProduct_RollsBackWhenValuesFail(t *testing.T) {
	repo, _, uc := setup()
	repo.saveErr = errors.New("connection reset")

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{
		ProductClassID: "books",
		Title:          "Dune",
		Slug:           "dune",
		Attributes:     map[string]any{"isbn": "1"},
	})
	assert.EqualError(t, err, "connection reset")
	assert.Empty(t, repo.products)
	assert.Empty(t, repo.deleted)
	assert.Equal(t, 1, repo.rollbacks)
}

func TestSetAttributes_RollsBackWhenUpdateFails(t *testing.T) {
	repo, _, uc := setup()
	p := createBook(t, uc, map[string]any{"isbn": "1", "pages": json.Number("412")})
	repo.updateErr = errors.New("connection reset")

	_, err := uc.SetAttributes(context.Background(), &dto.SetAttributesInput{
		ID:         p.ID,
		Attributes: map[string]any{"pages": json.Number("896")},
	})
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 1, repo.rollbacks)
	pages := map[string]int64{}
	for _, v := range repo.values {
		if n, ok := v.Value.Int(); ok {
			pages[v.Slug] = n
		}
	}
	assert.Equal(t, map[string]int64{"pages": 412}, pages)
}

func TestGetProduct_NotFound(t *testing.T) {
	_, _, uc := setup()

	_, err := uc.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetAttributes(t *testing.T) {
	repo, _, uc := setup()
	p := createBook(t, uc, map[string]any{"isbn": "1", "pages": json.Number("412"), "published": "1965-08-01"})

	got, err := uc.SetAttributes(context.Background(), &dto.SetAttributesInput{
		ID:         p.ID,
		Attributes: map[string]any{"pages": json.Number("896"), "published": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isbn": "1", "pages": int64(896)}, got.Attributes)

	slugs := []string{}
	for _, v := range repo.values {
		slugs = append(slugs, v.Slug)
	}
	sort.Strings(slugs)
	assert.Equal(t, []string{"isbn", "pages"}, slugs)
}

func TestSetAttributes_RequiredCannotBeRemoved(t *testing.T) {
	repo, _, uc := setup()
	p := createBook(t, uc, map[string]any{"isbn": "1"})

	_, err := uc.SetAttributes(context.Background(), &dto.SetAttributesInput{
		ID:         p.ID,
		Attributes: map[string]any{"isbn": nil, "pages": json.Number("10")},
	})
	errs := fieldErrors(t, err)
	assert.ErrorIs(t, errs["attributes.isbn"], product.ErrAttributeRequired)
	assert.Len(t, repo.values, 1)
}

func TestUpdateProduct(t *testing.T) {
	repo, _, uc := setup()
	p := createBook(t, uc, map[string]any{"isbn": "1"})

	got, err := uc.UpdateProduct(context.Background(), &dto.UpdateProductInput{
		ID:          p.ID,
		Title:       "Dune (Deluxe)",
		Slug:        "dune-deluxe",
		Description: "Hardcover",
		IsPublic:    false,
	})
	require.NoError(t, err)
	assert.Equal(t, "dune-deluxe", got.Slug)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Hardcover", *got.Description)
	assert.False(t, repo.products[p.ID].IsPublic)
	assert.Equal(t, map[string]any{"isbn": "1"}, got.Attributes)
}

func TestListProducts_IncludeSubclasses(t *testing.T) {
	repo, _, uc := setup()

	_, _, err := uc.ListProducts(context.Background(), &dto.ProductFilters{
		ProductClassID:    "books",
		IncludeSubclasses: true,
		Attributes:        map[string]any{"pages__gte": json.Number("300")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "ebooks"}, repo.lastList.ProductClassIDs)
	require.Len(t, repo.lastAttr, 1)
	assert.Equal(t, product.LookupGte, repo.lastAttr[0].Lookup)
}

func TestListProducts_RejectsUnknownFilterAttribute(t *testing.T) {
	_, _, uc := setup()

	_, _, err := uc.ListProducts(context.Background(), &dto.ProductFilters{
		ProductClassID: "books",
		Attributes:     map[string]any{"colour": "red"},
	})
	errs := fieldErrors(t, err)
	assert.ErrorIs(t, errs["attributes.colour"], product.ErrAttributeNotAllowed)
}

func TestDeleteProduct(t *testing.T) {
	repo, _, uc := setup()
	p := createBook(t, uc, map[string]any{"isbn": "1"})

	require.NoError(t, uc.DeleteProduct(context.Background(), p.ID))
	assert.Empty(t, repo.products)

	err := uc.DeleteProduct(context.Background(), p.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
