package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariny/ecommerce/internal/inheritance"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/productclass"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

type fakeRepo struct {
	classes     map[string]model.ProductClass
	edges       *inheritance.EdgeSet
	links       map[string][]model.ProductAttribute
	hasProducts map[string]bool
	locked      []string
	commits     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		classes:     map[string]model.ProductClass{},
		edges:       inheritance.NewEdgeSet(nil),
		links:       map[string][]model.ProductAttribute{},
		hasProducts: map[string]bool{},
	}
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*model.ProductClass, error) {
	c, ok := r.classes[id]
	if !ok {
		return nil, nil
	}
	c.Bases = r.edges.Bases(id)
	return &c, nil
}

func (r *fakeRepo) FindByIDs(ctx context.Context, ids []string) ([]model.ProductClass, error) {
	var out []model.ProductClass
	for _, id := range ids {
		if c, ok := r.classes[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *fakeRepo) FindAll(ctx context.Context, f *dto.ClassFilters) ([]model.ProductClass, int, error) {
	var out []model.ProductClass
	for _, c := range r.classes {
		if f.Abstract != nil && c.Abstract != *f.Abstract {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeRepo) FindAttributes(ctx context.Context, classIDs []string, f *dto.AttributeFilters) ([]model.ProductAttribute, error) {
	seen := map[string]bool{}
	var out []model.ProductAttribute
	for _, id := range classIDs {
		for _, a := range r.links[id] {
			if seen[a.ID] {
				continue
			}
			if f.Required != nil && a.Required != *f.Required {
				continue
			}
			if f.ValueType != "" && string(a.ValueType) != f.ValueType {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (r *fakeRepo) LoadGraph(ctx context.Context) (*inheritance.EdgeSet, error) {
	return inheritance.NewEdgeSet(r.edges.Edges()), nil
}

// MutateGraph stages writes on copies and swaps them in only when fn
// succeeds.
func (r *fakeRepo) MutateGraph(ctx context.Context, fn func(ctx context.Context, tx productclass.GraphTx) error) error {
	tx := &fakeTx{
		graph:       inheritance.NewEdgeSet(r.edges.Edges()),
		edges:       inheritance.NewEdgeSet(r.edges.Edges()),
		classes:     map[string]model.ProductClass{},
		hasProducts: r.hasProducts,
	}
	for id, c := range r.classes {
		tx.classes[id] = c
	}
	err := fn(ctx, tx)
	r.locked = append(r.locked, tx.locked...)
	if err != nil {
		return err
	}
	r.classes = tx.classes
	r.edges = tx.edges
	r.commits++
	return nil
}

type fakeTx struct {
	graph       *inheritance.EdgeSet
	edges       *inheritance.EdgeSet
	classes     map[string]model.ProductClass
	hasProducts map[string]bool
	locked      []string
}

func (t *fakeTx) LockProducts(ctx context.Context, id string) (bool, error) {
	t.locked = append(t.locked, id)
	return t.hasProducts[id], nil
}

func (t *fakeTx) Graph() *inheritance.EdgeSet { return t.graph }

func (t *fakeTx) MissingClasses(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := t.classes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *fakeTx) CreateClass(ctx context.Context, c *model.ProductClass) error {
	for _, other := range t.classes {
		if other.Slug == c.Slug {
			return model.ErrConflict
		}
	}
	t.classes[c.ID] = *c
	return nil
}

func (t *fakeTx) UpdateClass(ctx context.Context, c *model.ProductClass) error {
	if _, ok := t.classes[c.ID]; !ok {
		return model.ErrNotFound
	}
	t.classes[c.ID] = *c
	return nil
}

func (t *fakeTx) DeleteClass(ctx context.Context, id string) error {
	if _, ok := t.classes[id]; !ok {
		return model.ErrNotFound
	}
	delete(t.classes, id)
	t.edges.RemoveBases(id)
	for _, sub := range t.edges.Subclasses(id) {
		t.edges.Remove(id, sub)
	}
	return nil
}

func (t *fakeTx) InsertRelations(ctx context.Context, relations []model.ProductClassRelation) error {
	for _, rel := range relations {
		if t.edges.Has(rel.BaseID, rel.SubclassID) {
			return model.ErrConflict
		}
		t.edges.Add(rel.BaseID, rel.SubclassID)
	}
	return nil
}

func (t *fakeTx) DeleteRelation(ctx context.Context, baseID, subclassID string) (bool, error) {
	if !t.edges.Has(baseID, subclassID) {
		return false, nil
	}
	t.edges.Remove(baseID, subclassID)
	return true, nil
}

func (t *fakeTx) DeleteBases(ctx context.Context, subclassID string) error {
	t.edges.RemoveBases(subclassID)
	return nil
}

func newTestUseCase(repo *fakeRepo) productclass.UseCase {
	return NewProductClassUseCase(repo, nil, time.Minute, logger.NewNop())
}

func create(t *testing.T, uc productclass.UseCase, title string, bases ...string) *model.ProductClass {
	t.Helper()
	c, err := uc.CreateClass(context.Background(), &dto.CreateClassInput{Title: title, Slug: title, Bases: bases})
	require.NoError(t, err)
	return c
}

func titles(classes []model.ProductClass) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Title)
	}
	sort.Strings(out)
	return out
}

func TestCreateClass_WithBases(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	root := create(t, uc, "root")
	child := create(t, uc, "child", root.ID)

	assert.True(t, child.RequiresShipping)
	assert.True(t, child.TracksStock)
	assert.Equal(t, []string{root.ID}, repo.edges.Bases(child.ID))
}

func TestCreateClass_UnknownBase(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	_, err := uc.CreateClass(context.Background(), &dto.CreateClassInput{
		Title: "orphan", Slug: "orphan", Bases: []string{uuid.New().String()},
	})

	var fe *model.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bases", fe.Field)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, repo.classes, "failed create must not persist the class")
}

func TestAddRelation_RejectsCycle(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	a := create(t, uc, "a")
	b := create(t, uc, "b", a.ID)
	c := create(t, uc, "c", b.ID)

	err := uc.AddRelation(ctx, &dto.RelationInput{BaseID: c.ID, SubclassID: a.ID})
	var cycle *inheritance.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, 2, repo.edges.Len())

	err = uc.AddRelation(ctx, &dto.RelationInput{BaseID: b.ID, SubclassID: a.ID})
	var rel *inheritance.RelationError
	require.ErrorAs(t, err, &rel)
	assert.Equal(t, inheritance.RelationReverse, rel.Kind)

	err = uc.AddRelation(ctx, &dto.RelationInput{BaseID: a.ID, SubclassID: a.ID})
	assert.ErrorAs(t, err, &cycle)

	require.NoError(t, uc.AddRelation(ctx, &dto.RelationInput{BaseID: a.ID, SubclassID: c.ID}))
	assert.Empty(t, inheritance.FindCycle(repo.edges))
}

func TestUpdateClass_ReplacesBases(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	a := create(t, uc, "a")
	b := create(t, uc, "b", a.ID)
	c := create(t, uc, "c")

	// a cannot inherit from b while b inherits from a.
	_, err := uc.UpdateClass(ctx, &dto.UpdateClassInput{ID: a.ID, Title: "a", Slug: "a", Bases: []string{b.ID}})
	var rel *inheritance.RelationError
	require.ErrorAs(t, err, &rel)
	assert.Equal(t, inheritance.RelationReverse, rel.Kind)

	updated, err := uc.UpdateClass(ctx, &dto.UpdateClassInput{ID: b.ID, Title: "b", Slug: "b", Bases: []string{c.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, updated.Bases)
	assert.Equal(t, []string{c.ID}, repo.edges.Bases(b.ID))
	assert.Empty(t, repo.edges.Subclasses(a.ID))

	// With b no longer under a, a may now inherit from b.
	_, err = uc.UpdateClass(ctx, &dto.UpdateClassInput{ID: a.ID, Title: "a", Slug: "a", Bases: []string{b.ID}})
	require.NoError(t, err)
}

func TestUpdateClass_AbstractWithProducts(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	c := create(t, uc, "shirts")
	repo.hasProducts[c.ID] = true
	commits := repo.commits

	_, err := uc.UpdateClass(context.Background(), &dto.UpdateClassInput{ID: c.ID, Title: "shirts", Slug: "shirts", Abstract: true})
	assert.ErrorIs(t, err, model.ErrAbstractClass)
	assert.Equal(t, []string{c.ID}, repo.locked)
	assert.Equal(t, commits, repo.commits)
	assert.False(t, repo.classes[c.ID].Abstract)
}

func TestUpdateClass_ConcreteEditSkipsProductLock(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	c := create(t, uc, "shirts")
	repo.hasProducts[c.ID] = true

	_, err := uc.UpdateClass(context.Background(), &dto.UpdateClassInput{ID: c.ID, Title: "Shirts", Slug: "shirts"})
	require.NoError(t, err)
	assert.Empty(t, repo.locked)
}

func TestUpdateClass_NotFound(t *testing.T) {
	uc := newTestUseCase(newFakeRepo())
	_, err := uc.UpdateClass(context.Background(), &dto.UpdateClassInput{ID: uuid.New().String(), Title: "x", Slug: "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoveRelation(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	a := create(t, uc, "a")
	b := create(t, uc, "b", a.ID)

	require.NoError(t, uc.RemoveRelation(ctx, &dto.RelationInput{BaseID: a.ID, SubclassID: b.ID}))
	assert.Equal(t, 0, repo.edges.Len())
	assert.ErrorIs(t, uc.RemoveRelation(ctx, &dto.RelationInput{BaseID: a.ID, SubclassID: b.ID}), model.ErrNotFound)
}

func TestLineage_Diamond(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	r := create(t, uc, "r")
	a := create(t, uc, "a", r.ID)
	b := create(t, uc, "b", r.ID)
	c := create(t, uc, "c", a.ID, b.ID)

	ancestors, err := uc.GetAncestors(ctx, c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "r"}, titles(ancestors))

	descendants, err := uc.GetDescendants(ctx, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, titles(descendants))

	_, err = uc.GetAncestors(ctx, uuid.New().String(), true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetAttributes_InheritedAndFiltered(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	r := create(t, uc, "r")
	a := create(t, uc, "a", r.ID)
	b := create(t, uc, "b", r.ID)
	c := create(t, uc, "c", a.ID, b.ID)
	other := create(t, uc, "other")

	weight := model.ProductAttribute{BaseModel: model.BaseModel{ID: "w"}, Slug: "weight", ValueType: "integer", Required: true}
	colour := model.ProductAttribute{BaseModel: model.BaseModel{ID: "c"}, Slug: "colour", ValueType: "text"}
	isbn := model.ProductAttribute{BaseModel: model.BaseModel{ID: "i"}, Slug: "isbn", ValueType: "text", Required: true}
	repo.links[r.ID] = []model.ProductAttribute{weight}
	repo.links[a.ID] = []model.ProductAttribute{colour}
	repo.links[b.ID] = []model.ProductAttribute{colour}
	repo.links[other.ID] = []model.ProductAttribute{isbn}

	attrs, err := uc.GetAttributes(ctx, c.ID, nil)
	require.NoError(t, err)
	require.Len(t, attrs, 2, "colour reached through both bases appears once")
	assert.Equal(t, "colour", attrs[0].Slug)
	assert.Equal(t, "weight", attrs[1].Slug)

	required := true
	attrs, err = uc.GetAttributes(ctx, c.ID, &dto.AttributeFilters{Required: &required})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "weight", attrs[0].Slug)

	attrs, err = uc.GetAttributes(ctx, c.ID, &dto.AttributeFilters{ValueType: "text"})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "colour", attrs[0].Slug)
}

func TestDeleteClass(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)
	ctx := context.Background()

	a := create(t, uc, "a")
	b := create(t, uc, "b", a.ID)

	require.NoError(t, uc.DeleteClass(ctx, a.ID))
	assert.Empty(t, repo.edges.Bases(b.ID))
	assert.ErrorIs(t, uc.DeleteClass(ctx, a.ID), model.ErrNotFound)
}

func TestVerifyGraph(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	a := create(t, uc, "a")
	b := create(t, uc, "b", a.ID)

	cycle, err := uc.VerifyGraph(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cycle)

	// Simulate a cycle written outside the service.
	repo.edges.Add(b.ID, a.ID)
	cycle, err = uc.VerifyGraph(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cycle)
}

func TestCreateClass_SlugConflictRollsBack(t *testing.T) {
	repo := newFakeRepo()
	uc := newTestUseCase(repo)

	create(t, uc, "dup")
	commits := repo.commits
	_, err := uc.CreateClass(context.Background(), &dto.CreateClassInput{Title: "dup", Slug: "dup"})
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Equal(t, commits, repo.commits)
}
