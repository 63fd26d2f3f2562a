package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/productclass"
	"github.com/zariny/ecommerce/internal/productclass/dto"
)

func newMock(t *testing.T) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM product_classes WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_LoadsBases(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM product_classes WHERE id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "requires_shipping", "tracks_stock", "abstract", "metadata", "created_at", "updated_at"}).
			AddRow("c1", "Books", "books", true, true, false, []byte(`{"shelf":"a"}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT base_id FROM product_class_relations WHERE subclass_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"base_id"}).AddRow("b1").AddRow("b2"))

	c, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "books", c.Slug)
	assert.Equal(t, model.Metadata{"shelf": "a"}, c.Metadata)
	assert.Equal(t, []string{"b1", "b2"}, c.Bases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateGraph_LocksAndCommits(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(graphLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT base_id, subclass_id FROM product_class_relations")).
		WillReturnRows(sqlmock.NewRows([]string{"base_id", "subclass_id"}).AddRow("a", "b"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM product_class_relations WHERE base_id = $1 AND subclass_id = $2")).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MutateGraph(context.Background(), func(ctx context.Context, tx productclass.GraphTx) error {
		assert.True(t, tx.Graph().Has("a", "b"))
		removed, err := tx.DeleteRelation(ctx, "a", "b")
		assert.True(t, removed)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateGraph_RollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	boom := errors.New("validation failed")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT base_id, subclass_id FROM product_class_relations")).
		WillReturnRows(sqlmock.NewRows([]string{"base_id", "subclass_id"}))
	mock.ExpectRollback()

	err := repo.MutateGraph(context.Background(), func(ctx context.Context, tx productclass.GraphTx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockProducts_InsideGraphTransaction(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT base_id, subclass_id FROM product_class_relations")).
		WillReturnRows(sqlmock.NewRows([]string{"base_id", "subclass_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM product_classes WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM products WHERE product_class_id = $1)")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.MutateGraph(context.Background(), func(ctx context.Context, tx productclass.GraphTx) error {
		hasProducts, err := tx.LockProducts(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, hasProducts)
		return &model.FieldError{Field: "abstract", Err: model.ErrAbstractClass}
	})
	assert.ErrorIs(t, err, model.ErrAbstractClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClass_UniqueViolation(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT base_id, subclass_id FROM product_class_relations")).
		WillReturnRows(sqlmock.NewRows([]string{"base_id", "subclass_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_classes")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.MutateGraph(context.Background(), func(ctx context.Context, tx productclass.GraphTx) error {
		return tx.CreateClass(ctx, &model.ProductClass{BaseModel: model.BaseModel{ID: "c1"}, Slug: "books"})
	})
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAttributes_Filters(t *testing.T) {
	repo, mock := newMock(t)
	required := true

	mock.ExpectQuery(regexp.QuoteMeta("a.required = $2 AND a.value_type = $3")).
		WithArgs(pq.Array([]string{"a", "b"}), true, "text").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "value_type", "required", "created_at", "updated_at"}).
			AddRow("x", "ISBN", "isbn", "text", true, time.Now(), time.Now()))

	attrs, err := repo.FindAttributes(context.Background(), []string{"a", "b"},
		&dto.AttributeFilters{Required: &required, ValueType: "text"})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "isbn", attrs[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}
