package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zariny/ecommerce/internal/dynvalue"
	"github.com/zariny/ecommerce/internal/model"
	"github.com/zariny/ecommerce/internal/product"
	"github.com/zariny/ecommerce/internal/product/dto"
)

func newMock(t *testing.T, batchSize int) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGRepository(sqlx.NewDb(db, "postgres"), batchSize), mock
}

var valueColumns = []string{"id", "product_id", "attribute_id", "value", "slug", "value_type"}

func textValue(t *testing.T, s string) dynvalue.Value {
	t.Helper()
	v, err := dynvalue.Clean(dynvalue.Text, s)
	require.NoError(t, err)
	return v
}

func TestAttributeValues_PagesByID(t *testing.T) {
	repo, mock := newMock(t, 2)
	query := regexp.QuoteMeta("WHERE v.product_id = $1 AND v.id > $2::uuid")

	mock.ExpectQuery(query).
		WithArgs("p1", zeroUUID, 2).
		WillReturnRows(sqlmock.NewRows(valueColumns).
			AddRow("v1", "p1", "a1", []byte(`{"datatype":"text","value":"Dune"}`), "title", "text").
			AddRow("v2", "p1", "a2", []byte(`{"datatype":"integer","value":412}`), "pages", "integer"))
	mock.ExpectQuery(query).
		WithArgs("p1", "v2", 2).
		WillReturnRows(sqlmock.NewRows(valueColumns).
			AddRow("v3", "p1", "a3", []byte(`{"datatype":"date","value":"1965-08-01"}`), "published", "date"))

	it := repo.AttributeValues("p1")
	defer it.Close()

	var slugs []string
	for {
		v, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		slugs = append(slugs, v.Slug)
		if v.Slug == "pages" {
			n, _ := v.Value.Int()
			assert.Equal(t, int64(412), n)
		}
	}
	assert.Equal(t, []string{"title", "pages", "published"}, slugs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeValues_Closed(t *testing.T) {
	repo, _ := newMock(t, 10)
	it := repo.AttributeValues("p1")
	require.NoError(t, it.Close())

	_, ok, err := it.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, errIteratorClosed)
}

func TestSaveAttributeValues_Batches(t *testing.T) {
	repo, mock := newMock(t, 2)

	changes := &model.AttributeChanges{
		Update: []model.ProductAttributeValue{
			{ID: "v1", ProductID: "p1", AttributeID: "a1", Slug: "title", Value: textValue(t, "Dune Messiah")},
		},
		Create: []model.ProductAttributeValue{
			{ID: "v4", ProductID: "p1", AttributeID: "a4", Value: textValue(t, "x")},
			{ID: "v5", ProductID: "p1", AttributeID: "a5", Value: textValue(t, "y")},
			{ID: "v6", ProductID: "p1", AttributeID: "a6", Value: textValue(t, "z")},
		},
		Delete: []string{"v2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("FROM unnest($1::uuid[], $2::jsonb[])")).
		WithArgs(pq.Array([]string{"v1"}), pq.Array([]string{`{"datatype":"text","value":"Dune Messiah"}`}), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_attribute_values")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_attribute_values")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM product_attribute_values WHERE product_id = $1 AND id = ANY($2::uuid[])")).
		WithArgs("p1", pq.Array([]string{"v2"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveAttributeValues(context.Background(), "p1", changes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAttributeValues_RollsBackOnUniqueViolation(t *testing.T) {
	repo, mock := newMock(t, 10)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_attribute_values")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.SaveAttributeValues(context.Background(), "p1", &model.AttributeChanges{
		Create: []model.ProductAttributeValue{{ID: "v1", ProductID: "p1", AttributeID: "a1", Value: textValue(t, "x")}},
	})
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAttributeValues_EmptyIsNoop(t *testing.T) {
	repo, mock := newMock(t, 10)
	require.NoError(t, repo.SaveAttributeValues(context.Background(), "p1", &model.AttributeChanges{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_ProductAndValuesShareTransaction(t *testing.T) {
	repo, mock := newMock(t, 10)
	p := &model.Product{BaseModel: model.BaseModel{ID: "p1"}, ProductClassID: "c1", Title: "Dune", Slug: "dune"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_attribute_values")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		return repo.SaveAttributeValues(ctx, p.ID, &model.AttributeChanges{
			Create: []model.ProductAttributeValue{{ID: "v1", ProductID: "p1", AttributeID: "a1", Value: textValue(t, "x")}},
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_ValueFailureRollsBackProduct(t *testing.T) {
	repo, mock := newMock(t, 10)
	p := &model.Product{BaseModel: model.BaseModel{ID: "p1"}, ProductClassID: "c1", Title: "Dune", Slug: "dune"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_attribute_values")).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		return repo.SaveAttributeValues(ctx, p.ID, &model.AttributeChanges{
			Create: []model.ProductAttributeValue{{ID: "v1", ProductID: "p1", AttributeID: "gone", Value: textValue(t, "x")}},
		})
	})
	var fieldErr *model.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "attributes", fieldErr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_AbstractClassInsertsNothing(t *testing.T) {
	repo, mock := newMock(t, 10)

	mock.ExpectExec(regexp.QuoteMeta("AND NOT abstract")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &model.Product{BaseModel: model.BaseModel{ID: "p1"}, ProductClassID: "media", Slug: "dune"})
	assert.ErrorIs(t, err, model.ErrAbstractClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMock(t, 10)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFindAll_AttributeFilters(t *testing.T) {
	repo, mock := newMock(t, 10)
	now := time.Now()

	filters := &dto.ProductFilters{ProductClassIDs: []string{"c1", "c2"}, PageSize: 10, Page: 1}
	attrs := []product.AttributeFilter{
		{Slug: "colour", Lookup: product.LookupExact, Value: "red"},
		{Slug: "pages", Lookup: product.LookupGte, Value: json.Number("300")},
	}

	args := []driver.Value{pq.Array([]string{"c1", "c2"}), "colour", `"red"`, "pages", "300"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM products WHERE product_class_id = ANY(CAST($1 AS uuid[]))")).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("CAST(v.value->>'value' AS numeric) >= CAST($5 AS numeric)")).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_class_id", "title", "slug", "description", "is_public", "created_at", "updated_at"}).
			AddRow("p1", "c1", "Dune", "dune", nil, true, now, now))

	products, count, err := repo.FindAll(context.Background(), filters, attrs)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, products, 1)
	assert.Equal(t, "dune", products[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeCondition(t *testing.T) {
	tests := []struct {
		name   string
		filter product.AttributeFilter
		match  string
		value  interface{}
	}{
		{
			name:   "in",
			filter: product.AttributeFilter{Slug: "size", Lookup: product.LookupIn, Value: []any{"S", "M"}},
			match:  "= ANY(CAST(:attr_val_0 AS jsonb[]))",
			value:  pq.Array([]string{`"S"`, `"M"`}),
		},
		{
			name:   "text range",
			filter: product.AttributeFilter{Slug: "published", Lookup: product.LookupLt, Value: "2000-01-01"},
			match:  "v.value->>'value' < :attr_val_0",
			value:  "2000-01-01",
		},
		{
			name:   "icontains escapes wildcards",
			filter: product.AttributeFilter{Slug: "title", Lookup: product.LookupIContains, Value: "50%_off"},
			match:  "ILIKE :attr_val_0",
			value:  `%50\%\_off%`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			cond, err := attributeCondition(0, tt.filter, args)
			require.NoError(t, err)
			assert.Contains(t, cond, tt.match)
			assert.Equal(t, tt.filter.Slug, args["attr_slug_0"])
			assert.Equal(t, tt.value, args["attr_val_0"])
		})
	}
}
