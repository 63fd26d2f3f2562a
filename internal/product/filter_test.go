package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/zariny/ecommerce/internal/model"
)

func TestParseAttributeFilters(t *testing.T) {
	filters, err := ParseAttributeFilters(map[string]any{
		"size":             "XL",
		"colour__in":       []any{"red", "blue"},
		"weight__gte":      10,
		"title__icontains": "war",
		"released__lt":     "2020-01-01",
	})
	require.NoError(t, err)
	require.Len(t, filters, 5)

	assert.Equal(t, AttributeFilter{Slug: "colour", Lookup: LookupIn, Value: []any{"red", "blue"}}, filters[0])
	assert.Equal(t, AttributeFilter{Slug: "released", Lookup: LookupLt, Value: "2020-01-01"}, filters[1])
	assert.Equal(t, AttributeFilter{Slug: "size", Lookup: LookupExact, Value: "XL"}, filters[2])
	assert.Equal(t, AttributeFilter{Slug: "title", Lookup: LookupIContains, Value: "war"}, filters[3])
	assert.True(t, filters[4].IsRange())
}

func TestParseAttributeFilters_Errors(t *testing.T) {
	_, err := ParseAttributeFilters(map[string]any{
		"size__regex": "X.*",
		"colour__in":  "red",
		"weight":      nil,
		"isbn":        "123",
	})
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	var fields []string
	for _, e := range errs {
		fe, ok := e.(*model.FieldError)
		require.True(t, ok)
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"attributes.colour__in", "attributes.size__regex", "attributes.weight"}, fields)
	assert.ErrorIs(t, errs[1], ErrUnsupportedLookup)
}
