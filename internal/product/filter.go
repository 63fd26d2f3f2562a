package product

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/zariny/ecommerce/internal/model"
)

// LookupSep separates an attribute slug from its lookup in filter keys,
// as in "weight__gte".
const LookupSep = "__"

type Lookup string

const (
	LookupExact     Lookup = "exact"
	LookupIn        Lookup = "in"
	LookupGt        Lookup = "gt"
	LookupGte       Lookup = "gte"
	LookupLt        Lookup = "lt"
	LookupLte       Lookup = "lte"
	LookupContains  Lookup = "contains"
	LookupIContains Lookup = "icontains"
)

var (
	ErrUnsupportedLookup   = errors.New("unsupported lookup")
	ErrAttributeNotAllowed = errors.New("attribute is not defined for this product class")
	ErrAttributeRequired   = errors.New("attribute is required")
)

// AttributeFilter matches products having a value for Slug that satisfies
// Lookup against Value.
type AttributeFilter struct {
	Slug   string
	Lookup Lookup
	Value  any
}

func (f AttributeFilter) IsRange() bool {
	switch f.Lookup {
	case LookupGt, LookupGte, LookupLt, LookupLte:
		return true
	}
	return false
}

// ParseAttributeFilters turns {"colour__in": [...], "size": "XL"} into
// filters sorted by key. Every bad key is reported.
func ParseAttributeFilters(raw map[string]any) ([]AttributeFilter, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filters []AttributeFilter
	var errs error
	for _, key := range keys {
		f, err := parseAttributeFilter(key, raw[key])
		if err != nil {
			errs = multierr.Append(errs, &model.FieldError{Field: "attributes." + key, Err: err})
			continue
		}
		filters = append(filters, f)
	}
	return filters, errs
}

func parseAttributeFilter(key string, value any) (AttributeFilter, error) {
	slug, lookup, found := strings.Cut(key, LookupSep)
	f := AttributeFilter{Slug: slug, Lookup: LookupExact, Value: value}
	if found {
		f.Lookup = Lookup(lookup)
	}
	if slug == "" {
		return f, errors.New("missing attribute slug")
	}
	if value == nil {
		return f, errors.New("filter value cannot be null")
	}

	switch f.Lookup {
	case LookupExact, LookupGt, LookupGte, LookupLt, LookupLte:
	case LookupContains, LookupIContains:
		f.Value = fmt.Sprint(value)
	case LookupIn:
		list, ok := value.([]any)
		if !ok || len(list) == 0 {
			return f, errors.New("in lookup needs a non-empty list")
		}
	default:
		return f, fmt.Errorf("%w %q", ErrUnsupportedLookup, lookup)
	}
	return f, nil
}
