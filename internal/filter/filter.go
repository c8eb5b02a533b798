// Package filter compiles structured metadata filters into backend predicates.
//
// A Filter maps metadata fields to scalar values combined with implicit AND.
// Compilation always binds values as parameters; no user-controlled value is
// ever interpolated into query text.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// ErrUnsupportedFilter is returned when a filter value is not a scalar
// (string, number, or boolean). Unsupported conditions fail loudly instead of
// being silently dropped.
var ErrUnsupportedFilter = errors.New("unsupported filter value")

// Filter maps metadata field names to required scalar values.
type Filter map[string]any

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// Validate checks that every filter value is a supported scalar.
func (f Filter) Validate() error {
	for field, value := range f {
		if _, err := normalizeScalar(value); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

// SQL compiles the filter into a parameterized predicate over the given
// metadata column, which holds a JSON object. The returned fragment contains
// only placeholders; field names are passed as json_extract path arguments so
// they are bound too. An empty filter returns an empty fragment.
func (f Filter) SQL(metadataColumn string) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		value, err := normalizeScalar(f[field])
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", field, err)
		}
		clauses = append(clauses, fmt.Sprintf("json_extract(%s, ?) = ?", metadataColumn))
		args = append(args, "$."+field, value)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// BleveQuery compiles the filter into a conjunction of exact-match queries on
// the indexed metadata fields. A nil return with nil error means no scoping.
func (f Filter) BleveQuery() (blevequery.Query, error) {
	if len(f) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conjuncts := make([]blevequery.Query, 0, len(fields))
	for _, field := range fields {
		value, err := normalizeScalar(f[field])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		indexed := "metadata." + field
		switch v := value.(type) {
		case string:
			q := bleve.NewTermQuery(v)
			q.SetField(indexed)
			conjuncts = append(conjuncts, q)
		case float64:
			q := bleve.NewNumericRangeInclusiveQuery(&v, &v, boolPtr(true), boolPtr(true))
			q.SetField(indexed)
			conjuncts = append(conjuncts, q)
		case bool:
			q := bleve.NewBoolFieldQuery(v)
			q.SetField(indexed)
			conjuncts = append(conjuncts, q)
		}
	}
	return bleve.NewConjunctionQuery(conjuncts...), nil
}

// normalizeScalar accepts strings, booleans, and numbers, widening all numeric
// types to float64 so SQL and Bleve compare against the same representation
// the JSON metadata round-trip produces.
func normalizeScalar(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return v, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFilter, value)
	}
}

func boolPtr(b bool) *bool { return &b }
