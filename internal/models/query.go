package models

import "fmt"

// SearchQuery represents a retrieval request. Filter maps metadata fields to
// scalar values combined with implicit AND; an empty filter matches everything.
type SearchQuery struct {
	Query  string         `json:"query"`
	Limit  int            `json:"limit,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
}

// Validate checks the query text and normalizes the limit against the
// configured default and maximum. A zero limit takes the default; a negative
// limit is an error.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
