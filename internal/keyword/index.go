// Package keyword provides the lexical retrieval channel.
package keyword

import (
	"context"

	"github.com/hyperjump/kioku/internal/filter"
	"github.com/hyperjump/kioku/internal/models"
)

// KeywordIndex defines keyword search operations. Maintenance mirrors the
// vector index: the document store indexes and deletes entries as documents
// are written, and the search engine only reads.
type KeywordIndex interface {
	Index(ctx context.Context, doc *models.Document) error
	// Search matches query tokens against document content, scoped by flt,
	// and returns up to limit hits ordered by descending relevance.
	Search(ctx context.Context, query string, limit int, flt filter.Filter) ([]*Result, error)
	// Delete removes one document; deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
