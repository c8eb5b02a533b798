// Package keyword provides the Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kioku/internal/filter"
	"github.com/hyperjump/kioku/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused. Metadata fields are indexed alongside content so the
// same metadata filter scopes both retrieval channels; if the mapping changes
// in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	contentMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query tokens
	// match the exact words stored in content.
	contentMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", contentMapping)

	metaMapping := bleve.NewDocumentMapping()
	metaTextMapping := bleve.NewKeywordFieldMapping()
	metaMapping.DefaultAnalyzer = metaTextMapping.Analyzer
	docMapping.AddSubDocumentMapping("metadata", metaMapping)

	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a document's content and metadata under its id. Re-indexing
// an existing id replaces the previous entry.
func (b *BleveIndex) Index(ctx context.Context, doc *models.Document) error {
	entry := map[string]any{
		"content": doc.Content,
	}
	if len(doc.Metadata) > 0 {
		entry["metadata"] = doc.Metadata
	}
	return b.index.Index(doc.ID, entry)
}

// Search runs a match query over content, AND-ed with the compiled filter
// conjunction when a filter is present.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, flt filter.Filter) ([]*Result, error) {
	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	var q blevequery.Query = match
	if !flt.IsEmpty() {
		scope, err := flt.BleveQuery()
		if err != nil {
			return nil, err
		}
		q = bleve.NewConjunctionQuery(match, scope)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a document from the index; unknown ids are a no-op.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
