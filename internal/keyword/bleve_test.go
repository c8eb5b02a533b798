package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kioku/internal/filter"
	"github.com/hyperjump/kioku/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexDoc(t *testing.T, idx *BleveIndex, id, content string, metadata map[string]any) {
	t.Helper()
	err := idx.Index(context.Background(), &models.Document{ID: id, Content: content, Metadata: metadata})
	if err != nil {
		t.Fatalf("index %s: %v", id, err)
	}
}

func TestSearchMatchesContent(t *testing.T) {
	idx := newTestIndex(t)
	indexDoc(t, idx, "a", "the quick brown fox jumps", nil)
	indexDoc(t, idx, "b", "lazy dogs sleep all day", nil)

	results, err := idx.Search(context.Background(), "quick fox", 10, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("expected only doc a, got %v", results)
	}
}

func TestSearchFilterScoping(t *testing.T) {
	idx := newTestIndex(t)
	indexDoc(t, idx, "a", "shared words here", map[string]any{"tag": "x"})
	indexDoc(t, idx, "b", "shared words here", map[string]any{"tag": "y"})

	results, err := idx.Search(context.Background(), "shared words", 10, filter.Filter{"tag": "x"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("filter tag=x must exclude b, got %v", results)
	}
}

func TestSearchNumericFilter(t *testing.T) {
	idx := newTestIndex(t)
	indexDoc(t, idx, "a", "numeric doc", map[string]any{"year": 2024})
	indexDoc(t, idx, "b", "numeric doc", map[string]any{"year": 2025})

	results, err := idx.Search(context.Background(), "numeric", 10, filter.Filter{"year": 2025})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("expected only doc b, got %v", results)
	}
}

func TestReindexReplaces(t *testing.T) {
	idx := newTestIndex(t)
	indexDoc(t, idx, "a", "original wording", nil)
	indexDoc(t, idx, "a", "replacement text", nil)

	results, err := idx.Search(context.Background(), "original wording", 10, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("old content should no longer match, got %v", results)
	}
	results, _ = idx.Search(context.Background(), "replacement", 10, nil)
	if len(results) != 1 {
		t.Errorf("new content should match, got %v", results)
	}
}

func TestDeleteRemovesFromResults(t *testing.T) {
	idx := newTestIndex(t)
	indexDoc(t, idx, "a", "findable content", nil)
	if err := idx.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	results, _ := idx.Search(context.Background(), "findable", 10, nil)
	if len(results) != 0 {
		t.Errorf("deleted doc returned, got %v", results)
	}
	if err := idx.Delete(context.Background(), "ghost"); err != nil {
		t.Errorf("deleting unknown id should be a no-op, got %v", err)
	}
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "anything", 10, nil)
	if err != nil {
		t.Fatalf("search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}
