package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/store"
	"github.com/hyperjump/kioku/internal/vector"
)

const testDims = 16

func newTestEngine(t *testing.T, mode string) (*Engine, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	backend, err := storage.NewSQLiteBackend(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	vectorIndex, err := vector.NewFlatIndex(testDims, vector.MetricCosine)
	if err != nil {
		t.Fatalf("create vector index: %v", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("create keyword index: %v", err)
	}
	t.Cleanup(func() { keywordIndex.Close() })

	embedder := embedding.NewMockEmbedder(testDims)
	cfg := &config.Config{Collection: "docs"}
	cfg.Search = config.SearchConfig{
		Type:           mode,
		DefaultLimit:   10,
		MaxLimit:       100,
		TopKCandidates: 100,
		RRFConstant:    60,
	}

	docStore, err := store.New(backend, vectorIndex, keywordIndex, embedder, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := docStore.Create(context.Background()); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	engine := NewEngine(docStore, embedder, vectorIndex, keywordIndex, &cfg.Search, zap.NewNop())
	return engine, docStore
}

func seedDocuments(t *testing.T, docStore *store.Store) {
	t.Helper()
	_, err := docStore.Upsert(context.Background(), []*models.DocumentInput{
		{ID: "go", Content: "golang concurrency with goroutines and channels", Metadata: map[string]any{"lang": "en", "topic": "programming"}},
		{ID: "rust", Content: "rust ownership and borrowing rules", Metadata: map[string]any{"lang": "en", "topic": "programming"}},
		{ID: "bread", Content: "sourdough bread baking with wild yeast", Metadata: map[string]any{"lang": "en", "topic": "cooking"}},
		{ID: "pain", Content: "recette de pain au levain", Metadata: map[string]any{"lang": "fr", "topic": "cooking"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, "keyword")
	if _, err := engine.Search(context.Background(), &models.SearchQuery{Query: ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty query must be rejected with ErrInvalidArgument, got %v", err)
	}
	if _, err := engine.Search(context.Background(), &models.SearchQuery{Query: "x", Limit: -1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative limit must be rejected with ErrInvalidArgument, got %v", err)
	}
}

func TestKeywordSearch(t *testing.T) {
	engine, docStore := newTestEngine(t, "keyword")
	seedDocuments(t, docStore)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "goroutines"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Document.ID != "go" {
		t.Fatalf("expected only the goroutines document, got %+v", resp.Results)
	}
	if resp.Mode != "keyword" {
		t.Errorf("mode should be reported, got %q", resp.Mode)
	}
	if resp.Results[0].KeywordScore == 0 {
		t.Error("keyword channel score should be carried")
	}
}

func TestVectorSearchFindsIdenticalContent(t *testing.T) {
	engine, docStore := newTestEngine(t, "vector")
	seedDocuments(t, docStore)

	// The mock embedder is deterministic per text, so querying with a stored
	// document's exact content must rank that document first.
	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "rust ownership and borrowing rules",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Document.ID != "rust" {
		t.Fatalf("identical content should rank first, got %+v", resp.Results)
	}
	if resp.Results[0].VectorScore < 0.999 {
		t.Errorf("identical vectors should score ~1, got %f", resp.Results[0].VectorScore)
	}
}

func TestVectorSearchWithoutEmbedderFails(t *testing.T) {
	engine, _ := newTestEngine(t, "vector")
	engine.embedder = nil

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "anything"})
	if !errors.Is(err, embedding.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHybridSearchIsDeterministic(t *testing.T) {
	engine, docStore := newTestEngine(t, "hybrid")
	seedDocuments(t, docStore)

	query := &models.SearchQuery{Query: "bread baking"}
	first, err := engine.Search(context.Background(), query)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(first.Results) == 0 {
		t.Fatal("expected results")
	}
	if first.Results[0].Document.ID != "bread" {
		t.Errorf("keyword match should dominate, got %q", first.Results[0].Document.ID)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Search(context.Background(), &models.SearchQuery{Query: "bread baking"})
		if err != nil {
			t.Fatalf("search #%d: %v", i, err)
		}
		if len(again.Results) != len(first.Results) {
			t.Fatalf("result count changed between identical queries")
		}
		for j := range first.Results {
			if again.Results[j].Document.ID != first.Results[j].Document.ID {
				t.Fatalf("ranking differs between identical queries at %d", j)
			}
		}
	}
}

func TestFilterScopesAllModes(t *testing.T) {
	for _, mode := range []string{"vector", "keyword", "hybrid"} {
		t.Run(mode, func(t *testing.T) {
			engine, docStore := newTestEngine(t, mode)
			seedDocuments(t, docStore)

			resp, err := engine.Search(context.Background(), &models.SearchQuery{
				Query:  "pain au levain bread baking",
				Filter: map[string]any{"lang": "fr"},
			})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			for _, r := range resp.Results {
				if r.Document.Metadata["lang"] != "fr" {
					t.Errorf("filter violated: %s has lang %v", r.Document.ID, r.Document.Metadata["lang"])
				}
			}
		})
	}
}

func TestFilterMatchingNothing(t *testing.T) {
	engine, docStore := newTestEngine(t, "hybrid")
	seedDocuments(t, docStore)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query:  "bread",
		Filter: map[string]any{"lang": "xx"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("filter matching nothing should return empty results, got %+v", resp.Results)
	}
}

func TestUnsupportedFilterRejected(t *testing.T) {
	engine, _ := newTestEngine(t, "keyword")
	_, err := engine.Search(context.Background(), &models.SearchQuery{
		Query:  "bread",
		Filter: map[string]any{"tags": []string{"a", "b"}},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("non-scalar filter value must be rejected, got %v", err)
	}
}

func TestLimitAndRanks(t *testing.T) {
	engine, docStore := newTestEngine(t, "vector")
	seedDocuments(t, docStore)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "programming languages",
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("limit not applied: %d results", len(resp.Results))
	}
	if resp.Total < 2 {
		t.Errorf("total should count all candidates, got %d", resp.Total)
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("rank at %d should be %d, got %d", i, i+1, r.Rank)
		}
	}
	if resp.Results[0].Score < resp.Results[1].Score {
		t.Error("results must be ordered by descending score")
	}
}

func TestSmallCandidatePoolHonorsLimit(t *testing.T) {
	engine, docStore := newTestEngine(t, "vector")

	docs := make([]*models.DocumentInput, 6)
	for i := range docs {
		docs[i] = &models.DocumentInput{
			ID:      fmt.Sprintf("note-%d", i),
			Content: fmt.Sprintf("distributed tracing span attributes part %d", i),
		}
	}
	if _, err := docStore.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A candidate pool smaller than the requested limit must not starve the
	// result list; each channel retrieves at least limit candidates.
	engine.config.TopKCandidates = 2
	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "distributed tracing span attributes",
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 5 {
		t.Fatalf("expected 5 results with limit 5, got %d", len(resp.Results))
	}
}

func TestSearchAfterDelete(t *testing.T) {
	engine, docStore := newTestEngine(t, "hybrid")
	seedDocuments(t, docStore)

	if err := docStore.Delete(context.Background(), []string{"bread"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "sourdough bread"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range resp.Results {
		if r.Document.ID == "bread" {
			t.Error("deleted document must not appear in results")
		}
	}
}
