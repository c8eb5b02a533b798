package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/filter"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
	"github.com/hyperjump/kioku/internal/vector"
)

// ErrInvalidArgument is returned for queries that fail validation: empty
// query text, negative limit, or an unsupported filter value.
var ErrInvalidArgument = errors.New("invalid search argument")

// Engine answers queries in the mode fixed at construction: vector, keyword,
// or hybrid. The mode is configuration, not a per-query parameter.
type Engine struct {
	store        *store.Store
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	logger       *zap.Logger
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	docStore *store.Store,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:        docStore,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       logger,
	}
}

// Search validates the query, runs the configured retrieval mode, and returns
// ranked document-level results. The same query against the same collection
// state returns the same ranking.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	flt := filter.Filter(query.Filter)
	if err := flt.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var (
		fused []*FusedResult
		err   error
	)
	switch e.config.Type {
	case "vector":
		fused, err = e.vectorOnly(ctx, query.Query, flt, query.Limit)
	case "keyword":
		fused, err = e.keywordOnly(ctx, query.Query, flt, query.Limit)
	case "hybrid":
		fused, err = e.hybrid(ctx, query.Query, flt, query.Limit)
	default:
		return nil, fmt.Errorf("unknown search type: %s", e.config.Type)
	}
	if err != nil {
		return nil, err
	}

	total := len(fused)
	if len(fused) > query.Limit {
		fused = fused[:query.Limit]
	}

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(fused)),
		Total:   total,
		Query:   query.Query,
		Mode:    e.config.Type,
	}
	ids := make([]string, len(fused))
	for i, r := range fused {
		ids[i] = r.DocumentID
	}
	docs, err := e.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	for _, r := range fused {
		doc, ok := byID[r.DocumentID]
		if !ok {
			// Removed between index read and hydration; skip rather than fail.
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Document:     doc,
			Score:        r.Score,
			VectorScore:  r.VectorScore,
			KeywordScore: r.KeywordScore,
			Rank:         len(response.Results) + 1,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()

	e.logger.Debug("search completed",
		zap.String("mode", e.config.Type),
		zap.Int("results", len(response.Results)),
		zap.Int64("query_time_ms", response.QueryTime))
	return response, nil
}

// candidateLimit is how many candidates each channel retrieves before fusion.
// Never below the query limit, so a small top_k_candidates cannot starve the
// result list.
func (e *Engine) candidateLimit(k int) int {
	candidates := e.config.TopKCandidates
	if candidates <= 0 {
		candidates = e.config.MaxLimit
	}
	if candidates < k {
		candidates = k
	}
	return candidates
}

// vectorChannel embeds the query text and searches the vector index, scoped
// to the ids matching the metadata filter.
func (e *Engine) vectorChannel(ctx context.Context, queryText string, flt filter.Filter, k int) ([]Candidate, error) {
	if e.embedder == nil {
		return nil, embedding.ErrProviderUnavailable
	}
	allowed, err := e.store.MatchIDs(ctx, flt)
	if err != nil {
		return nil, err
	}
	if allowed != nil && len(allowed) == 0 {
		return nil, nil // filter matches nothing
	}
	queryEmbedding, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.vectorIndex.Search(ctx, queryEmbedding, e.candidateLimit(k), allowed)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ID: h.ID, Score: h.Score}
	}
	return out, nil
}

// keywordChannel searches the keyword index with the filter compiled into the
// query itself.
func (e *Engine) keywordChannel(ctx context.Context, queryText string, flt filter.Filter, k int) ([]Candidate, error) {
	hits, err := e.keywordIndex.Search(ctx, queryText, e.candidateLimit(k), flt)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ID: h.ID, Score: h.Score}
	}
	return out, nil
}

func (e *Engine) vectorOnly(ctx context.Context, queryText string, flt filter.Filter, k int) ([]*FusedResult, error) {
	hits, err := e.vectorChannel(ctx, queryText, flt, k)
	if err != nil {
		return nil, err
	}
	results := make([]*FusedResult, len(hits))
	for i, h := range hits {
		results[i] = &FusedResult{DocumentID: h.ID, Score: h.Score, VectorScore: h.Score}
	}
	return results, nil
}

func (e *Engine) keywordOnly(ctx context.Context, queryText string, flt filter.Filter, k int) ([]*FusedResult, error) {
	hits, err := e.keywordChannel(ctx, queryText, flt, k)
	if err != nil {
		return nil, err
	}
	results := make([]*FusedResult, len(hits))
	for i, h := range hits {
		results[i] = &FusedResult{DocumentID: h.ID, Score: h.Score, KeywordScore: h.Score}
	}
	return results, nil
}

// hybrid runs both channels concurrently and fuses their rankings.
func (e *Engine) hybrid(ctx context.Context, queryText string, flt filter.Filter, k int) ([]*FusedResult, error) {
	var (
		vectorRanked  []Candidate
		keywordRanked []Candidate
		errChan       = make(chan error, 2)
		wg            sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := e.vectorChannel(ctx, queryText, flt, k)
		if err != nil {
			errChan <- err
			return
		}
		vectorRanked = results
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := e.keywordChannel(ctx, queryText, flt, k)
		if err != nil {
			errChan <- err
			return
		}
		keywordRanked = results
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	return FuseRRF(vectorRanked, keywordRanked, e.config.RRFConstant), nil
}
