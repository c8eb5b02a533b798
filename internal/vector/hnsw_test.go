package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/hyperjump/kioku/pkg/utils"
)

func newTestHNSW(t *testing.T, dims int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(dims, MetricCosine, HNSWOptions{})
	if err != nil {
		t.Fatalf("new hnsw: %v", err)
	}
	return idx
}

// unitVec returns a deterministic unit vector for i.
func unitVec(dims, i int) []float32 {
	v := make([]float32, dims)
	for j := range v {
		v[j] = float32(math.Sin(float64(i*(j+3) + j)))
	}
	utils.NormalizeL2(v)
	return v
}

func TestHNSWRoundTrip(t *testing.T) {
	idx := newTestHNSW(t, 8)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := idx.Add(ctx, fmt.Sprintf("doc-%d", i), unitVec(8, i)); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	// Querying an indexed vector must return it first with the maximum score.
	results, err := idx.Search(ctx, unitVec(8, 7), 5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "doc-7" {
		t.Fatalf("expected doc-7 first, got %v", results)
	}
	if math.Abs(results[0].Score-1.0) > 1e-5 {
		t.Errorf("self-similarity should be ~1.0, got %f", results[0].Score)
	}
}

func TestHNSWNeverReturnsMoreThanK(t *testing.T) {
	idx := newTestHNSW(t, 4)
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		_ = idx.Add(ctx, fmt.Sprintf("doc-%d", i), unitVec(4, i))
	}
	results, err := idx.Search(ctx, unitVec(4, 0), 3, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) > 3 {
		t.Errorf("returned %d results for k=3", len(results))
	}
}

func TestHNSWDimensionGuard(t *testing.T) {
	idx := newTestHNSW(t, 4)
	ctx := context.Background()
	if err := idx.Add(ctx, "a", []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("index should be unchanged, size %d", idx.Size())
	}
}

func TestHNSWRemoveTombstones(t *testing.T) {
	idx := newTestHNSW(t, 8)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_ = idx.Add(ctx, fmt.Sprintf("doc-%d", i), unitVec(8, i))
	}
	if err := idx.Remove(ctx, "doc-3"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := idx.Remove(ctx, "doc-3"); err != nil {
		t.Errorf("second remove should be a no-op, got %v", err)
	}
	if idx.Size() != 19 {
		t.Errorf("expected size 19, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, unitVec(8, 3), 20, nil)
	for _, r := range results {
		if r.ID == "doc-3" {
			t.Error("tombstoned id returned from search")
		}
	}
}

func TestHNSWReplaceExisting(t *testing.T) {
	idx := newTestHNSW(t, 4)
	ctx := context.Background()
	_ = idx.Add(ctx, "a", unitVec(4, 1))
	_ = idx.Add(ctx, "a", unitVec(4, 2))
	if idx.Size() != 1 {
		t.Fatalf("replace should keep one live vector, size %d", idx.Size())
	}
	results, _ := idx.Search(ctx, unitVec(4, 2), 1, nil)
	if len(results) != 1 || results[0].ID != "a" || math.Abs(results[0].Score-1.0) > 1e-5 {
		t.Errorf("search should find the replacement vector, got %v", results)
	}
}

func TestHNSWAllowedFiltering(t *testing.T) {
	idx := newTestHNSW(t, 8)
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		_ = idx.Add(ctx, fmt.Sprintf("doc-%d", i), unitVec(8, i))
	}
	allowed := map[string]bool{"doc-11": true, "doc-22": true}
	results, err := idx.Search(ctx, unitVec(8, 11), 10, allowed)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if !allowed[r.ID] {
			t.Errorf("disallowed id %s returned", r.ID)
		}
	}
	if len(results) == 0 {
		t.Error("filtering should not starve the result set")
	}
}

func TestHNSWDropIndex(t *testing.T) {
	idx := newTestHNSW(t, 4)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = idx.Add(ctx, fmt.Sprintf("doc-%d", i), unitVec(4, i))
	}
	if err := idx.DropIndex(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("expected empty index after drop, size %d", idx.Size())
	}
	results, err := idx.Search(ctx, unitVec(4, 0), 5, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("dropped index should return no results: %v %v", results, err)
	}
	// The graph is rebuildable after a drop.
	if err := idx.Create(ctx); err != nil {
		t.Fatalf("create after drop: %v", err)
	}
	if err := idx.Add(ctx, "fresh", unitVec(4, 1)); err != nil {
		t.Fatalf("add after drop: %v", err)
	}
}

func TestHNSWRecallOnSmallCorpus(t *testing.T) {
	// With efConstruction 200 on a tiny corpus the graph search is effectively
	// exhaustive, so recall against the flat index should be complete.
	dims := 8
	hnsw := newTestHNSW(t, dims)
	flat, _ := NewFlatIndex(dims, MetricCosine)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("doc-%d", i)
		v := unitVec(dims, i)
		_ = hnsw.Add(ctx, id, v)
		_ = flat.Add(ctx, id, v)
	}
	query := unitVec(dims, 999)
	exact, _ := flat.Search(ctx, query, 5, nil)
	approx, _ := hnsw.Search(ctx, query, 5, nil)
	exactIDs := make(map[string]bool, len(exact))
	for _, r := range exact {
		exactIDs[r.ID] = true
	}
	hits := 0
	for _, r := range approx {
		if exactIDs[r.ID] {
			hits++
		}
	}
	if hits < 4 {
		t.Errorf("recall too low: %d/5 of exact top-k found", hits)
	}
}

func TestHNSWInvalidDimensions(t *testing.T) {
	if _, err := NewHNSWIndex(-1, MetricCosine, HNSWOptions{}); !errors.Is(err, ErrIndexCreation) {
		t.Errorf("expected ErrIndexCreation, got %v", err)
	}
}
