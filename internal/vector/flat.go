package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is the exact (native) variant: queries perform an exhaustive
// distance computation over all indexed vectors. No structural parameters.
type FlatIndex struct {
	dimensions int
	metric     Metric
	ids        []string
	vectors    [][]float32
	pos        map[string]int
	created    bool
	mu         sync.RWMutex
}

// NewFlatIndex creates an exact index with the given dimensionality and metric.
func NewFlatIndex(dimensions int, metric Metric) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrIndexCreation, dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		metric:     metric,
		pos:        make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(TypeFlat)
}

// Create is idempotent; the flat variant has no structural state to allocate.
func (f *FlatIndex) Create(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = true
	return nil
}

// Add inserts one vector, replacing any existing vector with the same id.
func (f *FlatIndex) Add(ctx context.Context, id string, vec []float32) error {
	if len(vec) != f.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
	}
	cp := make([]float32, f.dimensions)
	copy(cp, vec)
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.pos[id]; ok {
		f.vectors[i] = cp
		return nil
	}
	f.pos[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, cp)
	return nil
}

// Remove deletes one vector; removing an unknown id is a no-op.
func (f *FlatIndex) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.pos[id]
	if !ok {
		return nil
	}
	last := len(f.ids) - 1
	f.ids[i] = f.ids[last]
	f.vectors[i] = f.vectors[last]
	f.pos[f.ids[i]] = i
	f.ids = f.ids[:last]
	f.vectors = f.vectors[:last]
	delete(f.pos, id)
	return nil
}

// Search scans every indexed vector and returns the top k by similarity.
// allowed, when non-nil, excludes candidates during the scan.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int, allowed map[string]bool) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.ids) == 0 {
		return nil, nil
	}
	scored := make([]*Result, 0, len(f.ids))
	for i, vec := range f.vectors {
		if allowed != nil && !allowed[f.ids[i]] {
			continue
		}
		scored = append(scored, &Result{ID: f.ids[i], Score: f.metric.Score(query, vec)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// DropIndex clears all indexed vectors.
func (f *FlatIndex) DropIndex(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
	f.vectors = nil
	f.pos = make(map[string]int)
	f.created = false
	return nil
}

// Dimensions returns the configured dimensionality.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the configured distance metric.
func (f *FlatIndex) Metric() Metric {
	return f.metric
}

// Size returns the number of indexed vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
