// Package vector provides the similarity index variants and nearest-neighbor search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees with
	// the index's configured dimensionality. The index is left unchanged.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexCreation is returned when the structural index cannot be allocated.
	ErrIndexCreation = errors.New("index creation failed")
	// ErrUnsupportedIndexType is returned by the factory for unknown variants.
	ErrUnsupportedIndexType = errors.New("unsupported index type")
	// ErrUnsupportedMetric is returned for unknown distance functions.
	ErrUnsupportedMetric = errors.New("unsupported distance metric")
)

// Result is a single nearest-neighbor hit. Score follows the normalized
// convention: higher means more similar, for every metric.
type Result struct {
	ID    string
	Score float64
}

// Index is the contract both variants satisfy. The structural index is
// created once via Create and maintained through Add/Remove by the document
// store; callers never manage it directly.
//
// Search returns up to k results, most similar first. allowed, when non-nil,
// restricts the candidate set during the scan or traversal; it is never
// applied by truncating an unfiltered result list.
type Index interface {
	// Create builds or verifies the structural index. Idempotent: a repeated
	// call is a no-op, and concurrent first-time callers both succeed.
	Create(ctx context.Context) error
	Add(ctx context.Context, id string, vec []float32) error
	// Remove deletes one vector. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query []float32, k int, allowed map[string]bool) ([]*Result, error)
	// DropIndex releases the structural state independent of document deletion.
	DropIndex(ctx context.Context) error
	Dimensions() int
	Metric() Metric
	Size() int
	Type() string
	Close() error
}
