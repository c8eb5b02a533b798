// Package vector provides index variant implementations and a factory for creating them.
package vector

import "fmt"

// Type represents the index variant to use.
type Type string

const (
	// TypeFlat performs exhaustive exact search. Good for small collections.
	TypeFlat Type = "flat"
	// TypeHNSW performs approximate search over a navigable small-world
	// graph. Sub-linear queries, probabilistic recall.
	TypeHNSW Type = "hnsw"
)

// Config selects and parameterizes an index variant. The variant, metric, and
// dimensionality are fixed for the life of the index; changing them means
// rebuilding, not a per-query switch.
type Config struct {
	Variant    string
	Dimensions int
	Metric     Metric
	HNSW       HNSWOptions
}

// New creates an index of the configured variant.
func New(cfg Config) (Index, error) {
	switch Type(cfg.Variant) {
	case TypeFlat, "":
		return NewFlatIndex(cfg.Dimensions, cfg.Metric)
	case TypeHNSW:
		return NewHNSWIndex(cfg.Dimensions, cfg.Metric, cfg.HNSW)
	default:
		return nil, fmt.Errorf("%w: %q (supported: flat, hnsw)", ErrUnsupportedIndexType, cfg.Variant)
	}
}
