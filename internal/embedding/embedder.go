// Package embedding provides text embedding providers and caching.
package embedding

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned when no embedding provider is configured
// or the configured provider cannot serve requests. Vector and hybrid search
// fail fast with this error instead of degrading silently.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Embedder produces fixed-dimension vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
