package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/kioku/internal/config"
)

// NewFromConfig builds the configured embedding provider. Provider "none"
// returns a nil Embedder: keyword search works without one, while vector and
// hybrid search fail fast with ErrProviderUnavailable.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: environment variable %s is not set", ErrProviderUnavailable, cfg.APIKeyEnv)
		}
		remote, err := NewOpenAIEmbedder(apiKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return NewCachedEmbedder(remote, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
