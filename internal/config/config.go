// Package config provides configuration loading and structs for the Kioku engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kioku/internal/storage"
)

// Config holds all configuration for the engine. Search mode, distance
// metric, and index variant are fixed here; changing them means rebuilding
// the index, not a per-query parameter.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Collection string          `yaml:"collection"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Search     SearchConfig    `yaml:"search"`
	Index      IndexConfig     `yaml:"index"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the keyword index.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds embedding provider settings. Provider is one of
// "openai" (any OpenAI-compatible endpoint), "mock", or "none"; with "none"
// only keyword search is available. The API key is read from the environment
// variable named by APIKeyEnv, never from the config file itself.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	// Type selects the retrieval mode: vector, keyword, or hybrid.
	Type     string `yaml:"type"`
	Distance string `yaml:"distance"`
	// DefaultLimit and MaxLimit bound per-query result counts.
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	// TopKCandidates is how many candidates each hybrid channel requests
	// before fusion; always at least the query limit.
	TopKCandidates int `yaml:"top_k_candidates"`
	// RRFConstant is the c in 1/(c + rank) reciprocal-rank fusion.
	RRFConstant float64 `yaml:"rrf_constant"`
}

// IndexConfig selects the vector index variant.
type IndexConfig struct {
	Variant   string     `yaml:"variant"`
	PreDelete bool       `yaml:"pre_delete"`
	HNSW      HNSWConfig `yaml:"hnsw"`
}

// HNSWConfig holds the approximate variant's structural parameters.
type HNSWConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	MaxConnections int `yaml:"max_connections"`
	EfSearch       int `yaml:"ef_search"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated options and the collection identifier.
func (c *Config) Validate() error {
	if !storage.ValidCollectionName(c.Collection) {
		return fmt.Errorf("invalid collection name %q: must match [A-Za-z0-9_]+", c.Collection)
	}
	switch c.Search.Type {
	case "vector", "keyword", "hybrid":
	default:
		return fmt.Errorf("invalid search type %q (supported: vector, keyword, hybrid)", c.Search.Type)
	}
	switch c.Search.Distance {
	case "cosine", "euclidean", "manhattan":
	default:
		return fmt.Errorf("invalid distance %q (supported: cosine, euclidean, manhattan)", c.Search.Distance)
	}
	switch c.Index.Variant {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("invalid index variant %q (supported: flat, hnsw)", c.Index.Variant)
	}
	switch c.Embedding.Provider {
	case "openai", "mock", "none":
	default:
		return fmt.Errorf("invalid embedding provider %q (supported: openai, mock, none)", c.Embedding.Provider)
	}
	if c.Search.Type != "keyword" && c.Embedding.Provider == "none" {
		return fmt.Errorf("search type %q requires an embedding provider", c.Search.Type)
	}
	return nil
}

// NeedsVectors reports whether the configured search mode requires embeddings.
func (c *Config) NeedsVectors() bool {
	return c.Search.Type == "vector" || c.Search.Type == "hybrid"
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
