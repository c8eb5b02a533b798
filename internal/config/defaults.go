package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kioku/data/db/documents.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/kioku/data/indices/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "none"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.Type == "" {
		cfg.Search.Type = "hybrid"
	}
	if cfg.Search.Distance == "" {
		cfg.Search.Distance = "cosine"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.RRFConstant == 0 {
		cfg.Search.RRFConstant = 60
	}
	if cfg.Index.Variant == "" {
		cfg.Index.Variant = "flat"
	}
	if cfg.Index.HNSW.M == 0 {
		cfg.Index.HNSW.M = 16
	}
	if cfg.Index.HNSW.EfConstruction == 0 {
		cfg.Index.HNSW.EfConstruction = 200
	}
	if cfg.Index.HNSW.MaxConnections == 0 {
		cfg.Index.HNSW.MaxConnections = 16
	}
	if cfg.Index.HNSW.EfSearch == 0 {
		cfg.Index.HNSW.EfSearch = 50
	}
}
