package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "collection: docs\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.Type != "hybrid" {
		t.Errorf("search type should default to hybrid, got %q", cfg.Search.Type)
	}
	if cfg.Search.Distance != "cosine" {
		t.Errorf("distance should default to cosine, got %q", cfg.Search.Distance)
	}
	if cfg.Index.HNSW.M != 16 || cfg.Index.HNSW.EfConstruction != 200 || cfg.Index.HNSW.MaxConnections != 16 {
		t.Errorf("unexpected hnsw defaults: %+v", cfg.Index.HNSW)
	}
	if cfg.Search.RRFConstant != 60 {
		t.Errorf("rrf constant should default to 60, got %f", cfg.Search.RRFConstant)
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
collection: docs
storage:
  database_path: ./data/db.sqlite
  keyword_index_path: ./data/bleve
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	wantDir := filepath.Dir(path)
	if filepath.Dir(filepath.Dir(cfg.Storage.DatabasePath)) != wantDir {
		t.Errorf("database path not expanded relative to config dir: %s", cfg.Storage.DatabasePath)
	}
}

func TestValidateRejectsBadCollection(t *testing.T) {
	// Hyphens are rejected too: the name ends up inside an unquoted SQL
	// identifier, where a hyphen is parsed as minus.
	for _, name := range []string{"docs; DROP TABLE", "my-docs"} {
		path := writeConfig(t, "collection: \""+name+"\"\n")
		if _, err := Load(path); err == nil {
			t.Errorf("collection %q must be rejected", name)
		}
	}
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	cases := []string{
		"collection: docs\nsearch:\n  type: fuzzy\n",
		"collection: docs\nsearch:\n  distance: hamming\n",
		"collection: docs\nindex:\n  variant: ivf\n",
		"collection: docs\nembedding:\n  provider: cohere\n",
	}
	for _, c := range cases {
		path := writeConfig(t, c)
		if _, err := Load(path); err == nil {
			t.Errorf("config should be rejected:\n%s", c)
		}
	}
}

func TestValidateVectorSearchNeedsProvider(t *testing.T) {
	path := writeConfig(t, "collection: docs\nsearch:\n  type: vector\nembedding:\n  provider: none\n")
	if _, err := Load(path); err == nil {
		t.Error("vector search without a provider must be rejected")
	}
	path = writeConfig(t, "collection: docs\nsearch:\n  type: keyword\nembedding:\n  provider: none\n")
	if _, err := Load(path); err != nil {
		t.Errorf("keyword search without a provider should be fine: %v", err)
	}
}

func TestNeedsVectors(t *testing.T) {
	cfg := &Config{}
	for mode, want := range map[string]bool{"vector": true, "hybrid": true, "keyword": false} {
		cfg.Search.Type = mode
		if cfg.NeedsVectors() != want {
			t.Errorf("NeedsVectors for %s should be %v", mode, want)
		}
	}
}
