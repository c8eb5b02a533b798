// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/store"
	"github.com/hyperjump/kioku/internal/vector"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "upsert":
		runUpsert()
	case "delete":
		runDelete()
	case "drop":
		runDrop()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("collection", cfg.Collection),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.Create(context.Background()); err != nil {
		logger.Fatal("Failed to create collection", zap.Error(err))
	}

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.VectorIndex,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	filterJSON := fs.String("filter", "", "metadata filter as JSON, e.g. '{\"lang\":\"en\"}'")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}

	query := &models.SearchQuery{Query: queryStr, Limit: *limit}
	if *filterJSON != "" {
		if err := json.Unmarshal([]byte(*filterJSON), &query.Filter); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid filter: %v\n", err)
			os.Exit(1)
		}
	}

	var response models.SearchResponse
	if err := postJSON(*serverURL+"/api/v1/search", query, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("%d result(s) in %dms (%s)\n", response.Total, response.QueryTime, response.Mode)
		for _, r := range response.Results {
			content := r.Document.Content
			if len(content) > 120 {
				content = content[:120] + "..."
			}
			fmt.Printf("%2d. [%.4f] %s  %s\n", r.Rank, r.Score, r.Document.ID, content)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// runUpsert reads documents as JSON from a file (or stdin with "-") and sends
// them to the server. The file holds either a single document object or an
// array of documents.
func runUpsert() {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku upsert [flags] <file.json|->")
		os.Exit(1)
	}
	var data []byte
	var err error
	if fs.Arg(0) == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}

	var docs []*models.DocumentInput
	if err := json.Unmarshal(data, &docs); err != nil {
		var single models.DocumentInput
		if err := json.Unmarshal(data, &single); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse documents: %v\n", err)
			os.Exit(1)
		}
		docs = []*models.DocumentInput{&single}
	}

	var out struct {
		IDs []string `json:"ids"`
	}
	body := map[string]any{"documents": docs}
	if err := putJSON(*serverURL+"/api/v1/documents", body, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Upsert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Upserted %d document(s)\n", len(out.IDs))
	for _, id := range out.IDs {
		fmt.Println(id)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku delete [flags] <document-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", id)
}

func runDrop() {
	fs := flag.NewFlagSet("drop", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	if !*yes {
		fmt.Print("Drop the whole collection? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}
	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Drop failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Collection dropped.")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Collection       string         `json:"collection"`
		Documents        int64          `json:"documents"`
		VectorIndexSize  int            `json:"vector_index_size"`
		KeywordIndexSize uint64         `json:"keyword_index_size"`
		Config           map[string]any `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
	case "text":
		fmt.Printf("collection:          %s\n", status.Collection)
		fmt.Printf("documents:           %d\n", status.Documents)
		fmt.Printf("vector_index_size:   %d\n", status.VectorIndexSize)
		fmt.Printf("keyword_index_size:  %d\n", status.KeywordIndexSize)
		for k, v := range status.Config {
			fmt.Printf("%-20s %v\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func postJSON(url string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func putJSON(url string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Components holds initialized services.
type Components struct {
	Backend      *storage.SQLiteBackend
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.KeywordIndex
	Store        *store.Store
	Engine       *search.Engine
}

func (c *Components) Close() {
	if c.Backend != nil {
		_ = c.Backend.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	backend, err := storage.NewSQLiteBackend(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	metric, err := vector.ParseMetric(cfg.Search.Distance)
	if err != nil {
		return nil, err
	}
	vectorIndex, err := vector.New(vector.Config{
		Variant:    cfg.Index.Variant,
		Dimensions: cfg.Embedding.Dimensions,
		Metric:     metric,
		HNSW: vector.HNSWOptions{
			M:              cfg.Index.HNSW.M,
			EfConstruction: cfg.Index.HNSW.EfConstruction,
			MaxConnections: cfg.Index.HNSW.MaxConnections,
			EfSearch:       cfg.Index.HNSW.EfSearch,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("variant", vectorIndex.Type()),
		zap.String("metric", cfg.Search.Distance),
		zap.Int("dimensions", cfg.Embedding.Dimensions))

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	docStore, err := store.New(backend, vectorIndex, keywordIndex, embedder, cfg, logger)
	if err != nil {
		return nil, err
	}
	engine := search.NewEngine(docStore, embedder, vectorIndex, keywordIndex, &cfg.Search, logger)

	return &Components{
		Backend:      backend,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Store:        docStore,
		Engine:       engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kioku - Document vector store engine

Usage:
  kioku server [flags]            Start the HTTP server
  kioku search [flags] <query>    Search documents
  kioku upsert [flags] <file|->   Upsert documents from a JSON file or stdin
  kioku delete [flags] <id>       Delete a document
  kioku drop [flags]              Drop the whole collection
  kioku status [flags]            Show collection and index status
  kioku version                   Show version
  kioku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of results (default: server default)
  --filter string    Metadata filter as JSON, e.g. '{"lang":"en"}'
  --output string    Output format: text or json (default: text)

Examples:
  kioku server
  kioku search "machine learning algorithms"
  kioku search --filter '{"lang":"en"}' --limit 5 neural networks
  kioku upsert documents.json
  echo '{"content":"hello"}' | kioku upsert -
  kioku delete doc-123
  kioku status --output json`)
}
