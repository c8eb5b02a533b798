// Package store owns document records and keeps the vector and keyword
// indexes consistent with them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/filter"
	"github.com/hyperjump/kioku/internal/identity"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
)

var (
	// ErrDuplicateID is returned by Insert when a document id already exists.
	// Replacement is reserved for Upsert; Insert never overwrites silently.
	ErrDuplicateID = errors.New("document id already exists")
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Store persists documents through the backend and maintains both similarity
// indexes on every write. Index maintenance is never the caller's job.
type Store struct {
	backend      storage.Backend
	vectorIndex  vector.Index
	keywordIndex keyword.KeywordIndex
	embedder     embedding.Embedder // nil when no provider is configured
	collection   string
	table        string
	needsVectors bool
	preDelete    bool
	logger       *zap.Logger
}

// New creates a document store for the configured collection.
func New(
	backend storage.Backend,
	vectorIndex vector.Index,
	keywordIndex keyword.KeywordIndex,
	embedder embedding.Embedder,
	cfg *config.Config,
	logger *zap.Logger,
) (*Store, error) {
	if !storage.ValidCollectionName(cfg.Collection) {
		return nil, fmt.Errorf("invalid collection name: %q", cfg.Collection)
	}
	return &Store{
		backend:      backend,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		embedder:     embedder,
		collection:   cfg.Collection,
		table:        "documents_" + cfg.Collection,
		needsVectors: cfg.NeedsVectors(),
		preDelete:    cfg.Index.PreDelete,
		logger:       logger,
	}, nil
}

// Create bootstraps the schema and the structural vector index, then reloads
// persisted embeddings into it. Idempotent: racing first-time callers both
// succeed because the schema statements are atomic create-if-absent. With
// pre_delete configured, the collection is dropped first.
func (s *Store) Create(ctx context.Context) error {
	if s.preDelete {
		if err := s.Drop(ctx); err != nil {
			return err
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if err := s.vectorIndex.Create(ctx); err != nil {
		return fmt.Errorf("create index for %s: %w", s.collection, err)
	}
	return s.reloadVectors(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding BLOB,
		metadata TEXT,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, s.table)
	if _, err := s.backend.ExecuteWrite(ctx, schema); err != nil {
		return fmt.Errorf("create schema for %s: %w", s.collection, err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_content_hash ON %[1]s(content_hash)`, s.table)
	if _, err := s.backend.ExecuteWrite(ctx, index); err != nil {
		return fmt.Errorf("create hash index for %s: %w", s.collection, err)
	}
	return nil
}

// reloadVectors repopulates the in-memory vector index from persisted
// embeddings. The keyword index persists on disk and needs no rebuild.
func (s *Store) reloadVectors(ctx context.Context) error {
	query := fmt.Sprintf(`SELECT id, embedding FROM %s WHERE embedding IS NOT NULL`, s.table)
	type row struct {
		id  string
		vec []float32
	}
	var rows []row
	err := s.backend.ExecuteRead(ctx, query, nil, func(r *sql.Rows) error {
		var id string
		var blob []byte
		if err := r.Scan(&id, &blob); err != nil {
			return err
		}
		rows = append(rows, row{id: id, vec: vector.Decode(blob)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("load vectors for %s: %w", s.collection, err)
	}
	for _, r := range rows {
		if err := s.vectorIndex.Add(ctx, r.id, r.vec); err != nil {
			return fmt.Errorf("rebuild index for %s: %w", s.collection, err)
		}
	}
	if len(rows) > 0 {
		s.logger.Info("vector index rebuilt",
			zap.String("collection", s.collection),
			zap.Int("vectors", len(rows)))
	}
	return nil
}

// Upsert writes documents, fully replacing any existing documents with the
// same id. CreatedAt is preserved across replacement; UpdatedAt is always
// refreshed. The batch is committed in one transaction. Returns affected ids.
func (s *Store) Upsert(ctx context.Context, inputs []*models.DocumentInput) ([]string, error) {
	docs, err := s.prepare(ctx, inputs)
	if err != nil {
		return nil, err
	}
	err = s.withSchemaRetry(ctx, func() error {
		return s.writeBatch(ctx, docs)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", s.collection, err)
	}
	if err := s.indexBatch(ctx, docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// Insert writes documents whose ids must not already exist; an existing id is
// rejected with ErrDuplicateID and nothing in the batch is applied. The
// primary key constraint arbitrates duplicates, so two racing Inserts of the
// same id cannot both succeed.
func (s *Store) Insert(ctx context.Context, inputs []*models.DocumentInput) ([]string, error) {
	docs, err := s.prepare(ctx, inputs)
	if err != nil {
		return nil, err
	}
	err = s.withSchemaRetry(ctx, func() error {
		return s.insertBatch(ctx, docs)
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("insert into %s: %w: %v", s.collection, ErrDuplicateID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", s.collection, err)
	}
	if err := s.indexBatch(ctx, docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// prepare assigns ids, hashes content, validates metadata, and computes
// missing embeddings when the configured search mode requires them. All
// validation happens before any backend call.
func (s *Store) prepare(ctx context.Context, inputs []*models.DocumentInput) ([]*models.Document, error) {
	now := time.Now().UTC()
	docs := make([]*models.Document, len(inputs))
	for i, in := range inputs {
		if in.Content == "" {
			return nil, fmt.Errorf("document %d: content cannot be empty", i)
		}
		if err := filter.Filter(in.Metadata).Validate(); err != nil {
			return nil, fmt.Errorf("document %d: metadata: %w", i, err)
		}
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = &models.Document{
			ID:          id,
			Content:     in.Content,
			Embedding:   in.Embedding,
			Metadata:    in.Metadata,
			ContentHash: identity.Hash(in.Content),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	if !s.needsVectors {
		return docs, nil
	}
	for _, doc := range docs {
		if doc.Embedding != nil {
			continue
		}
		if s.embedder == nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, embedding.ErrProviderUnavailable)
		}
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		doc.Embedding = vec
	}
	return docs, nil
}

// writeBatch commits the whole batch in one transaction. Replaced rows keep
// their created_at.
func (s *Store) writeBatch(ctx context.Context, docs []*models.Document) error {
	stmt := fmt.Sprintf(`
	INSERT INTO %s (id, content, embedding, metadata, content_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		embedding = excluded.embedding,
		metadata = excluded.metadata,
		content_hash = excluded.content_hash,
		updated_at = excluded.updated_at`, s.table)
	return s.execBatch(ctx, stmt, docs)
}

// insertBatch commits the batch with plain INSERTs. A duplicate id violates
// the primary key, rolling back the whole batch.
func (s *Store) insertBatch(ctx context.Context, docs []*models.Document) error {
	stmt := fmt.Sprintf(`
	INSERT INTO %s (id, content, embedding, metadata, content_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	return s.execBatch(ctx, stmt, docs)
}

func (s *Store) execBatch(ctx context.Context, stmt string, docs []*models.Document) error {
	return s.backend.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, doc := range docs {
			metadataJSON, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
			}
			var blob []byte
			if doc.Embedding != nil {
				blob = vector.Encode(doc.Embedding)
			}
			_, err = tx.ExecContext(ctx, stmt,
				doc.ID, doc.Content, blob, string(metadataJSON),
				doc.ContentHash, doc.CreatedAt, doc.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// indexBatch updates both indexes after the batch committed. Both index Adds
// replace existing entries for the same id, so a retried batch converges.
func (s *Store) indexBatch(ctx context.Context, docs []*models.Document) error {
	for _, doc := range docs {
		if doc.Embedding != nil {
			if err := s.vectorIndex.Add(ctx, doc.ID, doc.Embedding); err != nil {
				return fmt.Errorf("index vector for %s: %w", doc.ID, err)
			}
		}
		if err := s.keywordIndex.Index(ctx, doc); err != nil {
			return fmt.Errorf("index keywords for %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Exists reports whether a document with the given id exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ? LIMIT 1`, s.table)
	found := false
	err := s.readWithSchemaRetry(ctx, query, []any{id}, func(r *sql.Rows) error {
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exists in %s: %w", s.collection, err)
	}
	return found, nil
}

// ExistsByContent reports whether any document stores identical content,
// using the content hash rather than an embedding comparison.
func (s *Store) ExistsByContent(ctx context.Context, content string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE content_hash = ? LIMIT 1`, s.table)
	found := false
	err := s.readWithSchemaRetry(ctx, query, []any{identity.Hash(content)}, func(r *sql.Rows) error {
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exists by content in %s: %w", s.collection, err)
	}
	return found, nil
}

// Get returns one document by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Document, error) {
	docs, err := s.GetMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return docs[0], nil
}

// GetMany returns the documents for the given ids, in the order requested.
// Missing ids are skipped, not errors.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
	SELECT id, content, embedding, metadata, content_hash, created_at, updated_at
	FROM %s WHERE id IN (%s)`, s.table, placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	byID := make(map[string]*models.Document, len(ids))
	err := s.readWithSchemaRetry(ctx, query, args, func(r *sql.Rows) error {
		doc, err := scanDocument(r)
		if err != nil {
			return err
		}
		byID[doc.ID] = doc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", s.collection, err)
	}
	out := make([]*models.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// MatchIDs resolves a metadata filter to the set of matching document ids.
// A nil return with nil error means the filter matches everything.
func (s *Store) MatchIDs(ctx context.Context, flt filter.Filter) (map[string]bool, error) {
	if flt.IsEmpty() {
		return nil, nil
	}
	predicate, args, err := flt.SQL("metadata")
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s`, s.table, predicate)
	ids := make(map[string]bool)
	err = s.readWithSchemaRetry(ctx, query, args, func(r *sql.Rows) error {
		var id string
		if err := r.Scan(&id); err != nil {
			return err
		}
		ids[id] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("match filter in %s: %w", s.collection, err)
	}
	return ids, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	var count int64
	err := s.readWithSchemaRetry(ctx, query, nil, func(r *sql.Rows) error {
		return r.Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.collection, err)
	}
	return count, nil
}

// Delete removes documents from the record space and both indexes. The row
// batch is one transaction; index removals of unknown ids are no-ops, so a
// partially applied delete converges on retry instead of staying inconsistent.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, s.table, placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	err := s.withSchemaRetry(ctx, func() error {
		return s.backend.WriteTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, stmt, args...)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.collection, err)
	}
	for _, id := range ids {
		if err := s.vectorIndex.Remove(ctx, id); err != nil {
			return fmt.Errorf("remove vector %s: %w", id, err)
		}
		if err := s.keywordIndex.Delete(ctx, id); err != nil {
			return fmt.Errorf("remove keywords %s: %w", id, err)
		}
	}
	return nil
}

// Drop removes all documents and releases the structural vector index.
// Idempotent: dropping a collection that was never created is a no-op.
func (s *Store) Drop(ctx context.Context) error {
	var ids []string
	query := fmt.Sprintf(`SELECT id FROM %s`, s.table)
	err := s.backend.ExecuteRead(ctx, query, nil, func(r *sql.Rows) error {
		var id string
		if err := r.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if errors.Is(err, storage.ErrSchemaNotReady) {
		return nil // nothing to drop
	}
	if err != nil {
		return fmt.Errorf("drop %s: %w", s.collection, err)
	}
	if len(ids) > 0 {
		if _, err := s.backend.ExecuteWrite(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
			return fmt.Errorf("drop %s: %w", s.collection, err)
		}
	}
	for _, id := range ids {
		if err := s.keywordIndex.Delete(ctx, id); err != nil {
			return fmt.Errorf("drop keywords %s: %w", id, err)
		}
	}
	if err := s.vectorIndex.DropIndex(ctx); err != nil {
		return fmt.Errorf("drop index for %s: %w", s.collection, err)
	}
	s.logger.Info("collection dropped",
		zap.String("collection", s.collection),
		zap.Int("documents", len(ids)))
	return nil
}

// withSchemaRetry runs fn, and when it fails because the schema is missing,
// creates the schema and retries exactly once. All other errors surface
// immediately for the caller to decide on.
func (s *Store) withSchemaRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, storage.ErrSchemaNotReady) {
		return err
	}
	s.logger.Debug("schema not ready, creating", zap.String("collection", s.collection))
	if cerr := s.ensureSchema(ctx); cerr != nil {
		return cerr
	}
	return fn()
}

func (s *Store) readWithSchemaRetry(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	return s.withSchemaRetry(ctx, func() error {
		return s.backend.ExecuteRead(ctx, query, args, scan)
	})
}

func scanDocument(r *sql.Rows) (*models.Document, error) {
	var doc models.Document
	var blob []byte
	var metadataJSON sql.NullString
	err := r.Scan(&doc.ID, &doc.Content, &blob, &metadataJSON,
		&doc.ContentHash, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if blob != nil {
		doc.Embedding = vector.Decode(blob)
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
