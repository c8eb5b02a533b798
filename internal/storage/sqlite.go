// Package storage provides the SQLite implementation of the Backend interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend implements Backend over a pooled database/sql connection.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates a SQLite database at dbPath.
// Parent directories are created if they do not exist. WAL mode is enabled so
// readers do not block writers.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// ExecuteRead runs a read statement and invokes scan for each returned row.
func (b *SQLiteBackend) ExecuteRead(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapSchemaErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ExecuteWrite runs one write statement and returns the affected row count.
func (b *SQLiteBackend) ExecuteWrite(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapSchemaErr(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteTx runs fn in a single transaction. The transaction is rolled back on
// any error or panic exit path.
func (b *SQLiteBackend) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapSchemaErr(err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return wrapSchemaErr(err)
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// wrapSchemaErr converts SQLite "no such table/index" failures into
// ErrSchemaNotReady so the store can auto-create and retry once, and unique
// constraint violations into ErrDuplicateKey so the store can report
// duplicate ids.
func wrapSchemaErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such index") {
		return fmt.Errorf("%w: %v", ErrSchemaNotReady, err)
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// ValidCollectionName reports whether name is safe to use as part of an
// unquoted table or index identifier. Only collection names drawn from this
// charset are ever interpolated into query text; all values go through bind
// parameters. Hyphens are excluded: SQLite parses them as minus inside an
// unquoted identifier.
func ValidCollectionName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
