// Package storage provides the transactional backend the engine persists through.
package storage

import (
	"context"
	"database/sql"
	"errors"
)

// ErrSchemaNotReady reports that a statement referenced a table or index that
// has not been created yet. The document store recovers from this once by
// creating the schema and retrying the failed operation.
var ErrSchemaNotReady = errors.New("schema not ready")

// ErrDuplicateKey reports that a write violated a unique or primary key
// constraint. The constraint is the authority on duplicates; callers rely on
// it instead of check-then-write sequences that race.
var ErrDuplicateKey = errors.New("duplicate key")

// Backend runs parameterized statements against the underlying store. Every
// call acquires a pooled session, runs one transaction, and releases the
// session on all exit paths. Values must always be bound, never interpolated.
type Backend interface {
	// ExecuteRead runs a read statement and streams rows to scan.
	// scan is invoked once per row.
	ExecuteRead(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error
	// ExecuteWrite runs a single write statement and returns the number of
	// affected rows.
	ExecuteWrite(ctx context.Context, query string, args ...any) (int64, error)
	// WriteTx runs fn inside one transaction; fn's statements either all
	// commit or all roll back.
	WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Close() error
}
