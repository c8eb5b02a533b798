// Package models defines core data structures for documents, queries, and search results.
package models

import "time"

// Document is a stored document with its embedding and metadata.
// CreatedAt and UpdatedAt are assigned by the store, never by the caller.
type Document struct {
	ID          string         `json:"id" db:"id"`
	Content     string         `json:"content" db:"content"`
	Embedding   []float32      `json:"-" db:"embedding"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	ContentHash string         `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the caller-facing input for inserting or upserting a document.
// An empty ID is assigned by the store. Embedding may be supplied pre-computed;
// when absent and vector search is configured, the store computes it.
type DocumentInput struct {
	ID        string         `json:"id,omitempty"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
