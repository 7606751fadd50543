package storage

import (
	"context"
	"time"

	"github.com/poiesic/evidentia/core"
)

// DocumentStore provides operations for persisting and reading document
// records. Implementations must be thread-safe: the ingestion path appends
// while audit runs perform concurrent read-only scans.
type DocumentStore interface {
	// AddDocument persists a document record and its date index entry.
	// Sets CreatedAt if not already set.
	// Returns ErrDuplicateKey if a record with the same id already exists.
	AddDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a single document by id.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.DocID) (*core.Document, error)

	// HasDocument reports whether a document with the given id exists.
	// This is the idempotency lookup performed before every write.
	HasDocument(ctx context.Context, id core.DocID) (bool, error)

	// GetRecentDocuments retrieves up to limit documents ordered by creation
	// time descending. This is the bounded working set audit runs scan.
	GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error)

	// CountDocuments returns the total number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// ResultStore maps task ids to serialized processing results with a bounded
// time-to-live. It is the durable complement of the in-process task status
// table: a status query can retrieve a result even after the process that
// ran the task has forgotten it, until the TTL expires.
type ResultStore interface {
	// SetResult stores the result bytes for a task id with the given TTL.
	SetResult(ctx context.Context, taskID string, result []byte, ttl time.Duration) error

	// GetResult retrieves the result bytes for a task id.
	// Returns ErrNotFound if no result exists or it has expired.
	GetResult(ctx context.Context, taskID string) ([]byte, error)

	// Close closes the store and releases resources.
	Close() error
}
