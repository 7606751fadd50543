package pipeline

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
	// ErrNilEmbedder is returned when a processor is built without an embedder.
	ErrNilEmbedder = errors.New("embedder is required")
	// ErrNilDocumentStore is returned when a processor is built without a store.
	ErrNilDocumentStore = errors.New("document store is required")
)
