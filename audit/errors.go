package audit

import "errors"

var (
	ErrDocumentStoreRequired = errors.New("document store is required")
	ErrEmbedderRequired      = errors.New("embedder is required")
	ErrGeneratorRequired     = errors.New("generator is required")
	ErrJobStoreRequired      = errors.New("job store is required")
	ErrTaskQueueRequired     = errors.New("task queue is required")
)
