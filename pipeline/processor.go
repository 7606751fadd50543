// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pipeline implements document ingestion: normalization, numeric
// field extraction, idempotent de-duplication, embedding with retry, and
// the batch coordinator and queue consumer that drive it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/evidentia/ai"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/storage"
)

// Defaults for the processing retry budget.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	defaultWorkerCount = 4
)

// RawDocument is an unprocessed document as submitted for ingestion.
type RawDocument struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Processor turns raw documents into persisted, embedded records.
//
// Processing is idempotent: the document ID is derived from title, source
// and ingestion date, and an existing ID short-circuits to a duplicate
// outcome before any model call is made. Only the fallible tail of the
// pipeline (embedding and persistence) sits inside the retry loop.
type Processor struct {
	embedder    ai.Embedder
	docs        storage.DocumentStore
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	workerCount int
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor) error

// WithRetry overrides the retry budget for embedding and persistence.
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) ProcessorOption {
	return func(p *Processor) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		p.maxDelay = maxDelay
		return nil
	}
}

// WithWorkerCount sets the worker count used for shard derivation.
func WithWorkerCount(n int) ProcessorOption {
	return func(p *Processor) error {
		if n < 1 {
			return fmt.Errorf("worker count must be positive, got %d", n)
		}
		p.workerCount = n
		return nil
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) error {
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a document processor.
func NewProcessor(embedder ai.Embedder, docs storage.DocumentStore, opts ...ProcessorOption) (*Processor, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if docs == nil {
		return nil, ErrNilDocumentStore
	}

	p := &Processor{
		embedder:    embedder,
		docs:        docs,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		workerCount: defaultWorkerCount,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "processor")
	return p, nil
}

// Process runs one document through the pipeline and returns its terminal
// result. A nil result with a non-nil error means the retry budget was
// exhausted; duplicates are a successful outcome, not an error.
func (p *Processor) Process(ctx context.Context, raw RawDocument) (*core.ProcessingResult, error) {
	title := raw.Title
	if title == "" {
		title = "Unknown"
	}
	source := raw.Source
	if source == "" {
		source = "unknown"
	}
	content := raw.Content

	// Numeric field findings never block ingestion.
	fields := ExtractNumericFields(content)
	warnings := ValidateNumericFields(fields)
	for _, w := range warnings {
		p.logger.Warn("numeric field validation", "title", title, "finding", w)
	}

	docID := core.DocIDFor(title, source, time.Now().UTC())

	exists, err := p.docs.HasDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing document: %w", err)
	}
	if exists {
		p.logger.Debug("duplicate document skipped", "doc_id", docID, "title", title)
		return &core.ProcessingResult{
			Status:           core.OutcomeDuplicate,
			DocID:            docID,
			Title:            title,
			ValidationErrors: warnings,
		}, nil
	}

	metadata := make(map[string]string, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		metadata[k] = v
	}
	if metadata["source"] == "" {
		metadata["source"] = source
	}

	shardID := core.ShardFor(metadata, p.workerCount)
	metadata[core.MetadataShardKey] = shardID

	doc := &core.Document{
		Id:       docID,
		Title:    title,
		Content:  truncateRunes(content, core.MaxContentLen),
		Metadata: metadata,
		Source:   source,
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	embedInput := title + " " + truncateRunes(content, core.EmbedContentLen)

	err = RetryWithBackoff(ctx, func() error {
		vector, embedErr := p.embedder.EmbedText(ctx, embedInput)
		if embedErr != nil {
			return fmt.Errorf("embedding document: %w", embedErr)
		}
		doc.Vector = vector

		if addErr := p.docs.AddDocument(ctx, doc); addErr != nil {
			return addErr
		}
		return nil
	}, p.maxAttempts, p.baseDelay, p.maxDelay)

	if errors.Is(err, storage.ErrDuplicateKey) {
		// Lost a race with a concurrent ingest of the same document.
		return &core.ProcessingResult{
			Status:           core.OutcomeDuplicate,
			DocID:            docID,
			Title:            title,
			ValidationErrors: warnings,
		}, nil
	}
	if err != nil {
		p.logger.Error("document processing failed", "doc_id", docID, "title", title, "error", err)
		return nil, err
	}

	p.logger.Info("document processed", "doc_id", docID, "shard", shardID, "title", title)
	return &core.ProcessingResult{
		Status:           core.OutcomeSuccess,
		DocID:            docID,
		ShardID:          shardID,
		Title:            title,
		ValidationErrors: warnings,
	}, nil
}

// truncateRunes caps s at n runes without splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
