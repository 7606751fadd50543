package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/evidentia/core"
)

// DefaultBatchConcurrency caps how many documents a batch processes at once.
const DefaultBatchConcurrency = 5

// BatchResult summarizes one batch run. Results is index-aligned with the
// input slice and always has one entry per submitted document.
type BatchResult struct {
	Total      int                      `json:"total"`
	Successful int                      `json:"successful"`
	Failed     int                      `json:"failed"`
	Results    []*core.ProcessingResult `json:"results"`
}

// Coordinator fans a batch of documents out over a bounded worker pool.
// The pool is the admission gate: Submit blocks once the concurrency cap
// is reached, so a batch never runs more documents in parallel than the
// cap regardless of batch size.
type Coordinator struct {
	processor *Processor
	pool      *ants.Pool
	logger    *slog.Logger
}

// NewCoordinator creates a batch coordinator with the given concurrency
// cap. A cap below 1 falls back to DefaultBatchConcurrency.
func NewCoordinator(processor *Processor, concurrency int, logger *slog.Logger) (*Coordinator, error) {
	if processor == nil {
		return nil, ErrNilDocumentStore
	}
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		processor: processor,
		pool:      pool,
		logger:    logger.With("component", "batch"),
	}, nil
}

// ProcessBatch processes documents concurrently and waits for all of them.
// A document that fails never aborts the rest of the batch; it contributes
// a failed entry instead.
func (c *Coordinator) ProcessBatch(ctx context.Context, docs []RawDocument) (*BatchResult, error) {
	results := make([]*core.ProcessingResult, len(docs))

	var wg sync.WaitGroup
	for i, raw := range docs {
		i, raw := i, raw
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			result, procErr := c.processor.Process(ctx, raw)
			if procErr != nil {
				title := raw.Title
				if title == "" {
					title = "Unknown"
				}
				result = &core.ProcessingResult{
					Status: core.OutcomeFailed,
					Title:  title,
					Error:  procErr.Error(),
				}
			}
			results[i] = result
		})
		if err != nil {
			// Pool rejected the task (released pool); record and move on.
			wg.Done()
			results[i] = &core.ProcessingResult{
				Status: core.OutcomeFailed,
				Title:  raw.Title,
				Error:  err.Error(),
			}
		}
	}
	wg.Wait()

	batch := &BatchResult{
		Total:   len(docs),
		Results: results,
	}
	for _, r := range results {
		if r.Succeeded() {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}

	c.logger.Info("batch complete", "total", batch.Total, "successful", batch.Successful, "failed", batch.Failed)
	return batch, nil
}

// Release releases the worker pool.
// The coordinator should not be used after calling Release.
func (c *Coordinator) Release() {
	c.pool.Release()
}
