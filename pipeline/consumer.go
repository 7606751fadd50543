package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/queue"
	"github.com/poiesic/evidentia/storage"
)

// Consumer timing.
const (
	// ResultTTL is how long finished task results stay retrievable.
	ResultTTL = time.Hour
	// idleDelay is the poll interval when the queue is empty.
	defaultIdleDelay = 100 * time.Millisecond
	// defaultErrorBackoff is the pause after a queue or storage error.
	defaultErrorBackoff = 5 * time.Second
)

// Consumer pulls ingest tasks off the queue and runs them through the
// processor. It stops cooperatively: Stop never interrupts a document
// mid-flight, the loop checks for shutdown between iterations.
type Consumer struct {
	tasks     queue.TaskQueue
	processor *Processor
	results   storage.ResultStore
	logger     *slog.Logger
	idleDelay  time.Duration
	errBackoff time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewConsumer creates a queue consumer for ingest tasks.
func NewConsumer(tasks queue.TaskQueue, processor *Processor, results storage.ResultStore, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		tasks:      tasks,
		processor:  processor,
		results:    results,
		logger:     logger.With("component", "consumer"),
		idleDelay:  defaultIdleDelay,
		errBackoff: defaultErrorBackoff,
	}
}

// Start launches the consumer loop in its own goroutine.
// Calling Start on a running consumer is a no-op.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(runCtx)
}

// Stop signals the loop to exit and waits for the in-flight task, if any,
// to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	c.logger.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return
		default:
		}

		env, err := c.tasks.Dequeue(ctx, queue.KindIngest)
		if err != nil {
			c.logger.Error("dequeue failed", "error", err)
			c.sleep(ctx, c.errBackoff)
			continue
		}
		if env == nil {
			c.sleep(ctx, c.idleDelay)
			continue
		}

		c.handle(ctx, env)
	}
}

// handle processes one dequeued envelope through to a terminal status.
func (c *Consumer) handle(ctx context.Context, env *queue.Envelope) {
	raw, err := decodeRawDocument(env.Payload)
	if err != nil {
		// Malformed payloads are dropped, not retried: they can never succeed.
		c.logger.Warn("dropping malformed task payload", "task_id", env.ID, "error", err)
		c.finish(ctx, env.ID, &core.ProcessingResult{
			Status: core.OutcomeFailed,
			Error:  err.Error(),
		})
		return
	}

	result, err := c.processor.Process(ctx, raw)
	if err != nil {
		result = &core.ProcessingResult{
			Status: core.OutcomeFailed,
			Title:  raw.Title,
			Error:  err.Error(),
		}
	}
	c.finish(ctx, env.ID, result)
}

// finish records the terminal status and result payload for a task.
func (c *Consumer) finish(ctx context.Context, taskID string, result *core.ProcessingResult) {
	status := core.TaskCompleted
	if !result.Succeeded() {
		status = core.TaskFailed
	}

	if err := c.tasks.SetStatus(ctx, taskID, status); err != nil {
		c.logger.Error("setting task status failed", "task_id", taskID, "error", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("encoding task result failed", "task_id", taskID, "error", err)
		return
	}
	if err := c.results.SetResult(ctx, taskID, payload, ResultTTL); err != nil {
		c.logger.Error("storing task result failed", "task_id", taskID, "error", err)
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// decodeRawDocument converts a schemaless task payload into a RawDocument.
func decodeRawDocument(payload map[string]any) (RawDocument, error) {
	var raw RawDocument
	data, err := json.Marshal(payload)
	if err != nil {
		return raw, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}
