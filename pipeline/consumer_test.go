package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/evidentia/ai/mock"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/queue"
	"github.com/poiesic/evidentia/storage"
	storagebadger "github.com/poiesic/evidentia/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) (*Consumer, queue.TaskQueue, storage.ResultStore) {
	t.Helper()
	docs, results, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	p, err := NewProcessor(mock.NewMockEmbedder(), docs,
		WithRetry(2, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })

	c := NewConsumer(q, p, results, nil)
	c.idleDelay = 5 * time.Millisecond
	return c, q, results
}

func waitForStatus(t *testing.T, q queue.TaskQueue, taskID string, want core.TaskStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := q.Status(context.Background(), taskID)
		require.NoError(t, err)
		if status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", taskID, want)
}

func TestConsumerProcessesQueuedTask(t *testing.T) {
	c, q, results := newTestConsumer(t)
	ctx := context.Background()

	taskID := queue.NewTaskID(queue.KindIngest)
	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind: queue.KindIngest,
		ID:   taskID,
		Payload: map[string]any{
			"title":   "Expense report Q3",
			"content": "Total: 1200.00",
			"source":  "expenses",
		},
	}))

	c.Start(ctx)
	defer c.Stop()

	waitForStatus(t, q, taskID, core.TaskCompleted)

	payload, err := results.GetResult(ctx, taskID)
	require.NoError(t, err)

	var result core.ProcessingResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, core.OutcomeSuccess, result.Status)
	assert.Equal(t, "Expense report Q3", result.Title)
	assert.NotEmpty(t, result.DocID)
}

func TestConsumerDropsMalformedPayload(t *testing.T) {
	c, q, results := newTestConsumer(t)
	ctx := context.Background()

	taskID := queue.NewTaskID(queue.KindIngest)
	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind: queue.KindIngest,
		ID:   taskID,
		Payload: map[string]any{
			"title":    "bad metadata type",
			"metadata": "not-a-map",
		},
	}))

	c.Start(ctx)
	defer c.Stop()

	waitForStatus(t, q, taskID, core.TaskFailed)

	payload, err := results.GetResult(ctx, taskID)
	require.NoError(t, err)

	var result core.ProcessingResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, core.OutcomeFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

// faultyQueue wraps a real queue and fails dequeues on demand.
type faultyQueue struct {
	queue.TaskQueue
	mu       sync.Mutex
	dequeues int
	failing  bool
}

func (f *faultyQueue) Dequeue(ctx context.Context, kind string) (*queue.Envelope, error) {
	f.mu.Lock()
	f.dequeues++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return nil, queue.ErrQueueUnavailable
	}
	return f.TaskQueue.Dequeue(ctx, kind)
}

func (f *faultyQueue) dequeueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dequeues
}

func (f *faultyQueue) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func TestConsumerBacksOffAfterDequeueError(t *testing.T) {
	docs, results, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	p, err := NewProcessor(mock.NewMockEmbedder(), docs)
	require.NoError(t, err)

	fq := &faultyQueue{TaskQueue: queue.NewMemoryQueue(), failing: true}
	t.Cleanup(func() { fq.TaskQueue.Close() })

	c := NewConsumer(fq, p, results, nil)
	c.idleDelay = time.Millisecond
	c.errBackoff = 50 * time.Millisecond

	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	time.Sleep(120 * time.Millisecond)
	polls := fq.dequeueCount()

	// At the 1ms idle cadence this window would see dozens of polls; the
	// error backoff keeps it to a handful.
	assert.GreaterOrEqual(t, polls, 1)
	assert.LessOrEqual(t, polls, 10)

	// The loop survives the errors and drains the queue once it recovers.
	taskID := queue.NewTaskID(queue.KindIngest)
	require.NoError(t, fq.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindIngest,
		ID:      taskID,
		Payload: map[string]any{"title": "Recovery report", "content": "Total: 10", "source": "ops"},
	}))
	fq.setFailing(false)

	waitForStatus(t, fq, taskID, core.TaskCompleted)
}

func TestConsumerStopIsIdempotent(t *testing.T) {
	c, _, _ := newTestConsumer(t)

	c.Start(context.Background())
	c.Stop()
	c.Stop()

	// Restart after stop works.
	c.Start(context.Background())
	c.Stop()
}

func TestConsumerIgnoresOtherTaskKinds(t *testing.T) {
	c, q, _ := newTestConsumer(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindAudit,
		ID:      "audit-task",
		Payload: map[string]any{"job_id": "j1"},
	}))

	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	// The audit task is untouched and still pending for its own consumer.
	env, err := q.Dequeue(ctx, queue.KindAudit)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "audit-task", env.ID)
}
