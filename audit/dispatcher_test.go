package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *plannerFixture, queue.TaskQueue) {
	t.Helper()
	f := newPlannerFixture(t)

	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })

	d, err := NewDispatcher(q, f.planner, nil)
	require.NoError(t, err)
	d.idle = 5 * time.Millisecond
	return d, f, q
}

func waitForTaskStatus(t *testing.T, q queue.TaskQueue, taskID string, want core.TaskStatus) {
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

func TestDispatcherRunsAuditTask(t *testing.T) {
	d, f, q := newTestDispatcher(t)
	ctx := context.Background()

	f.seedDocuments(t, 4)
	jobID := f.createJob(t, "contract renewals are documented")

	taskID := queue.NewTaskID(queue.KindAudit)
	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindAudit,
		ID:      taskID,
		Payload: map[string]any{"job_id": jobID, "goal": "contract renewals are documented"},
	}))

	d.Start(ctx)
	defer d.Stop()

	waitForTaskStatus(t, q, taskID, core.TaskCompleted)

	job, err := f.jobs.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, job.Status)
}

func TestDispatcherMissingJobID(t *testing.T) {
	d, _, q := newTestDispatcher(t)
	ctx := context.Background()

	taskID := queue.NewTaskID(queue.KindAudit)
	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindAudit,
		ID:      taskID,
		Payload: map[string]any{"goal": "no job attached"},
	}))

	d.Start(ctx)
	defer d.Stop()

	waitForTaskStatus(t, q, taskID, core.TaskFailed)
}

func TestDispatcherUnknownJobFailsTask(t *testing.T) {
	d, _, q := newTestDispatcher(t)
	ctx := context.Background()

	taskID := queue.NewTaskID(queue.KindAudit)
	require.NoError(t, q.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindAudit,
		ID:      taskID,
		Payload: map[string]any{"job_id": "ghost"},
	}))

	d.Start(ctx)
	defer d.Stop()

	waitForTaskStatus(t, q, taskID, core.TaskFailed)
}

// brokenQueue fails every dequeue and counts the attempts.
type brokenQueue struct {
	queue.TaskQueue
	mu       sync.Mutex
	dequeues int
}

func (b *brokenQueue) Dequeue(ctx context.Context, kind string) (*queue.Envelope, error) {
	b.mu.Lock()
	b.dequeues++
	b.mu.Unlock()
	return nil, queue.ErrQueueUnavailable
}

func (b *brokenQueue) dequeueCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dequeues
}

func TestDispatcherBacksOffAfterDequeueError(t *testing.T) {
	f := newPlannerFixture(t)

	bq := &brokenQueue{TaskQueue: queue.NewMemoryQueue()}
	t.Cleanup(func() { bq.TaskQueue.Close() })

	d, err := NewDispatcher(bq, f.planner, nil)
	require.NoError(t, err)
	d.idle = time.Millisecond
	d.errBackoff = 50 * time.Millisecond

	d.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	d.Stop()

	polls := bq.dequeueCount()

	// At the 1ms idle cadence this window would see dozens of polls; the
	// error backoff keeps it to a handful.
	assert.GreaterOrEqual(t, polls, 1)
	assert.LessOrEqual(t, polls, 10)
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	d.Start(context.Background())
	d.Stop()
	d.Stop()

	d.Start(context.Background())
	d.Stop()
}
