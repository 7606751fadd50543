package queue

import (
	"context"
	"sync"

	"github.com/poiesic/evidentia/core"
)

// MemoryQueue is an in-process TaskQueue backed by a mutex-guarded slice.
// Suited to tests and single-process deployments; tasks do not survive a
// restart.
type MemoryQueue struct {
	mu       sync.Mutex
	tasks    []*Envelope
	statuses map[string]core.TaskStatus
	closed   bool
}

var _ TaskQueue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		statuses: make(map[string]core.TaskStatus),
	}
}

// Enqueue appends a task and marks it pending.
func (q *MemoryQueue) Enqueue(ctx context.Context, env *Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, env)
	q.statuses[env.ID] = core.TaskPending
	return nil
}

// Dequeue pops the oldest task of the requested kind. Tasks of other
// kinds at the head are rotated to the tail. Returns (nil, nil) when no
// matching task is queued.
func (q *MemoryQueue) Dequeue(ctx context.Context, kind string) (*Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	for i, env := range q.tasks {
		if env.Kind == kind {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			q.statuses[env.ID] = core.TaskProcessing
			return env, nil
		}
	}
	return nil, nil
}

// Status reports the last recorded status for a task.
func (q *MemoryQueue) Status(ctx context.Context, taskID string) (core.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[taskID]
	if !ok {
		return core.TaskNotFound, nil
	}
	return status, nil
}

// SetStatus records a task's status.
func (q *MemoryQueue) SetStatus(ctx context.Context, taskID string, status core.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.statuses[taskID] = status
	return nil
}

// Close marks the queue closed. Queued tasks are discarded.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.tasks = nil
	return nil
}
