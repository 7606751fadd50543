package queue

import "errors"

var (
	// ErrQueueClosed is returned for operations on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueUnavailable is returned when the queue backend cannot be reached.
	ErrQueueUnavailable = errors.New("queue unavailable")
)
