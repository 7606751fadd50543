package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/evidentia/core"
	storagebadger "github.com/poiesic/evidentia/storage/badger"
)

const (
	taskKeyPrefix   = "taskq"
	statusKeyPrefix = "taskstat"
	taskIDSeq       = "taskqseq"
)

// BadgerQueue is a durable TaskQueue persisted in BadgerDB. Tasks survive
// process restarts; FIFO order comes from a monotonic sequence encoded
// BigEndian in the key.
type BadgerQueue struct {
	mu      sync.Mutex
	backend *storagebadger.Backend
	seq     *badgerdb.Sequence
	logger  *slog.Logger
	closed  bool
}

var _ TaskQueue = (*BadgerQueue)(nil)

// NewBadgerQueue creates a durable queue on an open backend.
func NewBadgerQueue(backend *storagebadger.Backend, logger *slog.Logger) (*BadgerQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seq, err := backend.GetSequence(taskIDSeq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}
	return &BadgerQueue{
		backend: backend,
		seq:     seq,
		logger:  logger.With("component", "badger_queue"),
	}, nil
}

func makeTaskKey(seq uint64) []byte {
	prefix := taskKeyPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian so lexicographic key order matches enqueue order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

func makeStatusKey(taskID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", statusKeyPrefix, taskID))
}

// Enqueue persists a task envelope and marks it pending.
func (q *BadgerQueue) Enqueue(ctx context.Context, env *Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	next, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeTaskKey(next), payload); err != nil {
			return err
		}
		if err := tx.Set(makeStatusKey(env.ID), []byte(core.TaskPending)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Dequeue scans queued tasks in FIFO order and pops the first one of the
// requested kind. Envelopes that fail to decode are dropped with a log
// line rather than retried forever. Returns (nil, nil) when no matching
// task is queued.
func (q *BadgerQueue) Dequeue(ctx context.Context, kind string) (*Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	var result *Envelope
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(taskKeyPrefix + ":")

		// Badger panics if a transaction commits or discards with an open
		// iterator, so the scan only collects keys; all writes happen after
		// the iterator is closed.
		var poisonKeys [][]byte
		var matchKey []byte
		var env Envelope

		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)

			var candidate Envelope
			var decodeErr error
			if err := item.Value(func(val []byte) error {
				decodeErr = json.Unmarshal(val, &candidate)
				return nil
			}); err != nil {
				iter.Close()
				return err
			}

			if decodeErr != nil {
				// Poison entry: remove it so it cannot wedge the queue.
				q.logger.Warn("dropping malformed task envelope", "error", decodeErr)
				poisonKeys = append(poisonKeys, key)
				continue
			}

			if candidate.Kind != kind {
				continue
			}

			matchKey = key
			env = candidate
			break
		}
		iter.Close()

		for _, key := range poisonKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if matchKey != nil {
			if err := tx.Delete(matchKey); err != nil {
				return err
			}
			if err := tx.Set(makeStatusKey(env.ID), []byte(core.TaskProcessing)); err != nil {
				return err
			}
			result = &env
		}
		return tx.Commit()
	}, true)

	return result, err
}

// Status reports the last recorded status for a task.
func (q *BadgerQueue) Status(ctx context.Context, taskID string) (core.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := core.TaskNotFound
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeStatusKey(taskID))
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			status = core.TaskStatus(val)
			return nil
		})
	}, false)
	return status, err
}

// SetStatus records a task's status.
func (q *BadgerQueue) SetStatus(ctx context.Context, taskID string, status core.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	return q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeStatusKey(taskID), []byte(status)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Close releases the sequence. Queued tasks stay on disk for the next run.
func (q *BadgerQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.seq.Release()
}
