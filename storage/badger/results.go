package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/evidentia/storage"
)

// ResultRepository implements storage.ResultStore for BadgerDB.
// Entries are written with a TTL so finished task results age out on
// their own without a sweeper.
type ResultRepository struct {
	backend *Backend
}

var _ storage.ResultStore = (*ResultRepository)(nil)

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(backend *Backend) *ResultRepository {
	return &ResultRepository{backend: backend}
}

// Close releases repository resources. The shared backend stays open.
func (r *ResultRepository) Close() error {
	return nil
}

// SetResult stores a serialized task result that expires after ttl.
// A ttl of zero stores the result without expiry.
func (r *ResultRepository) SetResult(ctx context.Context, taskID string, payload []byte, ttl time.Duration) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeTaskResultKey(taskID), payload)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetResult retrieves a stored task result.
// Returns storage.ErrNotFound when the result is missing or expired.
func (r *ResultRepository) GetResult(ctx context.Context, taskID string) ([]byte, error) {
	var payload []byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTaskResultKey(taskID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	}, false)
	return payload, err
}
