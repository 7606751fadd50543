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

package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/storage"
)

// DocumentRepository implements storage.DocumentStore for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close releases repository resources. The shared backend stays open.
func (r *DocumentRepository) Close() error {
	return nil
}

// AddDocument stores a document under its content-derived ID.
// Returns storage.ErrDuplicateKey if a document with the same ID already exists.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)

		existing, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}

		value := storage.MarshalDocument(doc)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		// Update date index
		dateKey := makeDocumentDateKey(doc.CreatedAt, doc.Id)
		if err := tx.Set(dateKey, []byte(doc.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// GetDocument retrieves a document by ID.
// Returns storage.ErrNotFound if no document exists under the ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.DocID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		var err error
		result, err = r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// HasDocument reports whether a document with the given ID exists.
func (r *DocumentRepository) HasDocument(ctx context.Context, id core.DocID) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocumentKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// GetRecentDocuments retrieves the N most recent documents, ordered by
// insertion time descending.
func (r *DocumentRepository) GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent documents first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key with the date prefix
		startKey := makePartialDocumentDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))

		prefix := []byte(documentDatePrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()

			// Check if we're still in the date index
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			// Read the document ID from the index
			var docID core.DocID
			if err := iter.Item().Value(func(val []byte) error {
				docID = core.DocID(val)
				return nil
			}); err != nil {
				return err
			}

			// Look up the full document
			doc, err := r.readDocument(tx, makeDocumentKey(docID))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// CountDocuments returns the number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(documentPrefix + ":")

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readDocument reads a document from the transaction.
// Returns nil without error when the key does not exist.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
