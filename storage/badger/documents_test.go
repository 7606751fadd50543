package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/storage"
)

func TestDocumentBasics(t *testing.T) {
	docs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	doc := &core.Document{
		Id:      core.DocIDFor("Invoice 42", "erp", time.Now().UTC()),
		Title:   "Invoice 42",
		Content: "Total: 120.50",
		Source:  "erp",
		Metadata: map[string]string{
			"department": "finance",
		},
	}

	if err := docs.AddDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	if doc.CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set on insert")
	}

	retrieved, err := docs.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Title != "Invoice 42" {
		t.Fatalf("Expected 'Invoice 42', got '%s'", retrieved.Title)
	}
	if retrieved.Metadata["department"] != "finance" {
		t.Fatalf("Expected metadata to survive round-trip, got %v", retrieved.Metadata)
	}

	found, err := docs.HasDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("HasDocument failed: %v", err)
	}
	if !found {
		t.Fatal("Expected document to exist")
	}
}

func TestDocumentDuplicateKey(t *testing.T) {
	docs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	doc := &core.Document{
		Id:      core.DocID("abcdef0123456789"),
		Title:   "Report",
		Content: "Count: 3",
	}

	if err := docs.AddDocument(ctx, doc); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err = docs.AddDocument(ctx, &core.Document{Id: doc.Id, Title: "Report"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	count, err := docs.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 document, got %d", count)
	}
}

func TestDocumentNotFound(t *testing.T) {
	docs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	_, err = docs.GetDocument(ctx, core.DocID("missing0missing0"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	found, err := docs.HasDocument(ctx, core.DocID("missing0missing0"))
	if err != nil {
		t.Fatalf("HasDocument failed: %v", err)
	}
	if found {
		t.Fatal("Expected document to be absent")
	}
}

func TestGetRecentDocumentsOrdering(t *testing.T) {
	docs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		doc := &core.Document{
			Id:        core.DocID(fmt.Sprintf("%016d", i)),
			Title:     fmt.Sprintf("Doc %d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := docs.AddDocument(ctx, doc); err != nil {
			t.Fatalf("Failed to add document %d: %v", i, err)
		}
	}

	recent, err := docs.GetRecentDocuments(ctx, 3)
	if err != nil {
		t.Fatalf("GetRecentDocuments failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(recent))
	}

	// Newest first
	if recent[0].Title != "Doc 4" || recent[1].Title != "Doc 3" || recent[2].Title != "Doc 2" {
		t.Fatalf("Unexpected ordering: %s, %s, %s", recent[0].Title, recent[1].Title, recent[2].Title)
	}
}

func TestGetRecentDocumentsLimitExceedsCount(t *testing.T) {
	docs, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	if err := docs.AddDocument(ctx, &core.Document{Id: core.DocID("0000000000000001"), Title: "Only"}); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	recent, err := docs.GetRecentDocuments(ctx, 100)
	if err != nil {
		t.Fatalf("GetRecentDocuments failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(recent))
	}
}
