package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/evidentia/storage"
)

func TestResultRoundTrip(t *testing.T) {
	_, results, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	payload := []byte(`{"status":"success"}`)
	if err := results.SetResult(ctx, "ingest-abc", payload, time.Hour); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}

	got, err := results.GetResult(ctx, "ingest-abc")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("Expected %s, got %s", payload, got)
	}
}

func TestResultMissing(t *testing.T) {
	_, results, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	_, err = results.GetResult(context.Background(), "never-stored")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestResultExpiry(t *testing.T) {
	_, results, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer backend.Close()

	ctx := context.Background()

	if err := results.SetResult(ctx, "short-lived", []byte("x"), 50*time.Millisecond); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	_, err = results.GetResult(ctx, "short-lived")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after expiry, got %v", err)
	}
}
