package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/evidentia/ai/mock"
	"github.com/poiesic/evidentia/core"
	storagebadger "github.com/poiesic/evidentia/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, embedder *mock.MockEmbedder, opts ...ProcessorOption) (*Processor, *storagebadger.Backend) {
	t.Helper()
	docs, _, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	opts = append([]ProcessorOption{WithRetry(3, time.Millisecond, 5*time.Millisecond)}, opts...)
	p, err := NewProcessor(embedder, docs, opts...)
	require.NoError(t, err)
	return p, backend
}

func TestProcessSuccess(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, _ := newTestProcessor(t, embedder)

	result, err := p.Process(context.Background(), RawDocument{
		Title:    "Purchase order 981",
		Content:  "Total: 450.00 for office supplies",
		Source:   "erp",
		Metadata: map[string]string{"department": "facilities"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, result.Status)
	assert.Len(t, string(result.DocID), 16)
	assert.NotEmpty(t, result.ShardID)
	assert.Empty(t, result.ValidationErrors)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestProcessDuplicateSkipsEmbedding(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, _ := newTestProcessor(t, embedder)
	ctx := context.Background()

	raw := RawDocument{Title: "Purchase order 981", Content: "Total: 450.00", Source: "erp"}

	first, err := p.Process(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, first.Status)

	second, err := p.Process(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDuplicate, second.Status)
	assert.Equal(t, first.DocID, second.DocID)

	// The duplicate path never reaches the model.
	assert.Equal(t, 1, embedder.CallCount())
}

func TestProcessNegativeValueIsWarningOnly(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, _ := newTestProcessor(t, embedder)

	result, err := p.Process(context.Background(), RawDocument{
		Title:   "Refund adjustment",
		Content: "Total: -100 after chargeback",
		Source:  "erp",
	})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, result.Status)
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "total")
}

func TestProcessDefaultsMissingFields(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, backend := newTestProcessor(t, embedder)
	_ = backend

	result, err := p.Process(context.Background(), RawDocument{Content: "orphan content"})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, result.Status)
	assert.Equal(t, "Unknown", result.Title)
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	attempts := 0
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("model backend flaked")
		}
		return make([]float32, 8), nil
	}
	p, _ := newTestProcessor(t, embedder)

	result, err := p.Process(context.Background(), RawDocument{Title: "Flaky", Source: "erp"})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, result.Status)
	assert.Equal(t, 3, attempts)
}

func TestProcessRetryBudgetExhausted(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model backend down")
	}
	p, _ := newTestProcessor(t, embedder)

	result, err := p.Process(context.Background(), RawDocument{Title: "Doomed", Source: "erp"})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model backend down")
	assert.Equal(t, 3, embedder.CallCount())
}

func TestProcessCapsStoredContent(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	docs, _, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	p, err := NewProcessor(embedder, docs, WithRetry(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	long := make([]byte, core.MaxContentLen*2)
	for i := range long {
		long[i] = 'x'
	}

	result, err := p.Process(context.Background(), RawDocument{Title: "Long doc", Content: string(long), Source: "erp"})
	require.NoError(t, err)

	stored, err := docs.GetDocument(context.Background(), result.DocID)
	require.NoError(t, err)
	assert.Len(t, stored.Content, core.MaxContentLen)
	assert.Equal(t, stored.Metadata[core.MetadataShardKey], result.ShardID)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	err := RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond, time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	calls := 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errors.New("always fails")
	}, 3, time.Millisecond, 2*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = RetryWithBackoff(cancelled, func() error { return nil }, 3, time.Millisecond, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
