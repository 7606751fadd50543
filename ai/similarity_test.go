package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical non-zero vector is one", func(t *testing.T) {
		v := []float32{0.5, 0.3, 0.8}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float32{0.1, 0.9, 0.2}
		b := []float32{0.7, 0.4, 0.6}
		assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))
	})

	t.Run("zero vector yields zero", func(t *testing.T) {
		zero := []float32{0, 0, 0}
		v := []float32{0.5, 0.3, 0.8}
		assert.Equal(t, 0.0, CosineSimilarity(zero, v))
		assert.Equal(t, 0.0, CosineSimilarity(v, zero))
		assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
	})

	t.Run("bounded in unit interval", func(t *testing.T) {
		a := []float32{1, 0, 0}
		b := []float32{-1, 0, 0}
		sim := CosineSimilarity(a, b)
		assert.GreaterOrEqual(t, sim, 0.0)
		assert.LessOrEqual(t, sim, 1.0)
	})

	t.Run("orthogonal vectors score zero", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{0, 1}
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-6)
	})

	t.Run("empty vectors", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
		assert.Equal(t, 0.0, CosineSimilarity([]float32{0.2}, nil))
	})
}

func TestFallbackSummary(t *testing.T) {
	t.Run("extracts quoted goal", func(t *testing.T) {
		prompt := `Based on the following evidence, provide a concise audit report for the goal: "Find suspicious purchases 2024"`
		summary := FallbackSummary(prompt)
		assert.Contains(t, summary, "Find suspicious purchases 2024")
		assert.Contains(t, summary, "Audit Report Summary")
	})

	t.Run("deterministic", func(t *testing.T) {
		prompt := `goal: "quarterly spend review"`
		assert.Equal(t, FallbackSummary(prompt), FallbackSummary(prompt))
	})

	t.Run("prompt without goal marker", func(t *testing.T) {
		summary := FallbackSummary("no structure here")
		assert.Contains(t, summary, "audit findings")
		assert.NotEmpty(t, summary)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("trailing slash normalized", func(t *testing.T) {
		c := NewConfig(WithHost("http://localhost:11434/v1/"))
		assert.NoError(t, c.Validate())
		assert.Equal(t, "http://localhost:11434/v1", c.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", c.ChatHost)
	})

	t.Run("missing model rejected", func(t *testing.T) {
		c := NewConfig(WithEmbeddingModel(""))
		assert.Error(t, c.Validate())
	})

	t.Run("non-positive dimension rejected", func(t *testing.T) {
		c := NewConfig(WithDimension(0))
		assert.Error(t, c.Validate())
	})
}
