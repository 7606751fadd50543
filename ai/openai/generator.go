package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/evidentia/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
//
// Generate never surfaces a downstream failure: on any model error it logs
// and returns the deterministic fallback summary, so callers always receive
// usable report text.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken("none"),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate synthesizes text from the prompt. On any downstream failure it
// returns the fallback summary instead of an error; only context
// cancellation is surfaced.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.2), llms.WithMaxTokens(maxTokens))
	if err != nil {
		g.logger.Error("generation failed, using fallback summary", "err", err)
		return ai.FallbackSummary(prompt), nil
	}

	if len(response.Choices) < 1 {
		g.logger.Warn("no choices returned from model, using fallback summary")
		return ai.FallbackSummary(prompt), nil
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		g.logger.Warn("empty completion from model, using fallback summary")
		return ai.FallbackSummary(prompt), nil
	}

	return text, nil
}
