package ai

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// UnavailableEmbedding stands in when no embedding provider is
// configured. Every call fails with ErrEmbeddingUnavailable, which the
// search service treats as a signal to fall back to lexical search.
type UnavailableEmbedding struct{}

var _ driven.EmbeddingService = UnavailableEmbedding{}

func (UnavailableEmbedding) Embed(context.Context, string) ([]float32, error) {
	return nil, domain.ErrEmbeddingUnavailable
}

func (UnavailableEmbedding) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, domain.ErrEmbeddingUnavailable
}

func (UnavailableEmbedding) Dimensions() int   { return 0 }
func (UnavailableEmbedding) ModelName() string { return "unavailable" }

// UnavailableLLM stands in when no LLM provider is configured. Ask and
// Converse degrade to their canned answers.
type UnavailableLLM struct{}

var _ driven.LLMService = UnavailableLLM{}

func (UnavailableLLM) Complete(context.Context, []domain.ChatMessage) (string, error) {
	return "", domain.ErrLLMUnavailable
}

func (UnavailableLLM) ModelName() string { return "unavailable" }
