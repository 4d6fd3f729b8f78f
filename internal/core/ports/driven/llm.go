package driven

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// LLMService produces chat completions for the retrieval-augmented
// answer path. Same retry contract as EmbeddingService: retry 429 and
// 5xx, never other 4xx.
type LLMService interface {
	// Complete generates the assistant reply for a conversation.
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}
