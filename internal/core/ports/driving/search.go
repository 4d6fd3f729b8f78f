package driving

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// SearchService turns a query into ranked workspace context and,
// optionally, a retrieval-augmented answer.
type SearchService interface {
	// Search returns ranked results for a query, vector-first with a
	// lexical fallback.
	Search(ctx context.Context, workspaceID, userID, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Ask answers a question grounded on search results. LLM failures
	// degrade to a canned answer instead of an error.
	Ask(ctx context.Context, workspaceID, userID, question string) (*domain.Answer, error)

	// Converse answers a question with prior turns threaded into the
	// LLM call, filtering weakly relevant sources.
	Converse(ctx context.Context, workspaceID, userID, question string, history []domain.ChatMessage) (*domain.Answer, error)
}
