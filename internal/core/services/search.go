package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	// defaultSearchLimit applies when the caller leaves Limit unset.
	defaultSearchLimit = 10

	// askTopK is the retrieval depth for question answering.
	askTopK = 5

	// relevanceThreshold filters weak sources out of conversations.
	relevanceThreshold = 0.4

	// lexicalRankDecay is the per-rank score drop for lexical results.
	lexicalRankDecay = 0.1

	// lexicalScoreFloor keeps lexical placeholder scores positive past
	// rank ten.
	lexicalScoreFloor = 0.05

	// snippetWindow is the snippet length in runes.
	snippetWindow = 200
)

const answerSystemPrompt = "You are a workspace knowledge assistant. Answer using only the " +
	"provided context documents. When the context does not contain the answer, say so " +
	"plainly instead of guessing. Cite document titles when helpful."

// Search implements the driving SearchService port over the item
// store, the vector store and the AI collaborators.
type Search struct {
	items    driven.ItemStore
	vectors  driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

var _ driving.SearchService = (*Search)(nil)

// NewSearch creates the search service.
func NewSearch(
	items driven.ItemStore,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *Search {
	return &Search{
		items:    items,
		vectors:  vectors,
		embedder: embedder,
		llm:      llm,
	}
}

// Search runs the vector path and falls back to lexical search when
// embedding or vector lookup fails or matches nothing. Only storage
// failure of the fallback itself surfaces as an error.
func (s *Search) Search(
	ctx context.Context, workspaceID, userID, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.vectorSearch(ctx, workspaceID, query, opts.Sources, limit)
	if err != nil {
		logger.Warn("vector search for workspace %s failed, using lexical fallback: %v", workspaceID, err)
	}
	if len(results) > 0 {
		return results, nil
	}
	return s.lexicalSearch(ctx, workspaceID, query, opts.Sources, limit)
}

func (s *Search) vectorSearch(
	ctx context.Context, workspaceID, query string, sources []domain.SourceType, limit int,
) ([]domain.SearchResult, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, workspaceID, queryVec, sources, limit)
	if err != nil {
		return nil, fmt.Errorf("vector lookup: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	similarity := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ItemID
		similarity[hit.ItemID] = hit.Similarity
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	// Hit order is similarity order; items whose row vanished are dropped.
	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		item, ok := byID[hit.ItemID]
		if !ok || item.IsDeleted() {
			continue
		}
		results = append(results, domain.SearchResult{
			Item:    item,
			Score:   hit.Similarity,
			Snippet: extractSnippet(item.Content, query),
			Origin:  domain.OriginVector,
		})
	}
	return results, nil
}

// lexicalSearch assigns a decreasing placeholder score by rank, floored
// so deep results never go to zero or negative.
func (s *Search) lexicalSearch(
	ctx context.Context, workspaceID, query string, sources []domain.SourceType, limit int,
) ([]domain.SearchResult, error) {
	items, err := s.items.SearchLexical(ctx, workspaceID, query, sources, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(items))
	for rank, item := range items {
		score := 1 - float64(rank)*lexicalRankDecay
		if score < lexicalScoreFloor {
			score = lexicalScoreFloor
		}
		results = append(results, domain.SearchResult{
			Item:    item,
			Score:   score,
			Snippet: extractSnippet(item.Content, query),
			Origin:  domain.OriginLexical,
		})
	}
	return results, nil
}

// Ask answers a question grounded on a small top-k search. An LLM
// failure degrades to a canned answer naming the number of documents
// found; search failure still surfaces.
func (s *Search) Ask(ctx context.Context, workspaceID, userID, question string) (*domain.Answer, error) {
	results, err := s.Search(ctx, workspaceID, userID, question, domain.SearchOptions{Limit: askTopK})
	if err != nil {
		return nil, err
	}

	messages := []domain.ChatMessage{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: buildQuestionPrompt(question, results)},
	}
	text, err := s.llm.Complete(ctx, messages)
	if err != nil {
		logger.Warn("ask for workspace %s: llm failed, degrading: %v", workspaceID, err)
		return &domain.Answer{Text: apologyAnswer(len(results)), Sources: results}, nil
	}
	return &domain.Answer{Text: text, Sources: results}, nil
}

// Converse answers with prior turns threaded into the LLM call. Sources
// below the relevance threshold are dropped before building context and
// from the returned answer.
func (s *Search) Converse(
	ctx context.Context, workspaceID, userID, question string, history []domain.ChatMessage,
) (*domain.Answer, error) {
	results, err := s.Search(ctx, workspaceID, userID, question, domain.SearchOptions{Limit: askTopK})
	if err != nil {
		return nil, err
	}

	relevant := results[:0:0]
	for _, r := range results {
		if r.Score >= relevanceThreshold {
			relevant = append(relevant, r)
		}
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: answerSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: buildQuestionPrompt(question, relevant)})

	text, err := s.llm.Complete(ctx, messages)
	if err != nil {
		logger.Warn("converse for workspace %s: llm failed, degrading: %v", workspaceID, err)
		return &domain.Answer{Text: apologyAnswer(len(relevant)), Sources: relevant}, nil
	}
	return &domain.Answer{Text: text, Sources: relevant}, nil
}

// buildQuestionPrompt assembles the context block: source type, title,
// relevance percentage and snippet per result.
func buildQuestionPrompt(question string, results []domain.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("Question: %s\n\nNo matching documents were found in the workspace.", question)
	}

	var sb strings.Builder
	sb.WriteString("Context documents:\n\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "[%s] %s (%.0f%% relevant)\n%s\n\n",
			r.Item.SourceType, r.Item.Title, r.Score*100, r.Snippet)
	}
	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}

// apologyAnswer is the degraded reply when the LLM is unavailable.
func apologyAnswer(found int) string {
	if found == 0 {
		return "Sorry, I could not generate an answer right now, and no matching documents were found. Please try again later."
	}
	return fmt.Sprintf("Sorry, I could not generate an answer right now. I found %d matching document(s) that may help; please try again later.", found)
}

// extractSnippet returns a window centered on the first
// case-insensitive occurrence of the query, or the leading window when
// the query does not occur. Ellipses mark truncation at either edge.
func extractSnippet(content, query string) string {
	runes := []rune(content)
	if len(runes) <= snippetWindow {
		return content
	}

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		return string(runes[:snippetWindow]) + "…"
	}

	center := len([]rune(content[:idx]))
	start := center - snippetWindow/2
	if start < 0 {
		start = 0
	}
	end := start + snippetWindow
	if end > len(runes) {
		end = len(runes)
		start = end - snippetWindow
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet += "…"
	}
	return snippet
}
