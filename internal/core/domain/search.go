package domain

// ResultOrigin records which search path produced a result.
type ResultOrigin string

const (
	// OriginVector means the result came from nearest-neighbour search.
	OriginVector ResultOrigin = "vector"

	// OriginLexical means the result came from the lexical fallback.
	OriginLexical ResultOrigin = "lexical"
)

// SearchOptions configures a search query.
type SearchOptions struct {
	// Sources filters results to specific source types.
	Sources []SourceType

	// Limit is the maximum number of results. Defaults to 10.
	Limit int
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Item is the matched canonical item.
	Item Item

	// Score is the relevance score in [0, 1]. For vector hits this is
	// 1 - cosine distance; for lexical hits it is a rank-decay placeholder.
	Score float64

	// Snippet is a window of content around the first query occurrence.
	Snippet string

	// Origin records which search path produced the hit.
	Origin ResultOrigin
}

// ChatMessage is one turn in a conversation with the LLM.
type ChatMessage struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Answer is the outcome of a retrieval-augmented question.
type Answer struct {
	// Text is the generated answer, or a canned apology when the LLM
	// call failed.
	Text string

	// Sources lists the retrieved results the answer was grounded on.
	Sources []SearchResult
}
