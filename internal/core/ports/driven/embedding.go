package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations must retry rate-limit and 5xx responses with backoff
// and surface other 4xx responses immediately, and must return one
// vector per input in input order (re-sorting by the API's index field
// when the provider answers out of order).
type EmbeddingService interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call,
	// up to the provider's batch limit.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
