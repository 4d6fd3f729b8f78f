package driven

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// VectorStore persists and searches item embeddings. Mutated only by
// the embedding worker, one item at a time.
type VectorStore interface {
	// Upsert stores the embedding for an item, replacing any previous
	// vector for the same item ID.
	Upsert(ctx context.Context, rec domain.VectorRecord) error

	// Search finds the nearest neighbours to the query vector among
	// non-deleted items of the workspace, optionally filtered by source
	// type. Results are ordered by similarity descending.
	Search(ctx context.Context, workspaceID string, query []float32, sources []domain.SourceType, limit int) ([]VectorHit, error)

	// Delete removes the vector for an item.
	Delete(ctx context.Context, itemID string) error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ItemID is the matched item.
	ItemID string

	// Similarity is 1 minus the cosine distance, in [0, 1].
	Similarity float64
}
