package driven

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// ItemStore persists canonical items. It is the only store mutated
// concurrently by multiple workers; upserts are keyed by the
// (workspace, source type, external id) identity triple so concurrent
// writes for different external objects never conflict.
type ItemStore interface {
	// Upsert inserts a new item for the draft's identity or updates the
	// mutable fields of the existing one, preserving ID and CreatedAt.
	// Returns the stored item and whether it was newly created.
	Upsert(ctx context.Context, workspaceID string, draft domain.ItemDraft) (domain.Item, bool, error)

	// Get retrieves an item by ID.
	Get(ctx context.Context, id string) (*domain.Item, error)

	// GetByIdentity retrieves an item by its identity triple.
	GetByIdentity(ctx context.Context, workspaceID string, sourceType domain.SourceType, externalID string) (*domain.Item, error)

	// GetMany retrieves items by ID, skipping missing ones.
	GetMany(ctx context.Context, ids []string) ([]domain.Item, error)

	// SearchLexical performs case-insensitive substring search over
	// title and content for non-deleted workspace items, ordered by
	// importance descending then recency descending.
	SearchLexical(ctx context.Context, workspaceID, query string, sources []domain.SourceType, limit int) ([]domain.Item, error)

	// Delete soft-deletes an item.
	Delete(ctx context.Context, id string) error

	// SaveRelation stores an edge between two items.
	SaveRelation(ctx context.Context, rel domain.ItemRelation) error
}
