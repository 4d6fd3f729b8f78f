package domain

import (
	"time"
)

// Item is the canonical, provider-agnostic representation of one piece
// of external content. The (WorkspaceID, SourceType, ExternalID) triple
// is the stable identity: re-syncing the same external object updates
// the existing row, never creates a duplicate.
type Item struct {
	// ID is the unique identifier (UUID).
	ID string

	// WorkspaceID scopes the item to a workspace.
	WorkspaceID string

	// SourceType identifies the kind of content (issue, thread, page...).
	SourceType SourceType

	// ExternalID is the provider-specific stable identifier, derived
	// from immutable provider fields. Unique within (workspace, source type).
	ExternalID string

	// Title is the human-readable title.
	Title string

	// Content is the full flattened text, used for display and embedding.
	Content string

	// URL is the original location at the provider, if any.
	URL string

	// Metadata contains provider-specific facts (labels, author, reactions...).
	Metadata map[string]any

	// Importance is a heuristic 0-1 relevance weight.
	Importance float64

	// CreatedAt is when the item was first synced. Immutable.
	CreatedAt time.Time

	// UpdatedAt is when the item was last touched by a sync or webhook.
	UpdatedAt time.Time

	// DeletedAt marks a soft-deleted item. Soft deletion only happens
	// through explicit item deletion, never through sync.
	DeletedAt *time.Time
}

// ItemDraft is the transformer output: everything needed to upsert an
// item except storage-assigned identity and timestamps.
type ItemDraft struct {
	SourceType SourceType
	ExternalID string
	Title      string
	Content    string
	URL        string
	Metadata   map[string]any
	Importance float64
}

// EmbeddingText returns the text submitted for embedding: title and
// content concatenated.
func (i *Item) EmbeddingText() string {
	if i.Title == "" {
		return i.Content
	}
	if i.Content == "" {
		return i.Title
	}
	return i.Title + "\n\n" + i.Content
}

// IsDeleted reports whether the item has been soft-deleted.
func (i *Item) IsDeleted() bool {
	return i.DeletedAt != nil
}

// VectorRecord is the embedding for one item. One-to-one with Item and
// recomputed in place whenever the item's text changes.
type VectorRecord struct {
	// ItemID is the owning item. Unique.
	ItemID string

	// WorkspaceID mirrors the item's workspace for scoped search.
	WorkspaceID string

	// Embedding is the vector, fixed dimensionality per embedding model.
	Embedding []float32

	// CreatedAt is when the vector was first computed.
	CreatedAt time.Time

	// UpdatedAt is when the vector was last recomputed.
	UpdatedAt time.Time
}

// RelationType labels an edge between two items.
type RelationType string

const (
	// RelationMentions marks an item that mentions another.
	RelationMentions RelationType = "mentions"

	// RelationReferences marks an explicit cross-reference.
	RelationReferences RelationType = "references"

	// RelationDerivedFrom marks content derived from another item.
	RelationDerivedFrom RelationType = "derived_from"
)

// ItemRelation is an optional edge between two items. Present in the
// data model but not exercised by the sync pipeline.
type ItemRelation struct {
	FromItemID string
	ToItemID   string
	Type       RelationType
	CreatedAt  time.Time
}

// ClampScore bounds an importance score to [0, 1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
