package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore on pgvector.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Upsert stores the embedding for an item, replacing any previous one.
func (s *vectorStore) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	now := time.Now().UTC()
	_, err := s.store.pool.Exec(ctx, `
		INSERT INTO item_vectors (item_id, workspace_id, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, rec.ItemID, rec.WorkspaceID, pgvector.NewVector(rec.Embedding), now)
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}
	return nil
}

// Search runs cosine similarity search, joining items to exclude
// soft-deleted rows and to filter by source type.
func (s *vectorStore) Search(
	ctx context.Context, workspaceID string, query []float32, sources []domain.SourceType, limit int,
) ([]driven.VectorHit, error) {
	sql := `SELECT v.item_id, 1 - (v.embedding <=> $1) AS similarity
		FROM item_vectors v
		JOIN items i ON i.id = v.item_id
		WHERE v.workspace_id = $2 AND i.deleted_at IS NULL`
	args := []any{pgvector.NewVector(query), workspaceID}

	if len(sources) > 0 {
		args = append(args, sourceStrings(sources))
		sql += fmt.Sprintf(" AND i.source_type = ANY($%d)", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY v.embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.store.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.ItemID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// Delete removes the vector for an item.
func (s *vectorStore) Delete(ctx context.Context, itemID string) error {
	if _, err := s.store.pool.Exec(ctx,
		`DELETE FROM item_vectors WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	return nil
}
