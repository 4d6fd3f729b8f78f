package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

const itemColumns = `id, workspace_id, source_type, external_id, title, content, url,
	metadata, importance, created_at, updated_at, deleted_at`

// itemStore implements driven.ItemStore.
type itemStore struct {
	store *Store
}

var _ driven.ItemStore = (*itemStore)(nil)

// Upsert inserts or updates by the identity triple. ID and created_at
// survive updates; xmax = 0 distinguishes an insert from an update.
func (s *itemStore) Upsert(ctx context.Context, workspaceID string, draft domain.ItemDraft) (domain.Item, bool, error) {
	metadataJSON, err := json.Marshal(draft.Metadata)
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	row := s.store.pool.QueryRow(ctx, `
		INSERT INTO items (id, workspace_id, source_type, external_id, title, content, url,
			metadata, importance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (workspace_id, source_type, external_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			url = excluded.url,
			metadata = excluded.metadata,
			importance = excluded.importance,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0)
	`, uuid.NewString(), workspaceID, string(draft.SourceType), draft.ExternalID,
		draft.Title, draft.Content, draft.URL, metadataJSON, draft.Importance, now)

	item := domain.Item{
		WorkspaceID: workspaceID,
		SourceType:  draft.SourceType,
		ExternalID:  draft.ExternalID,
		Title:       draft.Title,
		Content:     draft.Content,
		URL:         draft.URL,
		Metadata:    draft.Metadata,
		Importance:  draft.Importance,
	}
	var created bool
	if err := row.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &created); err != nil {
		return domain.Item{}, false, fmt.Errorf("upserting item: %w", err)
	}
	return item, created, nil
}

// Get retrieves an item by ID.
func (s *itemStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	row := s.store.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetByIdentity retrieves an item by its identity triple.
func (s *itemStore) GetByIdentity(
	ctx context.Context, workspaceID string, sourceType domain.SourceType, externalID string,
) (*domain.Item, error) {
	row := s.store.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE workspace_id = $1 AND source_type = $2 AND external_id = $3`,
		workspaceID, string(sourceType), externalID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting item by identity: %w", err)
	}
	return item, nil
}

// GetMany retrieves items by ID, skipping missing ones.
func (s *itemStore) GetMany(ctx context.Context, ids []string) ([]domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.store.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// SearchLexical performs case-insensitive substring search over title
// and content, importance descending then recency descending.
func (s *itemStore) SearchLexical(
	ctx context.Context, workspaceID, query string, sources []domain.SourceType, limit int,
) ([]domain.Item, error) {
	pattern := "%" + escapeLike(query) + "%"
	sql := `SELECT ` + itemColumns + ` FROM items
		WHERE workspace_id = $1 AND deleted_at IS NULL
		  AND (title ILIKE $2 OR content ILIKE $2)`
	args := []any{workspaceID, pattern}

	if len(sources) > 0 {
		args = append(args, sourceStrings(sources))
		sql += fmt.Sprintf(" AND source_type = ANY($%d)", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY importance DESC, updated_at DESC LIMIT $%d", len(args))

	rows, err := s.store.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var items []domain.Item //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// Delete soft-deletes an item.
func (s *itemStore) Delete(ctx context.Context, id string) error {
	tag, err := s.store.pool.Exec(ctx,
		`UPDATE items SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveRelation stores an edge between two items.
func (s *itemStore) SaveRelation(ctx context.Context, rel domain.ItemRelation) error {
	createdAt := rel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.store.pool.Exec(ctx, `
		INSERT INTO item_relations (from_item_id, to_item_id, relation_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_item_id, to_item_id, relation_type) DO NOTHING
	`, rel.FromItemID, rel.ToItemID, string(rel.Type), createdAt)
	if err != nil {
		return fmt.Errorf("saving relation: %w", err)
	}
	return nil
}

// scanItem reads one item row; works for both QueryRow and Rows.
func scanItem(row pgx.Row) (*domain.Item, error) {
	var item domain.Item
	var sourceType string
	var metadataJSON []byte
	if err := row.Scan(&item.ID, &item.WorkspaceID, &sourceType, &item.ExternalID,
		&item.Title, &item.Content, &item.URL, &metadataJSON, &item.Importance,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt); err != nil {
		return nil, err
	}
	item.SourceType = domain.SourceType(sourceType)
	if err := json.Unmarshal(metadataJSON, &item.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return &item, nil
}

// escapeLike neutralizes LIKE metacharacters in user queries.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sourceStrings(sources []domain.SourceType) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
