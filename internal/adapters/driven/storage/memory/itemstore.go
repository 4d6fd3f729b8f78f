// Package memory provides map-backed implementations of the storage
// ports. They back unit tests and single-process development runs; the
// postgres package is the production counterpart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// ItemStore is an in-memory ItemStore.
type ItemStore struct {
	mu        sync.RWMutex
	items     map[string]domain.Item    // by ID
	byTriple  map[string]string         // identity triple -> ID
	relations []domain.ItemRelation
}

var _ driven.ItemStore = (*ItemStore)(nil)

// NewItemStore creates an empty store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items:    make(map[string]domain.Item),
		byTriple: make(map[string]string),
	}
}

func tripleKey(workspaceID string, sourceType domain.SourceType, externalID string) string {
	return workspaceID + "\x00" + string(sourceType) + "\x00" + externalID
}

// Upsert inserts or updates by identity triple, preserving ID and
// CreatedAt on update.
func (s *ItemStore) Upsert(ctx context.Context, workspaceID string, draft domain.ItemDraft) (domain.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	key := tripleKey(workspaceID, draft.SourceType, draft.ExternalID)

	if id, ok := s.byTriple[key]; ok {
		item := s.items[id]
		item.Title = draft.Title
		item.Content = draft.Content
		item.URL = draft.URL
		item.Metadata = draft.Metadata
		item.Importance = draft.Importance
		item.UpdatedAt = now
		s.items[id] = item
		return item, false, nil
	}

	item := domain.Item{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		SourceType:  draft.SourceType,
		ExternalID:  draft.ExternalID,
		Title:       draft.Title,
		Content:     draft.Content,
		URL:         draft.URL,
		Metadata:    draft.Metadata,
		Importance:  draft.Importance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.items[item.ID] = item
	s.byTriple[key] = item.ID
	return item, true, nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

// GetByIdentity retrieves an item by its identity triple.
func (s *ItemStore) GetByIdentity(ctx context.Context, workspaceID string, sourceType domain.SourceType, externalID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTriple[tripleKey(workspaceID, sourceType, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item := s.items[id]
	return &item, nil
}

// GetMany retrieves items by ID, skipping missing ones.
func (s *ItemStore) GetMany(ctx context.Context, ids []string) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// SearchLexical performs case-insensitive substring search ordered by
// importance descending then recency descending.
func (s *ItemStore) SearchLexical(ctx context.Context, workspaceID, query string, sources []domain.SourceType, limit int) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var matches []domain.Item
	for _, item := range s.items {
		if item.WorkspaceID != workspaceID || item.IsDeleted() {
			continue
		}
		if !sourceAllowed(item.SourceType, sources) {
			continue
		}
		if !strings.Contains(strings.ToLower(item.Title), needle) &&
			!strings.Contains(strings.ToLower(item.Content), needle) {
			continue
		}
		matches = append(matches, item)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Importance != matches[j].Importance {
			return matches[i].Importance > matches[j].Importance
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delete soft-deletes an item.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	item.DeletedAt = &now
	s.items[id] = item
	return nil
}

// SaveRelation stores an edge between two items.
func (s *ItemStore) SaveRelation(ctx context.Context, rel domain.ItemRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[rel.FromItemID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.items[rel.ToItemID]; !ok {
		return domain.ErrNotFound
	}
	s.relations = append(s.relations, rel)
	return nil
}

// Count returns how many items exist, deleted included. Test helper.
func (s *ItemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func sourceAllowed(st domain.SourceType, sources []domain.SourceType) bool {
	if len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if s == st {
			return true
		}
	}
	return false
}
