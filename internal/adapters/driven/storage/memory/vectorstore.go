package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// VectorStore is an in-memory VectorStore using brute-force cosine
// similarity. Source filtering and deletion checks consult the item
// store it is paired with.
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord // by item ID
	items   *ItemStore
}

var _ driven.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates an empty store over the given item store.
func NewVectorStore(items *ItemStore) *VectorStore {
	return &VectorStore{
		records: make(map[string]domain.VectorRecord),
		items:   items,
	}
}

// Upsert stores the embedding for an item.
func (s *VectorStore) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[rec.ItemID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.records[rec.ItemID] = rec
	return nil
}

// Search returns the nearest neighbours by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, workspaceID string, query []float32, sources []domain.SourceType, limit int) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.VectorHit
	for _, rec := range s.records {
		if rec.WorkspaceID != workspaceID {
			continue
		}
		if s.items != nil {
			item, err := s.items.Get(ctx, rec.ItemID)
			if err != nil || item.IsDeleted() || !sourceAllowed(item.SourceType, sources) {
				continue
			}
		}
		hits = append(hits, driven.VectorHit{
			ItemID:     rec.ItemID,
			Similarity: cosineSimilarity(query, rec.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes the vector for an item.
func (s *VectorStore) Delete(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, itemID)
	return nil
}

// Get returns the stored record for an item. Test helper.
func (s *VectorStore) Get(itemID string) (domain.VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[itemID]
	return rec, ok
}

// Count returns the number of stored vectors. Test helper.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
