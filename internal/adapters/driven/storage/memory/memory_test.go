package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

func draft(st domain.SourceType, externalID, title string) domain.ItemDraft {
	return domain.ItemDraft{
		SourceType: st,
		ExternalID: externalID,
		Title:      title,
		Content:    "content of " + title,
		Importance: 0.5,
	}
}

func TestItemStore_UpsertIsIdempotent(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	first, created, err := s.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "github:issue:r:1", "v1"))
	require.NoError(t, err)
	assert.True(t, created)
	require.NotEmpty(t, first.ID)

	second, created, err := s.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "github:issue:r:1", "v2"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "v2", second.Title)
	assert.Equal(t, 1, s.Count())
}

func TestItemStore_IdentityTripleScopesUpserts(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	_, _, err := s.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "x", "a"))
	require.NoError(t, err)
	_, created, err := s.Upsert(ctx, "ws-2", draft(domain.SourceGitHubIssue, "x", "b"))
	require.NoError(t, err)
	assert.True(t, created, "same external id in another workspace is a new item")

	_, created, err = s.Upsert(ctx, "ws-1", draft(domain.SourceSlackMessage, "x", "c"))
	require.NoError(t, err)
	assert.True(t, created, "same external id under another source type is a new item")
	assert.Equal(t, 3, s.Count())
}

func TestItemStore_SearchLexicalOrdering(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	low := draft(domain.SourceGitHubIssue, "a", "deploy guide old")
	low.Importance = 0.2
	high := draft(domain.SourceNotionPage, "b", "deploy runbook")
	high.Importance = 0.9
	mid := draft(domain.SourceSlackThread, "c", "deploy chatter")
	mid.Importance = 0.2 // ties with low; newer wins

	_, _, err := s.Upsert(ctx, "ws-1", low)
	require.NoError(t, err)
	_, _, err = s.Upsert(ctx, "ws-1", high)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, _, err = s.Upsert(ctx, "ws-1", mid)
	require.NoError(t, err)

	got, err := s.SearchLexical(ctx, "ws-1", "DEPLOY", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "deploy runbook", got[0].Title)
	assert.Equal(t, "deploy chatter", got[1].Title)
	assert.Equal(t, "deploy guide old", got[2].Title)
}

func TestItemStore_SearchLexicalFilters(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	_, _, err := s.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "a", "needle issue"))
	require.NoError(t, err)
	deleted, _, err := s.Upsert(ctx, "ws-1", draft(domain.SourceNotionPage, "b", "needle page"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, deleted.ID))
	_, _, err = s.Upsert(ctx, "ws-2", draft(domain.SourceGitHubIssue, "c", "needle elsewhere"))
	require.NoError(t, err)

	got, err := s.SearchLexical(ctx, "ws-1", "needle", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "needle issue", got[0].Title)

	got, err = s.SearchLexical(ctx, "ws-1", "needle", []domain.SourceType{domain.SourceSlackThread}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestItemStore_GetMany_SkipsMissing(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	item, _, err := s.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "a", "t"))
	require.NoError(t, err)

	got, err := s.GetMany(ctx, []string{item.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, item.ID, got[0].ID)
}

func TestVectorStore_SearchRanksBySimilarity(t *testing.T) {
	items := NewItemStore()
	vectors := NewVectorStore(items)
	ctx := context.Background()

	a, _, err := items.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "a", "close"))
	require.NoError(t, err)
	b, _, err := items.Upsert(ctx, "ws-1", draft(domain.SourceNotionPage, "b", "far"))
	require.NoError(t, err)

	require.NoError(t, vectors.Upsert(ctx, domain.VectorRecord{ItemID: a.ID, WorkspaceID: "ws-1", Embedding: []float32{1, 0}}))
	require.NoError(t, vectors.Upsert(ctx, domain.VectorRecord{ItemID: b.ID, WorkspaceID: "ws-1", Embedding: []float32{0, 1}}))

	hits, err := vectors.Search(ctx, "ws-1", []float32{1, 0.1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, a.ID, hits[0].ItemID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorStore_SearchExcludesDeletedItems(t *testing.T) {
	items := NewItemStore()
	vectors := NewVectorStore(items)
	ctx := context.Background()

	a, _, err := items.Upsert(ctx, "ws-1", draft(domain.SourceGitHubIssue, "a", "t"))
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, domain.VectorRecord{ItemID: a.ID, WorkspaceID: "ws-1", Embedding: []float32{1, 0}}))
	require.NoError(t, items.Delete(ctx, a.ID))

	hits, err := vectors.Search(ctx, "ws-1", []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_UpsertReplacesInPlace(t *testing.T) {
	vectors := NewVectorStore(nil)
	ctx := context.Background()

	require.NoError(t, vectors.Upsert(ctx, domain.VectorRecord{ItemID: "i1", WorkspaceID: "ws-1", Embedding: []float32{1, 0}}))
	require.NoError(t, vectors.Upsert(ctx, domain.VectorRecord{ItemID: "i1", WorkspaceID: "ws-1", Embedding: []float32{0, 1}}))

	assert.Equal(t, 1, vectors.Count())
	rec, ok := vectors.Get("i1")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, rec.Embedding)
}

func TestIntegrationStore_SaveAndTokens(t *testing.T) {
	s := NewIntegrationStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.Integration{
		WorkspaceID:     "ws-1",
		Provider:        domain.ProviderGitHub,
		AccessToken:     "tok-1",
		SelectedTargets: []string{"acme/widgets"},
	}))

	token, err := s.GetDecryptedAccessToken(ctx, "ws-1", domain.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Absent connections yield an empty token, not an error.
	token, err = s.GetDecryptedAccessToken(ctx, "ws-1", domain.ProviderSlack)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestIntegrationStore_ListActiveWorkspaces(t *testing.T) {
	s := NewIntegrationStore()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Save(ctx, domain.Integration{WorkspaceID: "ws-b", Provider: domain.ProviderGitHub}))
	require.NoError(t, s.Save(ctx, domain.Integration{WorkspaceID: "ws-a", Provider: domain.ProviderSlack}))
	require.NoError(t, s.Save(ctx, domain.Integration{WorkspaceID: "ws-a", Provider: domain.ProviderNotion}))
	require.NoError(t, s.Save(ctx, domain.Integration{WorkspaceID: "ws-c", Provider: domain.ProviderGitHub, DeletedAt: &now}))

	workspaces, err := s.ListActiveWorkspaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws-a", "ws-b"}, workspaces)
}
