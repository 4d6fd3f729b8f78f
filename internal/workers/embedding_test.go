package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// fakeEmbedder returns deterministic vectors and records batch sizes.
type fakeEmbedder struct {
	mu         sync.Mutex
	batchSizes []int
	maxLen     int
	err        error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		if len(text) > f.maxLen {
			f.maxLen = len(text)
		}
		vecs[i] = []float32{float32(len(text)), 1}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }

func embeddingFixture(t *testing.T, count int) (*EmbeddingWorker, *memory.ItemStore, *memory.VectorStore, *fakeEmbedder, domain.EmbeddingJob) {
	t.Helper()
	items := memory.NewItemStore()
	vectors := memory.NewVectorStore(items)
	embedder := &fakeEmbedder{}
	w := NewEmbeddingWorker(items, vectors, embedder)
	w.batchDelay = time.Millisecond

	job := domain.EmbeddingJob{WorkspaceID: "ws-1"}
	for i := 0; i < count; i++ {
		item, _, err := items.Upsert(context.Background(), "ws-1", domain.ItemDraft{
			SourceType: domain.SourceGitHubIssue,
			ExternalID: fmt.Sprintf("e%d", i),
			Title:      fmt.Sprintf("item %d", i),
			Content:    "body",
		})
		require.NoError(t, err)
		job.ItemIDs = append(job.ItemIDs, item.ID)
	}
	return w, items, vectors, embedder, job
}

func TestEmbeddingWorker_BatchesOfTwenty(t *testing.T) {
	w, _, vectors, embedder, job := embeddingFixture(t, 45)

	result, err := w.Run(context.Background(), job, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 45, result.ProcessedCount)
	assert.Zero(t, result.FailedCount)
	assert.Equal(t, []int{20, 20, 5}, embedder.batchSizes)
	assert.Equal(t, 45, vectors.Count())
}

func TestEmbeddingWorker_SkipsEmptyText(t *testing.T) {
	w, items, vectors, _, job := embeddingFixture(t, 1)

	empty, _, err := items.Upsert(context.Background(), "ws-1", domain.ItemDraft{
		SourceType: domain.SourceSlackMessage,
		ExternalID: "empty",
	})
	require.NoError(t, err)
	job.ItemIDs = append(job.ItemIDs, empty.ID)

	result, err := w.Run(context.Background(), job, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, result.FailedCount, "empty items are skipped, not failed")
	_, ok := vectors.Get(empty.ID)
	assert.False(t, ok)
}

func TestEmbeddingWorker_TruncatesLongText(t *testing.T) {
	items := memory.NewItemStore()
	vectors := memory.NewVectorStore(items)
	embedder := &fakeEmbedder{}
	w := NewEmbeddingWorker(items, vectors, embedder)
	w.batchDelay = time.Millisecond

	item, _, err := items.Upsert(context.Background(), "ws-1", domain.ItemDraft{
		SourceType: domain.SourceNotionPage,
		ExternalID: "big",
		Title:      "big page",
		Content:    strings.Repeat("a", maxEmbedChars*2),
	})
	require.NoError(t, err)

	result, err := w.Run(context.Background(), domain.EmbeddingJob{
		WorkspaceID: "ws-1", ItemIDs: []string{item.ID},
	}, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.LessOrEqual(t, embedder.maxLen, maxEmbedChars)
}

func TestEmbeddingWorker_BatchFailureIsCountedNotFatal(t *testing.T) {
	w, _, vectors, embedder, job := embeddingFixture(t, 3)
	embedder.err = errors.New("api down")

	result, err := w.Run(context.Background(), job, noProgress)

	require.NoError(t, err, "per-item failures never fail the job")
	assert.Zero(t, result.ProcessedCount)
	assert.Equal(t, 3, result.FailedCount)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, job.ItemIDs[0], result.Errors[0].ItemID)
	assert.Zero(t, vectors.Count())
}

func TestEmbeddingWorker_MissingItemsAreIgnored(t *testing.T) {
	w, _, vectors, _, job := embeddingFixture(t, 2)
	job.ItemIDs = append(job.ItemIDs, "no-such-item")

	result, err := w.Run(context.Background(), job, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 2, vectors.Count())
}

func TestEmbeddingWorker_ReportsProgressPerItem(t *testing.T) {
	w, _, _, _, job := embeddingFixture(t, 25)

	var reports []domain.JobProgress
	_, err := w.Run(context.Background(), job, func(p domain.JobProgress) {
		reports = append(reports, p)
	})

	require.NoError(t, err)
	// One report per item, not one per batch.
	require.Len(t, reports, 25)
	for i, p := range reports {
		assert.Equal(t, "embedding", p.Phase)
		assert.Equal(t, i+1, p.Processed, "processed count is cumulative")
		assert.Zero(t, p.Failed)
		assert.Equal(t, 25, p.Total)
	}
	assert.Equal(t, 100, reports[len(reports)-1].Percent())
}

func TestEmbeddingWorker_ProgressCountsFailures(t *testing.T) {
	w, _, _, embedder, job := embeddingFixture(t, 3)
	embedder.err = errors.New("api down")

	var reports []domain.JobProgress
	_, err := w.Run(context.Background(), job, func(p domain.JobProgress) {
		reports = append(reports, p)
	})

	require.NoError(t, err)
	require.Len(t, reports, 3)
	last := reports[len(reports)-1]
	assert.Zero(t, last.Processed)
	assert.Equal(t, 3, last.Failed)
	assert.Equal(t, 3, last.Total)
	assert.Equal(t, 100, last.Percent())
}

func TestEmbeddingWorker_UpsertReplacesExistingVector(t *testing.T) {
	w, items, vectors, _, job := embeddingFixture(t, 1)

	_, err := w.Run(context.Background(), job, noProgress)
	require.NoError(t, err)
	first, ok := vectors.Get(job.ItemIDs[0])
	require.True(t, ok)

	// The item's text changed; re-embedding updates in place.
	_, _, err = items.Upsert(context.Background(), "ws-1", domain.ItemDraft{
		SourceType: domain.SourceGitHubIssue,
		ExternalID: "e0",
		Title:      "item 0 with a much longer edited title",
		Content:    "body",
	})
	require.NoError(t, err)

	_, err = w.Run(context.Background(), job, noProgress)
	require.NoError(t, err)

	assert.Equal(t, 1, vectors.Count())
	second, ok := vectors.Get(job.ItemIDs[0])
	require.True(t, ok)
	assert.NotEqual(t, first.Embedding, second.Embedding)
}
