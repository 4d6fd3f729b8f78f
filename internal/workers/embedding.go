package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/queue"
)

const (
	// embedBatchSize bounds one embedding API call.
	embedBatchSize = 20

	// maxEmbedChars approximates the embedding model's 8000-token budget
	// at roughly 4 characters per token.
	maxEmbedChars = 32000

	// interBatchDelay spaces batches out to avoid bursting the API.
	interBatchDelay = 500 * time.Millisecond
)

// EmbeddingWorker consumes embedding jobs: it fetches each item's text,
// truncates it to the model budget, embeds it in fixed-size batches and
// upserts the resulting vectors.
type EmbeddingWorker struct {
	items    driven.ItemStore
	vectors  driven.VectorStore
	embedder driven.EmbeddingService

	// batchDelay is overridable in tests.
	batchDelay time.Duration
}

// NewEmbeddingWorker creates the worker.
func NewEmbeddingWorker(
	items driven.ItemStore,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
) *EmbeddingWorker {
	return &EmbeddingWorker{
		items:      items,
		vectors:    vectors,
		embedder:   embedder,
		batchDelay: interBatchDelay,
	}
}

// Handler adapts the worker to the embedding queue.
func (w *EmbeddingWorker) Handler() queue.Handler[domain.EmbeddingJob] {
	return func(ctx context.Context, job domain.EmbeddingJob, report func(domain.JobProgress)) error {
		result, err := w.Run(ctx, job, report)
		if err != nil {
			return err
		}
		if result.FailedCount > 0 {
			logger.Warn("embedding job for workspace %s: %d embedded, %d failed",
				job.WorkspaceID, result.ProcessedCount, result.FailedCount)
		}
		return nil
	}
}

// Run processes one embedding job. Per-item failures are counted and
// recorded but never abort the batch; items whose text is empty are
// skipped rather than failed. Cumulative progress is reported after
// every item so status queries track the job in real time.
func (w *EmbeddingWorker) Run(
	ctx context.Context, job domain.EmbeddingJob, report func(domain.JobProgress),
) (domain.EmbedResult, error) {
	var result domain.EmbedResult

	items, err := w.items.GetMany(ctx, job.ItemIDs)
	if err != nil {
		return result, fmt.Errorf("load items: %w", err)
	}

	total := len(items)
	tick := func() {
		report(domain.JobProgress{
			Phase:     "embedding",
			Processed: result.ProcessedCount + result.SkippedCount,
			Failed:    result.FailedCount,
			Total:     total,
		})
	}
	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		w.runBatch(ctx, job.WorkspaceID, items[start:end], &result, tick)

		if end < total {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(w.batchDelay):
			}
		}
	}
	return result, nil
}

// runBatch embeds one batch in a single API call and stores each vector
// against its item. A batch-level API failure marks every item in the
// batch failed; storage failures are per-item. tick is invoked once per
// settled item.
func (w *EmbeddingWorker) runBatch(
	ctx context.Context, workspaceID string, items []domain.Item,
	result *domain.EmbedResult, tick func(),
) {
	var ids []string
	var texts []string
	for i := range items {
		text := truncateText(items[i].EmbeddingText())
		if text == "" {
			result.SkippedCount++
			tick()
			continue
		}
		ids = append(ids, items[i].ID)
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(ids) {
		if err == nil {
			err = fmt.Errorf("got %d vectors for %d texts", len(vectors), len(ids))
		}
		for _, id := range ids {
			result.FailedCount++
			result.Errors = append(result.Errors, domain.ItemError{ItemID: id, Message: err.Error()})
			tick()
		}
		return
	}

	now := time.Now()
	for i, id := range ids {
		err := w.vectors.Upsert(ctx, domain.VectorRecord{
			ItemID:      id,
			WorkspaceID: workspaceID,
			Embedding:   vectors[i],
			UpdatedAt:   now,
		})
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, domain.ItemError{ItemID: id, Message: err.Error()})
			tick()
			continue
		}
		result.ProcessedCount++
		tick()
	}
}

// truncateText bounds text to the model's approximate token budget,
// cutting on a rune boundary.
func truncateText(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	runes := []rune(text)
	if len(runes) > maxEmbedChars {
		runes = runes[:maxEmbedChars]
	}
	return string(runes)
}
