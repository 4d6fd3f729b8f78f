package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// Ensure EmbeddingQueue implements the port.
var _ driven.EmbeddingEnqueuer = (*EmbeddingQueue)(nil)

// EmbeddingQueue carries item-ID batches to the embedding worker.
type EmbeddingQueue struct {
	q *Queue[domain.EmbeddingJob]
}

// NewEmbeddingQueue creates the embedding queue.
func NewEmbeddingQueue(handler Handler[domain.EmbeddingJob], opts Options) *EmbeddingQueue {
	return &EmbeddingQueue{
		q: New("embedding", handler,
			func(j domain.EmbeddingJob) string { return j.WorkspaceID }, opts),
	}
}

// Start launches the consumer goroutine.
func (e *EmbeddingQueue) Start(ctx context.Context) { e.q.Start(ctx) }

// Stop shuts the queue down.
func (e *EmbeddingQueue) Stop() { e.q.Stop() }

// EnqueueEmbedding adds an embedding job.
func (e *EmbeddingQueue) EnqueueEmbedding(ctx context.Context, job domain.EmbeddingJob) error {
	id := fmt.Sprintf("embed-%s-%d", job.WorkspaceID, time.Now().UnixNano())
	return e.q.Enqueue(ctx, id, job)
}
