package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// SyncJobSnapshot is a point-in-time view of one queued sync job.
type SyncJobSnapshot struct {
	ID         string
	Job        domain.SyncJob
	State      domain.JobState
	Progress   domain.JobProgress
	Error      string
	EnqueuedAt time.Time
	FinishedAt *time.Time
}

// SyncQueue is one provider's job queue. Each provider has its own
// independent queue; handles are injected, never global.
type SyncQueue interface {
	// Enqueue adds a job under the given ID.
	Enqueue(ctx context.Context, id string, job domain.SyncJob) error

	// Active returns the running job for a workspace, if any.
	Active(workspaceID string) (SyncJobSnapshot, bool)

	// Waiting returns jobs for a workspace that have not started.
	Waiting(workspaceID string) []SyncJobSnapshot

	// MostRecentFinished returns the latest completed or failed job for
	// a workspace within the lookback window.
	MostRecentFinished(workspaceID string, lookback time.Duration) (SyncJobSnapshot, bool)

	// CancelWaiting removes waiting jobs for a workspace and returns
	// how many were removed. Active jobs are never preempted.
	CancelWaiting(workspaceID string) int
}

// EmbeddingEnqueuer hands a batch of item IDs to the embedding worker.
// Implemented by the embedding queue; consumed by sync workers and the
// webhook path so both share the same at-least-once semantics.
type EmbeddingEnqueuer interface {
	EnqueueEmbedding(ctx context.Context, job domain.EmbeddingJob) error
}
