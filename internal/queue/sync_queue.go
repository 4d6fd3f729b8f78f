package queue

import (
	"context"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// Ensure SyncQueue implements the port.
var _ driven.SyncQueue = (*SyncQueue)(nil)

// SyncQueue adapts the generic queue to the sync-job port.
type SyncQueue struct {
	q *Queue[domain.SyncJob]
}

// NewSyncQueue creates one provider's sync queue.
func NewSyncQueue(provider domain.Provider, handler Handler[domain.SyncJob], opts Options) *SyncQueue {
	return &SyncQueue{
		q: New("sync-"+provider.String(), handler,
			func(j domain.SyncJob) string { return j.WorkspaceID }, opts),
	}
}

// Start launches the consumer goroutine.
func (s *SyncQueue) Start(ctx context.Context) { s.q.Start(ctx) }

// Stop shuts the queue down.
func (s *SyncQueue) Stop() { s.q.Stop() }

// Enqueue adds a sync job under the given ID.
func (s *SyncQueue) Enqueue(ctx context.Context, id string, job domain.SyncJob) error {
	return s.q.Enqueue(ctx, id, job)
}

// Active returns the running job for a workspace, if any.
func (s *SyncQueue) Active(workspaceID string) (driven.SyncJobSnapshot, bool) {
	snap, ok := s.q.Active(workspaceID)
	if !ok {
		return driven.SyncJobSnapshot{}, false
	}
	return toPortSnapshot(snap), true
}

// Waiting returns jobs for a workspace that have not started.
func (s *SyncQueue) Waiting(workspaceID string) []driven.SyncJobSnapshot {
	snaps := s.q.Waiting(workspaceID)
	out := make([]driven.SyncJobSnapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = toPortSnapshot(snap)
	}
	return out
}

// MostRecentFinished returns the latest finished job within lookback.
func (s *SyncQueue) MostRecentFinished(workspaceID string, lookback time.Duration) (driven.SyncJobSnapshot, bool) {
	snap, ok := s.q.MostRecentFinished(workspaceID, lookback)
	if !ok {
		return driven.SyncJobSnapshot{}, false
	}
	return toPortSnapshot(snap), true
}

// CancelWaiting removes waiting jobs for a workspace.
func (s *SyncQueue) CancelWaiting(workspaceID string) int {
	return s.q.CancelWaiting(workspaceID)
}

func toPortSnapshot(snap Snapshot[domain.SyncJob]) driven.SyncJobSnapshot {
	return driven.SyncJobSnapshot{
		ID:         snap.ID,
		Job:        snap.Payload,
		State:      snap.State,
		Progress:   snap.Progress,
		Error:      snap.Error,
		EnqueuedAt: snap.EnqueuedAt,
		FinishedAt: snap.FinishedAt,
	}
}
