package driving

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// SyncCoordinator accepts sync requests and fans them out to
// per-provider queues.
type SyncCoordinator interface {
	// TriggerSync enqueues one job per eligible provider and returns
	// the job IDs keyed by provider. An enqueue failure for one
	// provider never blocks the others.
	TriggerSync(ctx context.Context, workspaceID, userID string, opts domain.SyncOptions) (map[domain.Provider]string, error)

	// GetSyncStatus reports per-provider job state for the workspace.
	GetSyncStatus(ctx context.Context, workspaceID string) (*domain.WorkspaceSyncStatus, error)

	// CancelSync removes waiting jobs for the workspace, optionally
	// restricted to one provider. Running jobs are not preempted.
	CancelSync(ctx context.Context, workspaceID string, provider *domain.Provider) (int, error)
}
