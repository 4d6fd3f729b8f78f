// Package services implements the driving ports: the sync coordinator,
// the search/ask/converse service and the scheduler.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
	"github.com/custodia-labs/hivemind/internal/logger"
)

// statusLookback bounds how far back GetSyncStatus reports finished jobs.
const statusLookback = time.Hour

// Coordinator fans sync requests out to the per-provider queues and
// aggregates their state. Queue handles are injected per provider.
type Coordinator struct {
	queues       map[domain.Provider]driven.SyncQueue
	integrations driven.IntegrationStore
}

var _ driving.SyncCoordinator = (*Coordinator)(nil)

// NewCoordinator creates the coordinator over the given queues.
func NewCoordinator(queues map[domain.Provider]driven.SyncQueue, integrations driven.IntegrationStore) *Coordinator {
	return &Coordinator{
		queues:       queues,
		integrations: integrations,
	}
}

// TriggerSync enqueues one job per eligible provider. A provider is
// eligible when it has an active integration and, if opts.Providers is
// set, appears in that subset. Enqueue failures are isolated per
// provider; the call only errors when no provider could be enqueued.
func (c *Coordinator) TriggerSync(
	ctx context.Context, workspaceID, userID string, opts domain.SyncOptions,
) (map[domain.Provider]string, error) {
	providers, err := c.eligibleProviders(ctx, workspaceID, opts.Providers)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: workspace %s has no matching active integration",
			domain.ErrNoTargets, workspaceID)
	}

	syncType := opts.Type
	if syncType == "" {
		syncType = domain.SyncIncremental
	}

	jobIDs := make(map[domain.Provider]string, len(providers))
	var lastErr error
	for _, provider := range providers {
		queue, ok := c.queues[provider]
		if !ok {
			lastErr = fmt.Errorf("%w: no queue for provider %s", domain.ErrUnsupportedType, provider)
			logger.Error("trigger sync: %v", lastErr)
			continue
		}

		id := domain.SyncJobID(provider, workspaceID, time.Now())
		job := domain.SyncJob{
			WorkspaceID: workspaceID,
			UserID:      userID,
			Provider:    provider,
			Type:        syncType,
			Since:       opts.Since,
			TargetItems: opts.TargetItems,
		}
		if err := queue.Enqueue(ctx, id, job); err != nil {
			lastErr = err
			logger.Error("trigger sync: enqueue %s for workspace %s: %v", provider, workspaceID, err)
			continue
		}
		jobIDs[provider] = id
	}

	if len(jobIDs) == 0 {
		return nil, fmt.Errorf("trigger sync for workspace %s: %w", workspaceID, lastErr)
	}
	return jobIDs, nil
}

// GetSyncStatus assembles the per-provider view: the active job if one
// runs, else waiting jobs, else the most recently finished job within
// the lookback window.
func (c *Coordinator) GetSyncStatus(ctx context.Context, workspaceID string) (*domain.WorkspaceSyncStatus, error) {
	status := &domain.WorkspaceSyncStatus{Jobs: []domain.ProviderJobStatus{}}

	for _, provider := range domain.AllProviders() {
		queue, ok := c.queues[provider]
		if !ok {
			continue
		}

		// One tier per provider: a running job supersedes anything
		// waiting, and waiting jobs supersede finished history.
		if snap, ok := queue.Active(workspaceID); ok {
			status.IsRunning = true
			status.Jobs = append(status.Jobs, toProviderStatus(provider, snap))
			continue
		}
		if waiting := queue.Waiting(workspaceID); len(waiting) > 0 {
			for _, snap := range waiting {
				status.Jobs = append(status.Jobs, toProviderStatus(provider, snap))
			}
			continue
		}
		if snap, ok := queue.MostRecentFinished(workspaceID, statusLookback); ok {
			status.Jobs = append(status.Jobs, toProviderStatus(provider, snap))
		}
	}
	return status, nil
}

// CancelSync removes waiting jobs, optionally for one provider only.
// Active jobs always run to completion.
func (c *Coordinator) CancelSync(ctx context.Context, workspaceID string, provider *domain.Provider) (int, error) {
	if provider != nil {
		queue, ok := c.queues[*provider]
		if !ok {
			return 0, fmt.Errorf("%w: no queue for provider %s", domain.ErrUnsupportedType, *provider)
		}
		return queue.CancelWaiting(workspaceID), nil
	}

	removed := 0
	for _, queue := range c.queues {
		removed += queue.CancelWaiting(workspaceID)
	}
	return removed, nil
}

// eligibleProviders intersects the workspace's active integrations with
// the requested subset.
func (c *Coordinator) eligibleProviders(
	ctx context.Context, workspaceID string, requested []domain.Provider,
) ([]domain.Provider, error) {
	active, err := c.integrations.ListActive(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}

	connected := make(map[domain.Provider]bool, len(active))
	for _, integ := range active {
		connected[integ.Provider] = true
	}

	if len(requested) == 0 {
		var providers []domain.Provider
		for _, provider := range domain.AllProviders() {
			if connected[provider] {
				providers = append(providers, provider)
			}
		}
		return providers, nil
	}

	var providers []domain.Provider
	for _, provider := range requested {
		if connected[provider] {
			providers = append(providers, provider)
		}
	}
	return providers, nil
}

func toProviderStatus(provider domain.Provider, snap driven.SyncJobSnapshot) domain.ProviderJobStatus {
	return domain.ProviderJobStatus{
		Provider:   provider,
		JobID:      snap.ID,
		State:      snap.State,
		Progress:   snap.Progress,
		Error:      snap.Error,
		EnqueuedAt: snap.EnqueuedAt,
		FinishedAt: snap.FinishedAt,
	}
}
