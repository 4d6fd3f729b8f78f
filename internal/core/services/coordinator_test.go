package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// stubQueue records enqueues and serves canned snapshots.
type stubQueue struct {
	enqueued   []driven.SyncJobSnapshot
	enqueueErr error
	active     *driven.SyncJobSnapshot
	waiting    []driven.SyncJobSnapshot
	finished   *driven.SyncJobSnapshot
	cancelled  int
}

func (q *stubQueue) Enqueue(_ context.Context, id string, job domain.SyncJob) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, driven.SyncJobSnapshot{ID: id, Job: job, State: domain.JobWaiting})
	return nil
}

func (q *stubQueue) Active(string) (driven.SyncJobSnapshot, bool) {
	if q.active == nil {
		return driven.SyncJobSnapshot{}, false
	}
	return *q.active, true
}

func (q *stubQueue) Waiting(string) []driven.SyncJobSnapshot { return q.waiting }

func (q *stubQueue) MostRecentFinished(string, time.Duration) (driven.SyncJobSnapshot, bool) {
	if q.finished == nil {
		return driven.SyncJobSnapshot{}, false
	}
	return *q.finished, true
}

func (q *stubQueue) CancelWaiting(string) int { return q.cancelled }

func connect(t *testing.T, store *memory.IntegrationStore, providers ...domain.Provider) {
	t.Helper()
	for _, p := range providers {
		require.NoError(t, store.Save(context.Background(), domain.Integration{
			WorkspaceID:     "ws-1",
			Provider:        p,
			AccessToken:     "tok",
			SelectedTargets: []string{"something"},
		}))
	}
}

func TestCoordinator_TriggerSyncFansOut(t *testing.T) {
	github := &stubQueue{}
	slack := &stubQueue{}
	integrations := memory.NewIntegrationStore()
	connect(t, integrations, domain.ProviderGitHub, domain.ProviderSlack)

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
		domain.ProviderSlack:  slack,
		domain.ProviderNotion: &stubQueue{},
	}, integrations)

	jobIDs, err := c.TriggerSync(context.Background(), "ws-1", "user-1", domain.SyncOptions{})
	require.NoError(t, err)

	// One job per connected provider, none for the unconnected one.
	assert.Len(t, jobIDs, 2)
	require.Len(t, github.enqueued, 1)
	require.Len(t, slack.enqueued, 1)
	assert.Equal(t, domain.SyncIncremental, github.enqueued[0].Job.Type, "defaults to incremental")
	assert.Equal(t, "user-1", github.enqueued[0].Job.UserID)
	assert.Contains(t, jobIDs[domain.ProviderGitHub], "github-ws-1-")
}

func TestCoordinator_TriggerSyncProviderSubset(t *testing.T) {
	github := &stubQueue{}
	slack := &stubQueue{}
	integrations := memory.NewIntegrationStore()
	connect(t, integrations, domain.ProviderGitHub, domain.ProviderSlack)

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
		domain.ProviderSlack:  slack,
	}, integrations)

	jobIDs, err := c.TriggerSync(context.Background(), "ws-1", "u", domain.SyncOptions{
		Providers: []domain.Provider{domain.ProviderSlack},
		Type:      domain.SyncFull,
	})
	require.NoError(t, err)

	assert.Len(t, jobIDs, 1)
	assert.Empty(t, github.enqueued)
	require.Len(t, slack.enqueued, 1)
	assert.Equal(t, domain.SyncFull, slack.enqueued[0].Job.Type)
}

func TestCoordinator_TriggerSyncNoIntegrations(t *testing.T) {
	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: &stubQueue{},
	}, memory.NewIntegrationStore())

	_, err := c.TriggerSync(context.Background(), "ws-1", "u", domain.SyncOptions{})
	assert.ErrorIs(t, err, domain.ErrNoTargets)
}

func TestCoordinator_EnqueueFailureIsIsolated(t *testing.T) {
	github := &stubQueue{enqueueErr: errors.New("queue closed")}
	slack := &stubQueue{}
	integrations := memory.NewIntegrationStore()
	connect(t, integrations, domain.ProviderGitHub, domain.ProviderSlack)

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
		domain.ProviderSlack:  slack,
	}, integrations)

	jobIDs, err := c.TriggerSync(context.Background(), "ws-1", "u", domain.SyncOptions{})
	require.NoError(t, err, "one failed provider does not fail the request")
	assert.Len(t, jobIDs, 1)
	assert.Contains(t, jobIDs, domain.ProviderSlack)
}

func TestCoordinator_TriggerSyncAllEnqueuesFail(t *testing.T) {
	github := &stubQueue{enqueueErr: errors.New("queue closed")}
	integrations := memory.NewIntegrationStore()
	connect(t, integrations, domain.ProviderGitHub)

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
	}, integrations)

	_, err := c.TriggerSync(context.Background(), "ws-1", "u", domain.SyncOptions{})
	assert.Error(t, err)
}

func TestCoordinator_GetSyncStatus(t *testing.T) {
	now := time.Now()
	github := &stubQueue{
		active: &driven.SyncJobSnapshot{
			ID:       "github-ws-1-1",
			State:    domain.JobActive,
			Progress: domain.JobProgress{Phase: "issues org/repo", Processed: 12},
		},
	}
	slack := &stubQueue{
		finished: &driven.SyncJobSnapshot{
			ID:         "slack-ws-1-1",
			State:      domain.JobFailed,
			Error:      "no credentials",
			FinishedAt: &now,
		},
	}

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
		domain.ProviderSlack:  slack,
	}, memory.NewIntegrationStore())

	status, err := c.GetSyncStatus(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.True(t, status.IsRunning)
	require.Len(t, status.Jobs, 2)
	assert.Equal(t, domain.ProviderGitHub, status.Jobs[0].Provider)
	assert.Equal(t, domain.JobActive, status.Jobs[0].State)
	assert.Equal(t, 12, status.Jobs[0].Progress.Processed)
	assert.Equal(t, "no credentials", status.Jobs[1].Error)
}

func TestCoordinator_GetSyncStatusActiveSupersedesHistory(t *testing.T) {
	now := time.Now()
	github := &stubQueue{
		active: &driven.SyncJobSnapshot{
			ID:    "github-ws-1-2",
			State: domain.JobActive,
		},
		waiting: []driven.SyncJobSnapshot{
			{ID: "github-ws-1-3", State: domain.JobWaiting},
		},
		finished: &driven.SyncJobSnapshot{
			ID:         "github-ws-1-1",
			State:      domain.JobCompleted,
			FinishedAt: &now,
		},
	}

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
	}, memory.NewIntegrationStore())

	status, err := c.GetSyncStatus(context.Background(), "ws-1")
	require.NoError(t, err)

	// A running job is the provider's whole story; waiting jobs and
	// finished history stay out of the response.
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, "github-ws-1-2", status.Jobs[0].JobID)
	assert.Equal(t, domain.JobActive, status.Jobs[0].State)
	assert.True(t, status.IsRunning)
}

func TestCoordinator_GetSyncStatusWaitingSupersedesFinished(t *testing.T) {
	now := time.Now()
	slack := &stubQueue{
		waiting: []driven.SyncJobSnapshot{
			{ID: "slack-ws-1-2", State: domain.JobWaiting},
		},
		finished: &driven.SyncJobSnapshot{
			ID:         "slack-ws-1-1",
			State:      domain.JobFailed,
			Error:      "rate limited",
			FinishedAt: &now,
		},
	}

	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderSlack: slack,
	}, memory.NewIntegrationStore())

	status, err := c.GetSyncStatus(context.Background(), "ws-1")
	require.NoError(t, err)

	require.Len(t, status.Jobs, 1)
	assert.Equal(t, "slack-ws-1-2", status.Jobs[0].JobID)
	assert.Equal(t, domain.JobWaiting, status.Jobs[0].State)
	assert.False(t, status.IsRunning)
}

func TestCoordinator_GetSyncStatusIdle(t *testing.T) {
	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: &stubQueue{},
	}, memory.NewIntegrationStore())

	status, err := c.GetSyncStatus(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Empty(t, status.Jobs)
}

func TestCoordinator_CancelSync(t *testing.T) {
	github := &stubQueue{cancelled: 2}
	slack := &stubQueue{cancelled: 1}
	c := NewCoordinator(map[domain.Provider]driven.SyncQueue{
		domain.ProviderGitHub: github,
		domain.ProviderSlack:  slack,
	}, memory.NewIntegrationStore())

	removed, err := c.CancelSync(context.Background(), "ws-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	provider := domain.ProviderGitHub
	removed, err = c.CancelSync(context.Background(), "ws-1", &provider)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	unknown := domain.Provider("jira")
	_, err = c.CancelSync(context.Background(), "ws-1", &unknown)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
