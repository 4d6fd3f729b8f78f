package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// countingCoordinator records triggered syncs per type.
type countingCoordinator struct {
	mu       sync.Mutex
	triggers []domain.SyncOptions
}

func (c *countingCoordinator) TriggerSync(_ context.Context, _, _ string, opts domain.SyncOptions) (map[domain.Provider]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers = append(c.triggers, opts)
	return map[domain.Provider]string{domain.ProviderGitHub: "id"}, nil
}

func (c *countingCoordinator) GetSyncStatus(context.Context, string) (*domain.WorkspaceSyncStatus, error) {
	return &domain.WorkspaceSyncStatus{}, nil
}

func (c *countingCoordinator) CancelSync(context.Context, string, *domain.Provider) (int, error) {
	return 0, nil
}

func (c *countingCoordinator) countByType(syncType domain.SyncType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, opts := range c.triggers {
		if opts.Type == syncType {
			n++
		}
	}
	return n
}

func TestScheduler_TriggersIncrementalSyncs(t *testing.T) {
	coordinator := &countingCoordinator{}
	integrations := memory.NewIntegrationStore()
	require.NoError(t, integrations.Save(context.Background(), domain.Integration{
		WorkspaceID: "ws-1",
		Provider:    domain.ProviderGitHub,
		AccessToken: "tok",
	}))

	s := NewScheduler(coordinator, integrations)
	s.SetCadence(10*time.Millisecond, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if coordinator.countByType(domain.SyncIncremental) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, coordinator.countByType(domain.SyncIncremental), 2)
	assert.Zero(t, coordinator.countByType(domain.SyncFull))

	// Incremental triggers carry a cursor.
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	require.NotEmpty(t, coordinator.triggers)
	assert.NotNil(t, coordinator.triggers[0].Since)
}

func TestScheduler_StopTerminatesLoop(t *testing.T) {
	coordinator := &countingCoordinator{}
	s := NewScheduler(coordinator, memory.NewIntegrationStore())
	s.SetCadence(5*time.Millisecond, time.Hour)

	s.Start(context.Background())
	s.Stop()

	// Stop is idempotent and Start/Stop can cycle.
	s.Stop()
	s.Start(context.Background())
	s.Stop()
}

func TestScheduler_NoWorkspacesNoTriggers(t *testing.T) {
	coordinator := &countingCoordinator{}
	s := NewScheduler(coordinator, memory.NewIntegrationStore())
	s.SetCadence(5*time.Millisecond, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	assert.Empty(t, coordinator.triggers)
}
