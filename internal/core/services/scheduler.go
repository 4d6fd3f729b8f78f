package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	// schedulerUser is the acting user recorded on scheduled jobs.
	schedulerUser = "scheduler"

	// DefaultIncrementalEvery is the incremental sync cadence.
	DefaultIncrementalEvery = time.Hour

	// DefaultFullEvery is the full re-sync cadence.
	DefaultFullEvery = 24 * time.Hour
)

// Scheduler periodically triggers syncs for every workspace with an
// active integration: incremental on the short cadence, full on the
// long one.
type Scheduler struct {
	coordinator  driving.SyncCoordinator
	integrations driven.IntegrationStore

	incrementalEvery time.Duration
	fullEvery        time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates a stopped scheduler with the default cadences.
func NewScheduler(coordinator driving.SyncCoordinator, integrations driven.IntegrationStore) *Scheduler {
	return &Scheduler{
		coordinator:      coordinator,
		integrations:     integrations,
		incrementalEvery: DefaultIncrementalEvery,
		fullEvery:        DefaultFullEvery,
	}
}

// SetCadence overrides the tick intervals. Only effective before Start.
func (s *Scheduler) SetCadence(incremental, full time.Duration) {
	s.incrementalEvery = incremental
	s.fullEvery = full
}

// Start launches the tick loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(ctx, s.stopCh, s.doneCh)
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
}

func (s *Scheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	incremental := time.NewTicker(s.incrementalEvery)
	defer incremental.Stop()
	full := time.NewTicker(s.fullEvery)
	defer full.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-full.C:
			s.runAll(ctx, domain.SyncFull)
		case <-incremental.C:
			s.runAll(ctx, domain.SyncIncremental)
		}
	}
}

// runAll triggers one sync per active workspace. Failures are logged
// per workspace; one workspace never blocks the rest.
func (s *Scheduler) runAll(ctx context.Context, syncType domain.SyncType) {
	workspaces, err := s.integrations.ListActiveWorkspaces(ctx)
	if err != nil {
		logger.Error("scheduler: list workspaces: %v", err)
		return
	}

	opts := domain.SyncOptions{Type: syncType}
	if syncType == domain.SyncIncremental {
		since := time.Now().Add(-s.incrementalEvery)
		opts.Since = &since
	}

	for _, workspaceID := range workspaces {
		if _, err := s.coordinator.TriggerSync(ctx, workspaceID, schedulerUser, opts); err != nil {
			logger.Warn("scheduler: %s sync for workspace %s: %v", syncType, workspaceID, err)
		}
	}
	logger.Debug("scheduler: triggered %s sync for %d workspace(s)", syncType, len(workspaces))
}
