package domain

import (
	"fmt"
	"time"
)

// SyncType selects how much remote content a sync run covers.
type SyncType string

const (
	// SyncFull re-scans all in-scope content regardless of modification time.
	SyncFull SyncType = "full"

	// SyncIncremental scopes the run to content changed since a cursor.
	SyncIncremental SyncType = "incremental"
)

// ParseSyncType validates a sync type string. Empty is allowed; it
// resolves to the incremental default when the job is enqueued.
func ParseSyncType(s string) (SyncType, error) {
	switch SyncType(s) {
	case "", SyncFull, SyncIncremental:
		return SyncType(s), nil
	default:
		return "", fmt.Errorf("%w: sync type %q", ErrUnsupportedType, s)
	}
}

// SyncJob is the ephemeral unit of sync work consumed by one provider
// worker. It lives only in the queue's own bookkeeping.
type SyncJob struct {
	// WorkspaceID is the workspace being synced.
	WorkspaceID string

	// UserID is the acting user that requested the sync.
	UserID string

	// Provider is the provider this job targets.
	Provider Provider

	// Type is full or incremental.
	Type SyncType

	// Since is the optional incremental cursor.
	Since *time.Time

	// TargetItems optionally restricts the run to specific repos,
	// channels or pages. When empty the integration's persisted
	// selection is used.
	TargetItems []string
}

// EmbeddingJob carries a batch of item IDs to the embedding worker.
// Produced once per sync run with every touched item, or with a single
// item by the webhook path.
type EmbeddingJob struct {
	WorkspaceID string
	ItemIDs     []string
}

// SyncResult is the outcome of one provider sync job.
type SyncResult struct {
	// ItemsSynced counts items inserted or updated.
	ItemsSynced int

	// Errors holds per-target failures that did not abort the job.
	Errors []string
}

// ItemError records a per-item failure inside a batch.
type ItemError struct {
	ItemID  string
	Message string
}

// EmbedResult is the outcome of one embedding job.
type EmbedResult struct {
	ProcessedCount int
	SkippedCount   int
	FailedCount    int
	Errors         []ItemError
}

// SyncOptions configures a TriggerSync request.
type SyncOptions struct {
	// Providers optionally restricts the sync to a subset of connected
	// providers. Empty means every provider with an active integration.
	Providers []Provider

	// Type is full or incremental. Defaults to incremental.
	Type SyncType

	// Since is the optional incremental cursor.
	Since *time.Time

	// TargetItems optionally restricts each provider run to specific
	// repos, channels or pages.
	TargetItems []string
}

// JobState is the lifecycle state of a queued job.
type JobState string

const (
	// JobWaiting means the job has not started yet and can be cancelled.
	JobWaiting JobState = "waiting"

	// JobActive means the job is running and cannot be interrupted.
	JobActive JobState = "active"

	// JobCompleted means the job finished successfully.
	JobCompleted JobState = "completed"

	// JobFailed means the job exhausted its retry budget.
	JobFailed JobState = "failed"
)

// JobProgress is the live progress a running worker reports so status
// queries reflect real work.
type JobProgress struct {
	// Phase names the current stage, e.g. "issues" or "channel C024".
	Phase string `json:"phase"`

	// Processed counts records handled so far.
	Processed int `json:"processed"`

	// Failed counts records that could not be handled.
	Failed int `json:"failed"`

	// Total is the known size of the job. Zero when the worker streams
	// records and cannot know the size up front.
	Total int `json:"total"`
}

// Percent is completion as 0-100, or 0 when Total is unknown.
func (p JobProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed + p.Failed) * 100 / p.Total
}

// ProviderJobStatus is one provider's entry in a workspace status query.
type ProviderJobStatus struct {
	Provider   Provider    `json:"provider"`
	JobID      string      `json:"jobId"`
	State      JobState    `json:"state"`
	Progress   JobProgress `json:"progress"`
	Error      string      `json:"error,omitempty"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// WorkspaceSyncStatus aggregates sync state across a workspace's
// connected providers. Never aggregates across workspaces.
type WorkspaceSyncStatus struct {
	IsRunning bool                `json:"isRunning"`
	Jobs      []ProviderJobStatus `json:"jobs"`
}

// SyncJobID builds the deterministic-but-unique job identifier.
func SyncJobID(provider Provider, workspaceID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", provider, workspaceID, at.UnixMilli())
}
