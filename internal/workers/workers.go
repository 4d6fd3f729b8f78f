// Package workers holds the queue consumers: one sync worker per
// provider and the embedding worker. Each sync worker resolves
// credentials and targets, paginates the provider's API, transforms
// records into canonical drafts, upserts them, and enqueues a single
// embedding job for everything it touched.
package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/queue"
)

// errStorage marks an upsert failure. Storage errors abort the whole
// job: enqueueing embeddings for unpersisted items would be wrong.
var errStorage = errors.New("storage failure")

// isFatal reports whether a per-unit error must abort the job.
func isFatal(err error) bool {
	return errors.Is(err, errStorage)
}

// resolveTargets picks the unit list for a run: the job's explicit
// targets, else the integration's persisted selection. An empty outcome
// is a configuration error, never a silent full-provider scan.
func resolveTargets(ctx context.Context, integrations driven.IntegrationStore, job domain.SyncJob) ([]string, error) {
	if len(job.TargetItems) > 0 {
		return job.TargetItems, nil
	}

	integ, err := integrations.Get(ctx, job.WorkspaceID, job.Provider)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s integration for workspace %s",
				domain.ErrNoTargets, job.Provider, job.WorkspaceID)
		}
		return nil, err
	}
	if !integ.IsActive() || len(integ.SelectedTargets) == 0 {
		return nil, fmt.Errorf("%w: %s integration for workspace %s has no selection",
			domain.ErrNoTargets, job.Provider, job.WorkspaceID)
	}
	return integ.SelectedTargets, nil
}

// resolveToken fetches the decrypted credential, failing fast before
// any write happens.
func resolveToken(ctx context.Context, creds driven.CredentialStore, job domain.SyncJob) (string, error) {
	token, err := creds.GetDecryptedAccessToken(ctx, job.WorkspaceID, job.Provider)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: %s for workspace %s",
			domain.ErrNoCredentials, job.Provider, job.WorkspaceID)
	}
	return token, nil
}

// enqueueEmbeddings submits one batched embedding job for all item IDs
// a run touched. Nothing is enqueued for an empty run.
func enqueueEmbeddings(ctx context.Context, enq driven.EmbeddingEnqueuer, workspaceID string, itemIDs []string) {
	if len(itemIDs) == 0 {
		return
	}
	job := domain.EmbeddingJob{WorkspaceID: workspaceID, ItemIDs: itemIDs}
	if err := enq.EnqueueEmbedding(ctx, job); err != nil {
		logger.Warn("failed to enqueue embedding job for workspace %s (%d items): %v",
			workspaceID, len(itemIDs), err)
	}
}

// syncRunner is the shape all three sync workers share.
type syncRunner interface {
	Run(ctx context.Context, job domain.SyncJob, report func(domain.JobProgress)) (domain.SyncResult, error)
}

// handlerFor adapts a worker's Run to the queue handler contract.
// Per-unit errors are carried in the result and logged; only
// configuration and storage failures fail the job.
func handlerFor(provider domain.Provider, w syncRunner) queue.Handler[domain.SyncJob] {
	return func(ctx context.Context, job domain.SyncJob, report func(domain.JobProgress)) error {
		result, err := w.Run(ctx, job, report)
		if err != nil {
			return err
		}
		if len(result.Errors) > 0 {
			logger.Warn("%s sync for workspace %s finished with %d unit errors: %v",
				provider, job.WorkspaceID, len(result.Errors), result.Errors)
		}
		logger.Info("%s sync for workspace %s synced %d items",
			provider, job.WorkspaceID, result.ItemsSynced)
		return nil
	}
}
