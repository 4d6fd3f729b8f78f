package workers

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/providers/github"
	"github.com/custodia-labs/hivemind/internal/queue"
	"github.com/custodia-labs/hivemind/internal/transform"
)

const (
	// commitLookback bounds the commit window on a full sync; history
	// older than this is rarely worth embedding.
	commitLookback = 90 * 24 * time.Hour

	// maxCommitPages caps commit pagination per repository.
	maxCommitPages = 10
)

// CodeHostClient is the slice of the code-host API the worker consumes.
type CodeHostClient interface {
	ListIssuesPage(ctx context.Context, owner, repo string, page int, since time.Time) ([]*gh.Issue, int, error)
	ListPullsPage(ctx context.Context, owner, repo string, page int) ([]*gh.PullRequest, int, error)
	ListCommitsPage(ctx context.Context, owner, repo string, page int, since time.Time) ([]*gh.RepositoryCommit, int, error)
	GetReadme(ctx context.Context, owner, repo string) (*github.DocFile, error)
	ListDocsFiles(ctx context.Context, owner, repo string) ([]github.DocFile, error)
}

// CodeHostWorker syncs repositories: issues, pull requests, a bounded
// commit window, the README and the docs/ folder.
type CodeHostWorker struct {
	items        driven.ItemStore
	integrations driven.IntegrationStore
	creds        driven.CredentialStore
	embeds       driven.EmbeddingEnqueuer
	newClient    func(ctx context.Context, token string) CodeHostClient
}

// NewCodeHostWorker creates the worker. newClient defaults to the real
// API client; tests inject a fake.
func NewCodeHostWorker(
	items driven.ItemStore,
	integrations driven.IntegrationStore,
	creds driven.CredentialStore,
	embeds driven.EmbeddingEnqueuer,
	newClient func(ctx context.Context, token string) CodeHostClient,
) *CodeHostWorker {
	if newClient == nil {
		newClient = func(ctx context.Context, token string) CodeHostClient {
			return github.NewClient(ctx, token)
		}
	}
	return &CodeHostWorker{
		items:        items,
		integrations: integrations,
		creds:        creds,
		embeds:       embeds,
		newClient:    newClient,
	}
}

// Handler adapts the worker to the sync queue.
func (w *CodeHostWorker) Handler() queue.Handler[domain.SyncJob] {
	return handlerFor(domain.ProviderGitHub, w)
}

// Run executes one sync job. A failure in one repository is recorded
// and does not abort the others; credential, target and storage
// failures abort the job.
func (w *CodeHostWorker) Run(
	ctx context.Context, job domain.SyncJob, report func(domain.JobProgress),
) (domain.SyncResult, error) {
	token, err := resolveToken(ctx, w.creds, job)
	if err != nil {
		return domain.SyncResult{}, err
	}
	targets, err := resolveTargets(ctx, w.integrations, job)
	if err != nil {
		return domain.SyncResult{}, err
	}

	since := sinceOf(job)
	client := w.newClient(ctx, token)

	var result domain.SyncResult
	var itemIDs []string
	processed := 0
	for _, repo := range targets {
		ids, err := w.syncRepo(ctx, client, job, repo, since, &processed, report)
		itemIDs = append(itemIDs, ids...)
		if err != nil {
			if isFatal(err) {
				return result, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", repo, err))
			logger.Warn("github sync: repo %s failed: %v", repo, err)
		}
	}

	result.ItemsSynced = len(itemIDs)
	enqueueEmbeddings(ctx, w.embeds, job.WorkspaceID, itemIDs)
	return result, nil
}

// syncRepo syncs one repository. IDs of items upserted before a
// mid-repo failure are still returned so they get embedded.
func (w *CodeHostWorker) syncRepo(
	ctx context.Context, client CodeHostClient, job domain.SyncJob,
	repo string, since time.Time, processed *int, report func(domain.JobProgress),
) ([]string, error) {
	owner, name, err := github.SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	var itemIDs []string
	upsert := func(draft domain.ItemDraft) error {
		item, _, err := w.items.Upsert(ctx, job.WorkspaceID, draft)
		if err != nil {
			return fmt.Errorf("%w: upsert %s: %v", errStorage, draft.ExternalID, err)
		}
		itemIDs = append(itemIDs, item.ID)
		*processed++
		return nil
	}

	// Issues.
	for page := 1; page != 0; {
		report(domain.JobProgress{Phase: "issues " + repo, Processed: *processed})
		issues, next, err := client.ListIssuesPage(ctx, owner, name, page, since)
		if err != nil {
			return itemIDs, err
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if err := upsert(transform.IssueToDraft(repo, issue)); err != nil {
				return itemIDs, err
			}
		}
		page = next
	}

	// Pull requests, newest update first; incremental runs stop at the
	// cursor instead of paging through untouched history.
	for page := 1; page != 0; {
		report(domain.JobProgress{Phase: "pulls " + repo, Processed: *processed})
		pulls, next, err := client.ListPullsPage(ctx, owner, name, page)
		if err != nil {
			return itemIDs, err
		}
		for _, pull := range pulls {
			if !since.IsZero() && pull.GetUpdatedAt().Before(since) {
				next = 0
				break
			}
			if err := upsert(transform.PullToDraft(repo, pull)); err != nil {
				return itemIDs, err
			}
		}
		page = next
	}

	// Commits within the bounded window.
	commitSince := since
	if commitSince.IsZero() {
		commitSince = time.Now().Add(-commitLookback)
	}
	for page, pages := 1, 0; page != 0 && pages < maxCommitPages; pages++ {
		report(domain.JobProgress{Phase: "commits " + repo, Processed: *processed})
		commits, next, err := client.ListCommitsPage(ctx, owner, name, page, commitSince)
		if err != nil {
			return itemIDs, err
		}
		for _, commit := range commits {
			if err := upsert(transform.CommitToDraft(repo, commit)); err != nil {
				return itemIDs, err
			}
		}
		page = next
	}

	// README and docs/ folder.
	report(domain.JobProgress{Phase: "docs " + repo, Processed: *processed})
	readme, err := client.GetReadme(ctx, owner, name)
	if err != nil {
		return itemIDs, err
	}
	if readme != nil {
		if err := upsert(transform.FileToDraft(repo, *readme)); err != nil {
			return itemIDs, err
		}
	}
	docs, err := client.ListDocsFiles(ctx, owner, name)
	if err != nil {
		return itemIDs, err
	}
	for _, doc := range docs {
		if err := upsert(transform.FileToDraft(repo, doc)); err != nil {
			return itemIDs, err
		}
	}

	return itemIDs, nil
}

// sinceOf derives the incremental cursor; full syncs have none.
func sinceOf(job domain.SyncJob) time.Time {
	if job.Type == domain.SyncIncremental && job.Since != nil {
		return *job.Since
	}
	return time.Time{}
}
