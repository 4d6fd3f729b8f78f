package workers

import (
	"context"
	"fmt"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/providers/notion"
	"github.com/custodia-labs/hivemind/internal/queue"
	"github.com/custodia-labs/hivemind/internal/transform"
)

const (
	// maxBlockDepth caps block-tree traversal; Notion allows deeply
	// nested blocks but content below this depth is noise.
	maxBlockDepth = 50

	// maxBlocksPerPage caps the number of blocks collected per page so
	// one pathological page cannot stall a run.
	maxBlocksPerPage = 10000
)

// DocsClient is the slice of the docs API the worker consumes.
type DocsClient interface {
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
	ChildrenPage(ctx context.Context, blockID, cursor string) ([]notion.Block, string, error)
}

// DocsWorker syncs pages: each selected page's block tree is flattened
// into one canonical item.
type DocsWorker struct {
	items        driven.ItemStore
	integrations driven.IntegrationStore
	creds        driven.CredentialStore
	embeds       driven.EmbeddingEnqueuer
	newClient    func(token string) DocsClient
}

// NewDocsWorker creates the worker. newClient defaults to the real API
// client; tests inject a fake.
func NewDocsWorker(
	items driven.ItemStore,
	integrations driven.IntegrationStore,
	creds driven.CredentialStore,
	embeds driven.EmbeddingEnqueuer,
	newClient func(token string) DocsClient,
) *DocsWorker {
	if newClient == nil {
		newClient = func(token string) DocsClient {
			return notion.NewClient(token)
		}
	}
	return &DocsWorker{
		items:        items,
		integrations: integrations,
		creds:        creds,
		embeds:       embeds,
		newClient:    newClient,
	}
}

// Handler adapts the worker to the sync queue.
func (w *DocsWorker) Handler() queue.Handler[domain.SyncJob] {
	return handlerFor(domain.ProviderNotion, w)
}

// Run executes one sync job across the selected pages.
func (w *DocsWorker) Run(
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
	client := w.newClient(token)

	var result domain.SyncResult
	var itemIDs []string
	processed := 0
	for _, pageID := range targets {
		report(domain.JobProgress{Phase: "page " + pageID, Processed: processed})

		page, err := client.GetPage(ctx, pageID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pageID, err))
			logger.Warn("notion sync: page %s failed: %v", pageID, err)
			continue
		}
		if page.Archived {
			continue
		}
		// Pages untouched since the cursor are skipped on incremental runs.
		if !since.IsZero() && page.LastEditedTime.Before(since) {
			continue
		}

		blocks, err := w.collectBlocks(ctx, client, pageID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pageID, err))
			logger.Warn("notion sync: page %s blocks failed: %v", pageID, err)
			continue
		}

		draft := transform.PageToDraft(page, transform.RenderBlocks(blocks))
		item, _, err := w.items.Upsert(ctx, job.WorkspaceID, draft)
		if err != nil {
			return result, fmt.Errorf("%w: upsert %s: %v", errStorage, draft.ExternalID, err)
		}
		itemIDs = append(itemIDs, item.ID)
		processed++
	}

	result.ItemsSynced = len(itemIDs)
	enqueueEmbeddings(ctx, w.embeds, job.WorkspaceID, itemIDs)
	return result, nil
}

// blockFrame is one worklist entry during block-tree traversal.
type blockFrame struct {
	block notion.Block
	depth int
}

// collectBlocks walks the page's block tree depth-first in document
// order using an explicit worklist, bounded by depth and block count.
func (w *DocsWorker) collectBlocks(
	ctx context.Context, client DocsClient, pageID string,
) ([]transform.RenderedBlock, error) {
	var rendered []transform.RenderedBlock
	stack, err := w.childFrames(ctx, client, pageID, 0)
	if err != nil {
		return nil, err
	}

	for len(stack) > 0 && len(rendered) < maxBlocksPerPage {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rendered = append(rendered, transform.RenderedBlock{
			Block: top.block,
			Depth: top.depth,
		})

		if !top.block.HasChildren || top.depth+1 > maxBlockDepth {
			continue
		}
		children, err := w.childFrames(ctx, client, top.block.ID, top.depth+1)
		if err != nil {
			return nil, err
		}
		stack = append(stack, children...)
	}
	return rendered, nil
}

// childFrames fetches every child of a block, returned in reverse so
// that pushing them onto the stack preserves document order.
func (w *DocsWorker) childFrames(
	ctx context.Context, client DocsClient, blockID string, depth int,
) ([]blockFrame, error) {
	var blocks []notion.Block
	cursor := ""
	for {
		page, next, err := client.ChildrenPage(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	frames := make([]blockFrame, 0, len(blocks))
	for i := len(blocks) - 1; i >= 0; i-- {
		frames = append(frames, blockFrame{block: blocks[i], depth: depth})
	}
	return frames, nil
}
