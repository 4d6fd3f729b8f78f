package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/providers/slack"
	"github.com/custodia-labs/hivemind/internal/queue"
	"github.com/custodia-labs/hivemind/internal/transform"
)

// ChatClient is the slice of the chat API the worker consumes.
type ChatClient interface {
	HistoryPage(ctx context.Context, channel, oldest, cursor string) ([]slack.Message, string, error)
	Replies(ctx context.Context, channel, threadTS string) ([]slack.Message, error)
}

// ChatWorker syncs channels. A message that starts a thread is
// aggregated with all of its replies into a single item; replies never
// become standalone items.
type ChatWorker struct {
	items        driven.ItemStore
	integrations driven.IntegrationStore
	creds        driven.CredentialStore
	embeds       driven.EmbeddingEnqueuer
	newClient    func(token string) ChatClient
}

// NewChatWorker creates the worker. newClient defaults to the real API
// client; tests inject a fake.
func NewChatWorker(
	items driven.ItemStore,
	integrations driven.IntegrationStore,
	creds driven.CredentialStore,
	embeds driven.EmbeddingEnqueuer,
	newClient func(token string) ChatClient,
) *ChatWorker {
	if newClient == nil {
		newClient = func(token string) ChatClient {
			return slack.NewClient(token)
		}
	}
	return &ChatWorker{
		items:        items,
		integrations: integrations,
		creds:        creds,
		embeds:       embeds,
		newClient:    newClient,
	}
}

// Handler adapts the worker to the sync queue.
func (w *ChatWorker) Handler() queue.Handler[domain.SyncJob] {
	return handlerFor(domain.ProviderSlack, w)
}

// Run executes one sync job across the selected channels.
func (w *ChatWorker) Run(
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

	oldest := ""
	if since := sinceOf(job); !since.IsZero() {
		oldest = slack.FormatTS(since)
	}
	client := w.newClient(token)

	var result domain.SyncResult
	var itemIDs []string
	processed := 0
	for _, target := range targets {
		channelID, channelName := splitChannelTarget(target)
		ids, err := w.syncChannel(ctx, client, job, channelID, channelName, oldest, &processed, report)
		itemIDs = append(itemIDs, ids...)
		if err != nil {
			if isFatal(err) {
				return result, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", channelID, err))
			logger.Warn("slack sync: channel %s failed: %v", channelID, err)
		}
	}

	result.ItemsSynced = len(itemIDs)
	enqueueEmbeddings(ctx, w.embeds, job.WorkspaceID, itemIDs)
	return result, nil
}

func (w *ChatWorker) syncChannel(
	ctx context.Context, client ChatClient, job domain.SyncJob,
	channelID, channelName, oldest string, processed *int, report func(domain.JobProgress),
) ([]string, error) {
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

	cursor := ""
	for {
		report(domain.JobProgress{Phase: "channel " + channelName, Processed: *processed})
		messages, next, err := client.HistoryPage(ctx, channelID, oldest, cursor)
		if err != nil {
			return itemIDs, err
		}

		for _, msg := range messages {
			switch {
			case msg.Subtype != "":
				// Joins, topic changes and other channel events.
				continue
			case msg.IsThreadReply():
				// Replies surface through their parent's aggregate only.
				continue
			case msg.IsThreadParent():
				replies, err := client.Replies(ctx, channelID, msg.TS)
				if err != nil {
					return itemIDs, err
				}
				if err := upsert(transform.ThreadToDraft(channelID, channelName, msg, replies)); err != nil {
					return itemIDs, err
				}
			default:
				if err := upsert(transform.MessageToDraft(channelID, channelName, msg)); err != nil {
					return itemIDs, err
				}
			}
		}

		if next == "" {
			return itemIDs, nil
		}
		cursor = next
	}
}

// splitChannelTarget parses a "C0123|name" target; a bare channel id
// falls back to the id as display name.
func splitChannelTarget(target string) (id, name string) {
	if id, name, ok := strings.Cut(target, "|"); ok && name != "" {
		return id, name
	}
	return target, target
}
