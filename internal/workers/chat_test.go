package workers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/providers/slack"
)

// fakeChat serves canned history and replies per channel.
type fakeChat struct {
	history map[string][]slack.Message
	replies map[string][]slack.Message // by thread ts
	fail    map[string]error
}

func (f *fakeChat) HistoryPage(_ context.Context, channel, _, cursor string) ([]slack.Message, string, error) {
	if err := f.fail[channel]; err != nil {
		return nil, "", err
	}
	if cursor != "" {
		return nil, "", nil
	}
	return f.history[channel], "", nil
}

func (f *fakeChat) Replies(_ context.Context, _, threadTS string) ([]slack.Message, error) {
	return f.replies[threadTS], nil
}

func chatFixture(t *testing.T, client ChatClient, targets ...string) (*ChatWorker, *memory.ItemStore, *recordingEnqueuer) {
	t.Helper()
	items := memory.NewItemStore()
	integrations := memory.NewIntegrationStore()
	require.NoError(t, integrations.Save(context.Background(), domain.Integration{
		WorkspaceID:     "ws-1",
		Provider:        domain.ProviderSlack,
		AccessToken:     "xoxb-tok",
		SelectedTargets: targets,
	}))
	enq := &recordingEnqueuer{}
	w := NewChatWorker(items, integrations, integrations, enq,
		func(string) ChatClient { return client })
	return w, items, enq
}

func TestChatWorker_ThreadAggregation(t *testing.T) {
	parent := slack.Message{
		Type: "message", User: "U1", Text: "deploy broken?",
		TS: "100.1", ThreadTS: "100.1", ReplyCount: 2,
	}
	client := &fakeChat{
		history: map[string][]slack.Message{"C1": {
			parent,
			// Replies appear in history too; they must not become items.
			{Type: "message", User: "U2", Text: "checking", TS: "100.2", ThreadTS: "100.1"},
			{Type: "message", User: "U3", Text: "standalone note", TS: "100.3"},
		}},
		replies: map[string][]slack.Message{"100.1": {
			parent,
			{Type: "message", User: "U2", Text: "checking", TS: "100.2", ThreadTS: "100.1"},
			{Type: "message", User: "U3", Text: "fixed now", TS: "100.4", ThreadTS: "100.1"},
		}},
	}
	w, items, enq := chatFixture(t, client, "C1|deploys")

	result, err := w.Run(context.Background(), domain.SyncJob{
		WorkspaceID: "ws-1", Provider: domain.ProviderSlack, Type: domain.SyncFull,
	}, noProgress)

	require.NoError(t, err)
	// One aggregated thread plus one standalone message.
	assert.Equal(t, 2, result.ItemsSynced)
	assert.Equal(t, 2, items.Count())

	thread, err := items.GetByIdentity(context.Background(), "ws-1", domain.SourceSlackThread, "slack:C1:100.1")
	require.NoError(t, err)
	assert.Contains(t, thread.Content, "[thread start] deploy broken?")
	assert.Contains(t, thread.Content, "[reply] checking")
	assert.Contains(t, thread.Content, "[reply] fixed now")
	assert.Equal(t, 1, strings.Count(thread.Content, "deploy broken?"))

	// The reply never appears as a standalone item.
	_, err = items.GetByIdentity(context.Background(), "ws-1", domain.SourceSlackMessage, "slack:C1:100.2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, enq.all(), 1)
	assert.Len(t, enq.all()[0].ItemIDs, 2)
}

func TestChatWorker_SkipsChannelEvents(t *testing.T) {
	client := &fakeChat{
		history: map[string][]slack.Message{"C1": {
			{Type: "message", Subtype: "channel_join", User: "U1", Text: "U1 joined", TS: "1.1"},
			{Type: "message", User: "U1", Text: "hello", TS: "1.2"},
		}},
	}
	w, items, _ := chatFixture(t, client, "C1")

	result, err := w.Run(context.Background(), domain.SyncJob{
		WorkspaceID: "ws-1", Provider: domain.ProviderSlack, Type: domain.SyncFull,
	}, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsSynced)
	assert.Equal(t, 1, items.Count())
}

func TestChatWorker_PartialFailureIsolation(t *testing.T) {
	client := &fakeChat{
		history: map[string][]slack.Message{
			"C1": {{Type: "message", User: "U1", Text: "ok", TS: "1.1"}},
			"C3": {{Type: "message", User: "U1", Text: "also ok", TS: "1.2"}},
		},
		fail: map[string]error{"C2": errors.New("channel_not_found")},
	}
	w, _, _ := chatFixture(t, client, "C1", "C2", "C3")

	result, err := w.Run(context.Background(), domain.SyncJob{
		WorkspaceID: "ws-1", Provider: domain.ProviderSlack, Type: domain.SyncFull,
	}, noProgress)

	require.NoError(t, err)
	assert.Equal(t, 2, result.ItemsSynced)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "C2")
}

func TestChatWorker_ThreadUpdatesInPlaceOnResync(t *testing.T) {
	parent := slack.Message{
		Type: "message", User: "U1", Text: "question",
		TS: "100.1", ThreadTS: "100.1", ReplyCount: 1,
	}
	client := &fakeChat{
		history: map[string][]slack.Message{"C1": {parent}},
		replies: map[string][]slack.Message{"100.1": {
			parent,
			{Type: "message", User: "U2", Text: "first answer", TS: "100.2", ThreadTS: "100.1"},
		}},
	}
	w, items, _ := chatFixture(t, client, "C1")

	job := domain.SyncJob{WorkspaceID: "ws-1", Provider: domain.ProviderSlack, Type: domain.SyncFull}
	_, err := w.Run(context.Background(), job, noProgress)
	require.NoError(t, err)

	// The thread gained a reply since the last run.
	client.replies["100.1"] = append(client.replies["100.1"],
		slack.Message{Type: "message", User: "U3", Text: "second answer", TS: "100.3", ThreadTS: "100.1"})

	_, err = w.Run(context.Background(), job, noProgress)
	require.NoError(t, err)

	assert.Equal(t, 1, items.Count())
	thread, err := items.GetByIdentity(context.Background(), "ws-1", domain.SourceSlackThread, "slack:C1:100.1")
	require.NoError(t, err)
	assert.Contains(t, thread.Content, "second answer")
}

func TestSplitChannelTarget(t *testing.T) {
	id, name := splitChannelTarget("C1|deploys")
	assert.Equal(t, "C1", id)
	assert.Equal(t, "deploys", name)

	id, name = splitChannelTarget("C2")
	assert.Equal(t, "C2", id)
	assert.Equal(t, "C2", name)
}
