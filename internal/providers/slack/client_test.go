package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("xoxb-test")
	c.SetBaseURL(srv.URL)
	c.limiter.SetLimit(1000) // no throttling in tests
	return c
}

func TestHistoryPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations.history", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		assert.Equal(t, "C123", r.URL.Query().Get("channel"))
		assert.Equal(t, "1700000000.000000", r.URL.Query().Get("oldest"))

		fmt.Fprint(w, `{
			"ok": true,
			"messages": [
				{"type":"message","user":"U1","text":"first","ts":"1700000001.000100","reply_count":2},
				{"type":"message","user":"U2","text":"second","ts":"1700000002.000100"}
			],
			"has_more": true,
			"response_metadata": {"next_cursor": "abc=="}
		}`)
	})

	msgs, next, err := c.HistoryPage(context.Background(), "C123", "1700000000.000000", "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.True(t, msgs[0].IsThreadParent())
	assert.False(t, msgs[1].IsThreadParent())
	assert.Equal(t, "abc==", next)
}

func TestReplies_FollowsCursors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations.replies", r.URL.Path)
		assert.Equal(t, "1700000001.000100", r.URL.Query().Get("ts"))

		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{
				"ok": true,
				"messages": [
					{"type":"message","user":"U1","text":"parent","ts":"1700000001.000100","thread_ts":"1700000001.000100","reply_count":2},
					{"type":"message","user":"U2","text":"reply one","ts":"1700000003.000100","thread_ts":"1700000001.000100"}
				],
				"response_metadata": {"next_cursor": "page2"}
			}`)
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		fmt.Fprint(w, `{
			"ok": true,
			"messages": [
				{"type":"message","user":"U3","text":"reply two","ts":"1700000004.000100","thread_ts":"1700000001.000100"}
			]
		}`)
	})

	msgs, err := c.Replies(context.Background(), "C123", "1700000001.000100")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "parent", msgs[0].Text)
	assert.Equal(t, "reply two", msgs[2].Text)
	assert.True(t, msgs[1].IsThreadReply())
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_RetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok": true, "messages": []}`)
	})

	_, _, err := c.HistoryPage(context.Background(), "C123", "", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_RetriesRateLimitedEnvelope(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			fmt.Fprint(w, `{"ok": false, "error": "ratelimited"}`)
			return
		}
		fmt.Fprint(w, `{"ok": true, "messages": []}`)
	})

	_, _, err := c.HistoryPage(context.Background(), "C123", "", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_RateLimitedEnvelopeWaitsBeforeRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// No Retry-After header, so the default 30s pause applies.
		fmt.Fprint(w, `{"ok": false, "error": "ratelimited"}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := c.HistoryPage(ctx, "C123", "", "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load(), "client pauses instead of retrying immediately")
}

func TestGet_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error": "channel_not_found"}`)
	})

	_, _, err := c.HistoryPage(context.Background(), "CBAD", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestParseTS(t *testing.T) {
	ts, err := ParseTS("1700000000.000100")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())
	assert.Equal(t, 100*time.Microsecond, time.Duration(ts.Nanosecond()))

	ts, err = ParseTS("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())

	_, err = ParseTS("not-a-ts")
	assert.Error(t, err)
}

func TestFormatTS_RoundTrips(t *testing.T) {
	at := time.Unix(1700000000, 123000).UTC()
	parsed, err := ParseTS(FormatTS(at))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestMessageThreadClassification(t *testing.T) {
	tests := []struct {
		name       string
		msg        Message
		wantParent bool
		wantReply  bool
	}{
		{
			name:       "parent with replies",
			msg:        Message{TS: "1.0", ThreadTS: "1.0", ReplyCount: 3},
			wantParent: true,
		},
		{
			name:       "parent without thread_ts set",
			msg:        Message{TS: "1.0", ReplyCount: 1},
			wantParent: true,
		},
		{
			name: "standalone message",
			msg:  Message{TS: "1.0"},
		},
		{
			name:      "reply",
			msg:       Message{TS: "2.0", ThreadTS: "1.0"},
			wantReply: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantParent, tt.msg.IsThreadParent())
			assert.Equal(t, tt.wantReply, tt.msg.IsThreadReply())
		})
	}
}
