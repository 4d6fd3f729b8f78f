// Package slack implements the Slack Web API calls the chat sync worker
// needs: credential validation, channel history and thread replies.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	defaultBaseURL = "https://slack.com/api"

	requestTimeout = 30 * time.Second

	// historyPageSize is the page size for conversations.history and
	// conversations.replies.
	historyPageSize = 200

	// tier3Rate matches Slack's Tier 3 guidance of ~50 requests/minute.
	tier3Rate = 50.0 / 60.0

	// maxRateLimitWaits bounds how often one call honours a 429 before
	// giving up.
	maxRateLimitWaits = 2
)

// Message is one message from a channel history or thread reply page.
type Message struct {
	Type       string `json:"type"`
	Subtype    string `json:"subtype"`
	User       string `json:"user"`
	BotID      string `json:"bot_id"`
	Text       string `json:"text"`
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts"`
	ReplyCount int    `json:"reply_count"`
}

// IsThreadParent reports whether the message starts a thread with at
// least one reply. Thread replies carry a thread_ts different from
// their own ts and are never parents.
func (m Message) IsThreadParent() bool {
	return m.ReplyCount > 0 && (m.ThreadTS == "" || m.ThreadTS == m.TS)
}

// IsThreadReply reports whether the message belongs to a thread started
// by another message.
func (m Message) IsThreadReply() bool {
	return m.ThreadTS != "" && m.ThreadTS != m.TS
}

// Client is a minimal Slack Web API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// NewClient creates a client authenticated with a bot token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(tier3Rate), 1),
	}
}

// SetBaseURL overrides the API origin, for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

type apiEnvelope struct {
	OK               bool      `json:"ok"`
	Error            string    `json:"error"`
	Messages         []Message `json:"messages"`
	HasMore          bool      `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// Validate checks the token with auth.test.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := c.get(ctx, "auth.test", nil); err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	return nil
}

// HistoryPage fetches one page of channel history. Messages newer than
// oldest (a Slack ts string, empty for all) are returned, along with
// the cursor for the next page ("" when exhausted).
func (c *Client) HistoryPage(
	ctx context.Context, channel, oldest, cursor string,
) ([]Message, string, error) {
	params := url.Values{
		"channel": {channel},
		"limit":   {strconv.Itoa(historyPageSize)},
	}
	if oldest != "" {
		params.Set("oldest", oldest)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	env, err := c.get(ctx, "conversations.history", params)
	if err != nil {
		return nil, "", fmt.Errorf("history %s: %w", channel, err)
	}
	return env.Messages, env.ResponseMetadata.NextCursor, nil
}

// Replies fetches every message of a thread, following cursors. The
// first message returned by the API is the parent itself.
func (c *Client) Replies(ctx context.Context, channel, threadTS string) ([]Message, error) {
	var all []Message
	cursor := ""
	for {
		params := url.Values{
			"channel": {channel},
			"ts":      {threadTS},
			"limit":   {strconv.Itoa(historyPageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		env, err := c.get(ctx, "conversations.replies", params)
		if err != nil {
			return nil, fmt.Errorf("replies %s/%s: %w", channel, threadTS, err)
		}
		all = append(all, env.Messages...)

		cursor = env.ResponseMetadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// get performs one GET call, honouring 429 Retry-After a bounded number
// of times and unwrapping the ok/error envelope.
func (c *Client) get(ctx context.Context, method string, params url.Values) (*apiEnvelope, error) {
	endpoint := c.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for waits := 0; ; waits++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if waits >= maxRateLimitWaits {
				return nil, fmt.Errorf("%s: %w", method, domain.ErrRateLimited)
			}
			wait := retryAfter(resp.Header)
			logger.Debug("slack: rate limited on %s, waiting %s", method, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
		}

		var env apiEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", method, err)
		}
		if !env.OK {
			// Slack also signals rate limiting inside a 200 envelope;
			// it gets the same Retry-After pause as a hard 429.
			if env.Error == "ratelimited" && waits < maxRateLimitWaits {
				wait := retryAfter(resp.Header)
				logger.Debug("slack: rate limited on %s, waiting %s", method, wait)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			return nil, fmt.Errorf("%s: api error %q", method, env.Error)
		}
		return &env, nil
	}
}

// retryAfter parses the Retry-After header, defaulting to 30s when the
// header is absent or malformed.
func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 30 * time.Second
}

// ParseTS converts a Slack ts string ("1700000000.000100") to a time.
func ParseTS(ts string) (time.Time, error) {
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: slack ts %q", domain.ErrInvalidInput, ts)
	}
	var micros int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		for len(frac) < 6 {
			frac += "0"
		}
		micros, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: slack ts %q", domain.ErrInvalidInput, ts)
		}
	}
	return time.Unix(secs, micros*1000).UTC(), nil
}

// FormatTS converts a time to a Slack oldest parameter.
func FormatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
