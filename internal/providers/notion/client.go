// Package notion implements the Notion REST API calls the docs sync
// worker needs: page metadata and paginated block children.
package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"

	// apiVersion is the Notion-Version header value.
	apiVersion = "2022-06-28"

	requestTimeout = 30 * time.Second

	// childrenPageSize is the page size for block children requests.
	childrenPageSize = 100

	// integrationRate matches Notion's documented 3 requests/second.
	integrationRate = 3.0

	maxRateLimitWaits = 2
)

// Page is the metadata of one Notion page.
type Page struct {
	ID             string
	Title          string
	URL            string
	CreatedTime    time.Time
	LastEditedTime time.Time
	Archived       bool
}

// Block is one block with its textual content flattened to plain text.
type Block struct {
	ID          string
	Type        string
	HasChildren bool
	PlainText   string
}

// Client is a minimal Notion REST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// NewClient creates a client authenticated with an integration token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(integrationRate), 1),
	}
}

// SetBaseURL overrides the API origin, for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// Validate checks the token by fetching the bot user.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := c.get(ctx, "/users/me"); err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	return nil
}

// GetPage fetches one page's metadata. An archived page is returned
// with Archived set so the caller can skip it.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	body, err := c.get(ctx, "/pages/"+pageID)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}

	var raw struct {
		ID             string                     `json:"id"`
		URL            string                     `json:"url"`
		CreatedTime    time.Time                  `json:"created_time"`
		LastEditedTime time.Time                  `json:"last_edited_time"`
		Archived       bool                       `json:"archived"`
		Properties     map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", pageID, err)
	}

	return &Page{
		ID:             raw.ID,
		Title:          titleOf(raw.Properties),
		URL:            raw.URL,
		CreatedTime:    raw.CreatedTime,
		LastEditedTime: raw.LastEditedTime,
		Archived:       raw.Archived,
	}, nil
}

// ChildrenPage fetches one page of a block's children. The returned
// cursor is "" when the listing is exhausted.
func (c *Client) ChildrenPage(
	ctx context.Context, blockID, cursor string,
) ([]Block, string, error) {
	path := fmt.Sprintf("/blocks/%s/children?page_size=%d", blockID, childrenPageSize)
	if cursor != "" {
		path += "&start_cursor=" + cursor
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("children of %s: %w", blockID, err)
	}

	var raw struct {
		Results    []json.RawMessage `json:"results"`
		HasMore    bool              `json:"has_more"`
		NextCursor string            `json:"next_cursor"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("decode children of %s: %w", blockID, err)
	}

	blocks := make([]Block, 0, len(raw.Results))
	for _, res := range raw.Results {
		block, err := decodeBlock(res)
		if err != nil {
			logger.Warn("notion: skipping malformed block under %s: %v", blockID, err)
			continue
		}
		blocks = append(blocks, block)
	}

	next := ""
	if raw.HasMore {
		next = raw.NextCursor
	}
	return blocks, next, nil
}

// decodeBlock extracts the block's id, type and plain text. The text
// lives in a payload keyed by the block's own type.
func decodeBlock(raw json.RawMessage) (Block, error) {
	var head struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Block{}, err
	}
	if head.Type == "" {
		return Block{}, fmt.Errorf("block %s has no type", head.ID)
	}

	var payloads map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return Block{}, err
	}

	block := Block{ID: head.ID, Type: head.Type, HasChildren: head.HasChildren}
	payload, ok := payloads[head.Type]
	if !ok {
		return block, nil
	}

	var content struct {
		RichText []struct {
			PlainText string `json:"plain_text"`
		} `json:"rich_text"`
	}
	// Payloads without rich_text (images, dividers) decode to empty.
	if err := json.Unmarshal(payload, &content); err != nil {
		return block, nil
	}

	var sb strings.Builder
	for _, rt := range content.RichText {
		sb.WriteString(rt.PlainText)
	}
	block.PlainText = sb.String()
	return block, nil
}

// titleOf finds the title property among a page's properties.
func titleOf(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var prop struct {
			Type  string `json:"type"`
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		}
		if err := json.Unmarshal(raw, &prop); err != nil || prop.Type != "title" {
			continue
		}
		var sb strings.Builder
		for _, rt := range prop.Title {
			sb.WriteString(rt.PlainText)
		}
		return sb.String()
	}
	return ""
}

// get performs one GET call, honouring 429 Retry-After a bounded
// number of times.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.baseURL + path

	for waits := 0; ; waits++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if waits >= maxRateLimitWaits {
				return nil, fmt.Errorf("%s: %w", path, domain.ErrRateLimited)
			}
			wait := retryAfter(resp.Header)
			logger.Debug("notion: rate limited on %s, waiting %s", path, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		default:
			return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
		}
	}
}

// retryAfter parses the Retry-After header, defaulting to 10s.
func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 10 * time.Second
}
