// Package github wraps the go-github client with rate-limit discipline
// and page-granular fetch methods for the code-host sync worker.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	// requestTimeout bounds every outbound HTTP call.
	requestTimeout = 30 * time.Second

	// PerPage is the page size for list endpoints.
	PerPage = 100

	// maxRateLimitWaits bounds how often a single call honours an
	// explicit rate-limit response before giving up.
	maxRateLimitWaits = 2

	// docsFolder is the documentation directory scanned per repository.
	docsFolder = "docs"
)

// DocFile is one documentation file fetched from a repository.
type DocFile struct {
	Path    string
	Content string
	HTMLURL string
}

// Client wraps go-github with throttling shared across all calls made
// for one sync job.
type Client struct {
	gh      *gh.Client
	limiter *RateLimiter
}

// NewClient creates an authenticated client.
func NewClient(ctx context.Context, token string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = requestTimeout
	return &Client{
		gh:      gh.NewClient(tc),
		limiter: NewRateLimiter(),
	}
}

// Limiter exposes the rate limiter for inspection.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// Validate checks the credential with a lightweight API call.
func (c *Client) Validate(ctx context.Context) error {
	_, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	return nil
}

// ListIssuesPage fetches one page of issues updated since the cursor,
// oldest first. Returns the issues and the next page number (0 when
// exhausted). Pull requests are filtered out by the caller.
func (c *Client) ListIssuesPage(
	ctx context.Context, owner, repo string, page int, since time.Time,
) ([]*gh.Issue, int, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: gh.ListOptions{Page: page, PerPage: PerPage},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	var issues []*gh.Issue
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		issues, resp, callErr = c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		return nil, 0, fmt.Errorf("list issues %s/%s: %w", owner, repo, err)
	}
	return issues, resp.NextPage, nil
}

// ListPullsPage fetches one page of pull requests, newest update first.
func (c *Client) ListPullsPage(
	ctx context.Context, owner, repo string, page int,
) ([]*gh.PullRequest, int, error) {
	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{Page: page, PerPage: PerPage},
	}

	var pulls []*gh.PullRequest
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		pulls, resp, callErr = c.gh.PullRequests.List(ctx, owner, repo, opts)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		return nil, 0, fmt.Errorf("list pulls %s/%s: %w", owner, repo, err)
	}
	return pulls, resp.NextPage, nil
}

// ListCommitsPage fetches one page of commits since the cursor.
func (c *Client) ListCommitsPage(
	ctx context.Context, owner, repo string, page int, since time.Time,
) ([]*gh.RepositoryCommit, int, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: PerPage},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	var commits []*gh.RepositoryCommit
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		commits, resp, callErr = c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		return nil, 0, fmt.Errorf("list commits %s/%s: %w", owner, repo, err)
	}
	return commits, resp.NextPage, nil
}

// GetReadme fetches the repository's root README, or nil when absent.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (*DocFile, error) {
	var content *gh.RepositoryContent
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		content, resp, callErr = c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get readme %s/%s: %w", owner, repo, err)
	}

	text, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode readme %s/%s: %w", owner, repo, err)
	}
	return &DocFile{
		Path:    content.GetPath(),
		Content: text,
		HTMLURL: content.GetHTMLURL(),
	}, nil
}

// ListDocsFiles scans the docs/ folder and fetches every markdown and
// text file in it. A missing folder is not an error.
func (c *Client) ListDocsFiles(ctx context.Context, owner, repo string) ([]DocFile, error) {
	var dir []*gh.RepositoryContent
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		_, dir, resp, callErr = c.gh.Repositories.GetContents(ctx, owner, repo, docsFolder, nil)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list docs %s/%s: %w", owner, repo, err)
	}

	var files []DocFile
	for _, entry := range dir {
		if entry.GetType() != "file" || !isDocPath(entry.GetPath()) {
			continue
		}
		file, fileErr := c.getFile(ctx, owner, repo, entry.GetPath())
		if fileErr != nil {
			logger.Warn("github: skipping docs file %s: %v", entry.GetPath(), fileErr)
			continue
		}
		files = append(files, *file)
	}
	return files, nil
}

// getFile fetches and decodes a single file.
func (c *Client) getFile(ctx context.Context, owner, repo, filePath string) (*DocFile, error) {
	var content *gh.RepositoryContent
	var resp *gh.Response
	err := c.call(ctx, func() error {
		var callErr error
		content, _, resp, callErr = c.gh.Repositories.GetContents(ctx, owner, repo, filePath, nil)
		return callErr
	}, func() *gh.Response { return resp })
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%s is a directory", filePath)
	}

	text, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return &DocFile{
		Path:    content.GetPath(),
		Content: text,
		HTMLURL: content.GetHTMLURL(),
	}, nil
}

// call runs one API call under the rate limiter. An explicit
// rate-limit response is honoured for its exact retry-after duration
// before the call is repeated, a bounded number of times.
func (c *Client) call(ctx context.Context, do func() error, respOf func() *gh.Response) error {
	for waits := 0; ; waits++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := do()
		c.limiter.Update(respOf())
		if err == nil {
			return nil
		}

		retryAfter, limited := retryAfterOf(err)
		if !limited || waits >= maxRateLimitWaits {
			return err
		}

		logger.Debug("github: rate limited, waiting %s", retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

// retryAfterOf extracts the exact wait the API asked for.
func retryAfterOf(err error) (time.Duration, bool) {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		wait := time.Until(rle.Rate.Reset.Time)
		if wait < time.Second {
			wait = time.Second
		}
		return wait, true
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return *abuse.RetryAfter, true
		}
		return time.Minute, true
	}
	return 0, false
}

// IsNotFound reports whether an error is a 404 from the API.
func IsNotFound(err error) bool {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited reports whether an error is a rate-limit response.
func IsRateLimited(err error) bool {
	_, limited := retryAfterOf(err)
	return limited || errors.Is(err, domain.ErrRateLimited)
}

// isDocPath reports whether a path looks like readable documentation.
func isDocPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".txt", ".rst":
		return true
	default:
		return false
	}
}

// SplitRepo parses an "owner/name" target into its parts.
func SplitRepo(full string) (owner, name string, err error) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: repository %q, want owner/name", domain.ErrInvalidInput, full)
	}
	return parts[0], parts[1], nil
}
