package github

import (
	"errors"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "valid", input: "acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{name: "nested path stays in name", input: "acme/widgets/extra", wantOwner: "acme", wantRepo: "widgets/extra"},
		{name: "missing slash", input: "acme", wantErr: true},
		{name: "empty owner", input: "/widgets", wantErr: true},
		{name: "empty name", input: "acme/", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := SplitRepo(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestIsDocPath(t *testing.T) {
	assert.True(t, isDocPath("docs/guide.md"))
	assert.True(t, isDocPath("docs/README.MD"))
	assert.True(t, isDocPath("docs/notes.txt"))
	assert.True(t, isDocPath("docs/spec.rst"))
	assert.False(t, isDocPath("docs/diagram.png"))
	assert.False(t, isDocPath("docs/setup.sh"))
	assert.False(t, isDocPath("docs/Makefile"))
}

func TestRetryAfterOf(t *testing.T) {
	t.Run("primary rate limit uses reset time", func(t *testing.T) {
		err := &gh.RateLimitError{
			Rate: gh.Rate{Reset: gh.Timestamp{Time: time.Now().Add(30 * time.Second)}},
		}
		wait, limited := retryAfterOf(err)
		require.True(t, limited)
		assert.Greater(t, wait, 25*time.Second)
	})

	t.Run("past reset clamps to one second", func(t *testing.T) {
		err := &gh.RateLimitError{
			Rate: gh.Rate{Reset: gh.Timestamp{Time: time.Now().Add(-time.Minute)}},
		}
		wait, limited := retryAfterOf(err)
		require.True(t, limited)
		assert.Equal(t, time.Second, wait)
	})

	t.Run("abuse limit uses retry-after", func(t *testing.T) {
		after := 10 * time.Second
		err := &gh.AbuseRateLimitError{RetryAfter: &after}
		wait, limited := retryAfterOf(err)
		require.True(t, limited)
		assert.Equal(t, after, wait)
	})

	t.Run("abuse limit without retry-after defaults", func(t *testing.T) {
		wait, limited := retryAfterOf(&gh.AbuseRateLimitError{})
		require.True(t, limited)
		assert.Equal(t, time.Minute, wait)
	})

	t.Run("other errors are not limits", func(t *testing.T) {
		_, limited := retryAfterOf(errors.New("network down"))
		assert.False(t, limited)
	})
}

func TestIsNotFound(t *testing.T) {
	notFound := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}
	assert.True(t, IsNotFound(notFound))

	forbidden := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	assert.False(t, IsNotFound(forbidden))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestRateLimiter_Update(t *testing.T) {
	r := NewRateLimiter()
	assert.Equal(t, authenticatedQuota, r.Remaining())

	reset := time.Now().Add(20 * time.Minute)
	r.Update(&gh.Response{Rate: gh.Rate{Remaining: 42, Reset: gh.Timestamp{Time: reset}}})

	assert.Equal(t, 42, r.Remaining())
	assert.WithinDuration(t, reset, r.ResetAt(), time.Second)

	// Nil responses leave state untouched.
	r.Update(nil)
	assert.Equal(t, 42, r.Remaining())
}
