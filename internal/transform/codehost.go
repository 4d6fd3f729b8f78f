// Package transform maps provider-native payloads into canonical item
// drafts. All functions are pure: no I/O, no stored state, stable
// external ids derived only from immutable provider identifiers.
//
// Importance scores are additive heuristics clamped to [0, 1]. Each
// signal only ever raises the score, so more engagement or stronger
// structural markers never rank an item lower.
package transform

import (
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/providers/github"
)

// Engagement and structure weights for code-host content.
const (
	issueBase  = 0.2
	pullBase   = 0.25
	commitBase = 0.15
	readmeBase = 0.5
	docBase    = 0.4

	// perCommentWeight accrues per comment, capped at maxCommentBonus.
	perCommentWeight = 0.015
	maxCommentBonus  = 0.3

	// criticalLabelBonus applies once if any label marks the item as
	// high-severity; bugLabelBonus applies for ordinary defect labels.
	criticalLabelBonus = 0.2
	bugLabelBonus      = 0.1

	mergedBonus = 0.15

	// longContentBonus applies once when the body exceeds
	// longContentThreshold characters.
	longContentBonus     = 0.1
	longContentThreshold = 500

	// recentBonus applies once for items updated in the last 30 days.
	recentBonus  = 0.1
	recentWindow = 30 * 24 * time.Hour
)

var criticalLabels = map[string]bool{
	"critical": true,
	"security": true,
	"urgent":   true,
	"p0":       true,
}

var bugLabels = map[string]bool{
	"bug":        true,
	"defect":     true,
	"regression": true,
}

// IssueToDraft maps a GitHub issue. The external id is derived from the
// repository and the immutable issue number.
func IssueToDraft(repo string, issue *gh.Issue) domain.ItemDraft {
	number := issue.GetNumber()

	var sb strings.Builder
	sb.WriteString(issue.GetBody())
	if labels := labelNames(issue.Labels); len(labels) > 0 {
		sb.WriteString("\n\nLabels: ")
		sb.WriteString(strings.Join(labels, ", "))
	}

	score := issueBase +
		commentBonus(issue.GetComments()) +
		labelBonus(issue.Labels) +
		lengthBonus(issue.GetBody()) +
		recencyBonus(issue.GetUpdatedAt().Time)

	return domain.ItemDraft{
		SourceType: domain.SourceGitHubIssue,
		ExternalID: fmt.Sprintf("github:issue:%s:%d", repo, number),
		Title:      fmt.Sprintf("[%s#%d] %s", repo, number, issue.GetTitle()),
		Content:    sb.String(),
		URL:        issue.GetHTMLURL(),
		Metadata: map[string]any{
			"repo":     repo,
			"number":   number,
			"state":    issue.GetState(),
			"author":   issue.GetUser().GetLogin(),
			"labels":   labelNames(issue.Labels),
			"comments": issue.GetComments(),
		},
		Importance: domain.ClampScore(score),
	}
}

// PullToDraft maps a GitHub pull request.
func PullToDraft(repo string, pull *gh.PullRequest) domain.ItemDraft {
	number := pull.GetNumber()

	score := pullBase +
		commentBonus(pull.GetComments()+pull.GetReviewComments()) +
		lengthBonus(pull.GetBody()) +
		recencyBonus(pull.GetUpdatedAt().Time)
	if pull.GetMerged() || pull.MergedAt != nil {
		score += mergedBonus
	}

	return domain.ItemDraft{
		SourceType: domain.SourceGitHubPull,
		ExternalID: fmt.Sprintf("github:pull:%s:%d", repo, number),
		Title:      fmt.Sprintf("[%s#%d] %s", repo, number, pull.GetTitle()),
		Content:    pull.GetBody(),
		URL:        pull.GetHTMLURL(),
		Metadata: map[string]any{
			"repo":   repo,
			"number": number,
			"state":  pull.GetState(),
			"author": pull.GetUser().GetLogin(),
			"merged": pull.GetMerged() || pull.MergedAt != nil,
			"branch": pull.GetHead().GetRef(),
		},
		Importance: domain.ClampScore(score),
	}
}

// CommitToDraft maps a commit. The external id is the immutable SHA.
func CommitToDraft(repo string, commit *gh.RepositoryCommit) domain.ItemDraft {
	sha := commit.GetSHA()
	message := commit.GetCommit().GetMessage()
	subject, _, _ := strings.Cut(message, "\n")

	score := commitBase +
		lengthBonus(message) +
		recencyBonus(commit.GetCommit().GetAuthor().GetDate().Time)

	return domain.ItemDraft{
		SourceType: domain.SourceGitHubCommit,
		ExternalID: fmt.Sprintf("github:commit:%s:%s", repo, sha),
		Title:      fmt.Sprintf("[%s] %s", repo, subject),
		Content:    message,
		URL:        commit.GetHTMLURL(),
		Metadata: map[string]any{
			"repo":   repo,
			"sha":    sha,
			"author": commit.GetCommit().GetAuthor().GetName(),
		},
		Importance: domain.ClampScore(score),
	}
}

// FileToDraft maps a README or docs file. The external id is the
// repository plus the file path.
func FileToDraft(repo string, file github.DocFile) domain.ItemDraft {
	base := docBase
	if isReadme(file.Path) {
		base = readmeBase
	}
	score := base + lengthBonus(file.Content)

	return domain.ItemDraft{
		SourceType: domain.SourceGitHubFile,
		ExternalID: fmt.Sprintf("github:file:%s:%s", repo, file.Path),
		Title:      fmt.Sprintf("[%s] %s", repo, file.Path),
		Content:    file.Content,
		URL:        file.HTMLURL,
		Metadata: map[string]any{
			"repo": repo,
			"path": file.Path,
		},
		Importance: domain.ClampScore(score),
	}
}

func commentBonus(comments int) float64 {
	bonus := float64(comments) * perCommentWeight
	if bonus > maxCommentBonus {
		return maxCommentBonus
	}
	return bonus
}

func labelBonus(labels []*gh.Label) float64 {
	bonus := 0.0
	critical, bug := false, false
	for _, l := range labels {
		name := strings.ToLower(l.GetName())
		critical = critical || criticalLabels[name]
		bug = bug || bugLabels[name]
	}
	if critical {
		bonus += criticalLabelBonus
	}
	if bug {
		bonus += bugLabelBonus
	}
	return bonus
}

func lengthBonus(content string) float64 {
	if len(content) > longContentThreshold {
		return longContentBonus
	}
	return 0
}

func recencyBonus(updatedAt time.Time) float64 {
	if !updatedAt.IsZero() && time.Since(updatedAt) < recentWindow {
		return recentBonus
	}
	return 0
}

func labelNames(labels []*gh.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}

func isReadme(path string) bool {
	name := strings.ToLower(path)
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.HasPrefix(name, "readme")
}
