package domain

import "fmt"

// Provider identifies an external content provider.
type Provider string

const (
	// ProviderGitHub is the source-code hosting provider.
	ProviderGitHub Provider = "github"

	// ProviderSlack is the team chat provider.
	ProviderSlack Provider = "slack"

	// ProviderNotion is the workspace-documents provider.
	ProviderNotion Provider = "notion"
)

// AllProviders lists every supported provider in a stable order.
func AllProviders() []Provider {
	return []Provider{ProviderGitHub, ProviderSlack, ProviderNotion}
}

// ParseProvider validates and converts a provider string.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGitHub, ProviderSlack, ProviderNotion:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("%w: provider %q", ErrUnsupportedType, s)
	}
}

// String returns the provider identifier.
func (p Provider) String() string {
	return string(p)
}

// SourceType identifies the kind of content an item was derived from.
// Each provider owns a disjoint set of source types, so external IDs
// never collide across providers within a workspace.
type SourceType string

const (
	// SourceGitHubIssue is a code-host issue with its comments.
	SourceGitHubIssue SourceType = "github_issue"

	// SourceGitHubPull is a code-host pull request.
	SourceGitHubPull SourceType = "github_pull"

	// SourceGitHubCommit is a single commit from the recent-commit window.
	SourceGitHubCommit SourceType = "github_commit"

	// SourceGitHubFile is a documentation file (README or docs/ folder).
	SourceGitHubFile SourceType = "github_file"

	// SourceSlackMessage is a standalone chat message.
	SourceSlackMessage SourceType = "slack_message"

	// SourceSlackThread is an aggregated chat thread (parent plus replies).
	SourceSlackThread SourceType = "slack_thread"

	// SourceNotionPage is a flattened block-structured document page.
	SourceNotionPage SourceType = "notion_page"
)

// Provider returns the provider that owns this source type.
func (s SourceType) Provider() Provider {
	switch s {
	case SourceGitHubIssue, SourceGitHubPull, SourceGitHubCommit, SourceGitHubFile:
		return ProviderGitHub
	case SourceSlackMessage, SourceSlackThread:
		return ProviderSlack
	case SourceNotionPage:
		return ProviderNotion
	default:
		return ""
	}
}

// String returns the source type identifier.
func (s SourceType) String() string {
	return string(s)
}
