package driven

import (
	"context"

	"github.com/custodia-labs/hivemind/internal/core/domain"
)

// IntegrationStore exposes which providers are connected per workspace
// and the persisted selected subset to sync. Integration CRUD and the
// OAuth flows that populate it are external collaborators.
type IntegrationStore interface {
	// Save stores or updates an integration, keyed by (workspace, provider).
	Save(ctx context.Context, integ domain.Integration) error

	// Get retrieves the integration for a workspace and provider.
	// Returns domain.ErrNotFound when none exists.
	Get(ctx context.Context, workspaceID string, provider domain.Provider) (*domain.Integration, error)

	// ListActive returns the workspace's non-deleted integrations.
	ListActive(ctx context.Context, workspaceID string) ([]domain.Integration, error)

	// ListActiveWorkspaces returns every workspace with at least one
	// active integration. Used by the scheduler.
	ListActiveWorkspaces(ctx context.Context) ([]string, error)
}

// CredentialStore resolves the decrypted provider credential for a
// workspace. Encryption and storage are out-of-scope collaborators.
type CredentialStore interface {
	// GetDecryptedAccessToken returns the token, or an empty string
	// (not an error) when no connection exists.
	GetDecryptedAccessToken(ctx context.Context, workspaceID string, provider domain.Provider) (string, error)
}
