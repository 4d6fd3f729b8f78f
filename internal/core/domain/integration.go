package domain

import "time"

// Integration records a workspace's connection to a provider. The
// (WorkspaceID, Provider) pair is unique. Credential encryption and the
// OAuth exchange that populates AccessToken live outside this module;
// the token here is consumed through the CredentialStore port.
type Integration struct {
	// ID is the unique identifier (UUID).
	ID string

	// WorkspaceID is the owning workspace.
	WorkspaceID string

	// Provider is the connected provider.
	Provider Provider

	// AccessToken is the provider credential as handed over by the
	// credential collaborator.
	AccessToken string

	// SelectedTargets is the persisted subset to sync: repository full
	// names, channel IDs or page IDs depending on the provider.
	SelectedTargets []string

	// CreatedAt is when the integration was connected.
	CreatedAt time.Time

	// UpdatedAt is when the integration was last modified.
	UpdatedAt time.Time

	// DeletedAt marks a disconnected integration.
	DeletedAt *time.Time
}

// IsActive reports whether the integration is connected.
func (i *Integration) IsActive() bool {
	return i.DeletedAt == nil
}
