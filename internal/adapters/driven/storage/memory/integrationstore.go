package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// IntegrationStore is an in-memory IntegrationStore. It doubles as the
// CredentialStore since the memory backend holds tokens in the clear.
type IntegrationStore struct {
	mu           sync.RWMutex
	integrations map[string]domain.Integration // by (workspace, provider)
}

var (
	_ driven.IntegrationStore = (*IntegrationStore)(nil)
	_ driven.CredentialStore  = (*IntegrationStore)(nil)
)

// NewIntegrationStore creates an empty store.
func NewIntegrationStore() *IntegrationStore {
	return &IntegrationStore{
		integrations: make(map[string]domain.Integration),
	}
}

func integKey(workspaceID string, provider domain.Provider) string {
	return workspaceID + "\x00" + string(provider)
}

// Save stores or updates an integration.
func (s *IntegrationStore) Save(ctx context.Context, integ domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	key := integKey(integ.WorkspaceID, integ.Provider)
	if existing, ok := s.integrations[key]; ok {
		integ.ID = existing.ID
		integ.CreatedAt = existing.CreatedAt
	} else {
		if integ.ID == "" {
			integ.ID = uuid.NewString()
		}
		if integ.CreatedAt.IsZero() {
			integ.CreatedAt = now
		}
	}
	integ.UpdatedAt = now
	s.integrations[key] = integ
	return nil
}

// Get retrieves the integration for a workspace and provider.
func (s *IntegrationStore) Get(ctx context.Context, workspaceID string, provider domain.Provider) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	integ, ok := s.integrations[integKey(workspaceID, provider)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &integ, nil
}

// ListActive returns the workspace's active integrations.
func (s *IntegrationStore) ListActive(ctx context.Context, workspaceID string) ([]domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []domain.Integration
	for _, integ := range s.integrations {
		if integ.WorkspaceID == workspaceID && integ.IsActive() {
			active = append(active, integ)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Provider < active[j].Provider
	})
	return active, nil
}

// ListActiveWorkspaces returns every workspace with at least one
// active integration.
func (s *IntegrationStore) ListActiveWorkspaces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var workspaces []string
	for _, integ := range s.integrations {
		if integ.IsActive() && !seen[integ.WorkspaceID] {
			seen[integ.WorkspaceID] = true
			workspaces = append(workspaces, integ.WorkspaceID)
		}
	}
	sort.Strings(workspaces)
	return workspaces, nil
}

// GetDecryptedAccessToken returns the stored token, or "" when the
// provider is not connected.
func (s *IntegrationStore) GetDecryptedAccessToken(ctx context.Context, workspaceID string, provider domain.Provider) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	integ, ok := s.integrations[integKey(workspaceID, provider)]
	if !ok || !integ.IsActive() {
		return "", nil
	}
	return integ.AccessToken, nil
}
