package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

const integrationColumns = `id, workspace_id, provider, access_token, selected_targets,
	created_at, updated_at, deleted_at`

// integrationStore implements driven.IntegrationStore and
// driven.CredentialStore.
type integrationStore struct {
	store *Store
}

var (
	_ driven.IntegrationStore = (*integrationStore)(nil)
	_ driven.CredentialStore  = (*integrationStore)(nil)
)

// Save stores or updates an integration, keyed by (workspace, provider).
func (s *integrationStore) Save(ctx context.Context, integ domain.Integration) error {
	targetsJSON, err := json.Marshal(integ.SelectedTargets)
	if err != nil {
		return fmt.Errorf("marshalling targets: %w", err)
	}

	id := integ.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err = s.store.pool.Exec(ctx, `
		INSERT INTO integrations (id, workspace_id, provider, access_token, selected_targets,
			created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (workspace_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			selected_targets = excluded.selected_targets,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
	`, id, integ.WorkspaceID, string(integ.Provider), integ.AccessToken,
		targetsJSON, now, integ.DeletedAt)
	if err != nil {
		return fmt.Errorf("saving integration: %w", err)
	}
	return nil
}

// Get retrieves the integration for a workspace and provider.
func (s *integrationStore) Get(
	ctx context.Context, workspaceID string, provider domain.Provider,
) (*domain.Integration, error) {
	row := s.store.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE workspace_id = $1 AND provider = $2`,
		workspaceID, string(provider))

	integ, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting integration: %w", err)
	}
	return integ, nil
}

// ListActive returns the workspace's non-deleted integrations.
func (s *integrationStore) ListActive(ctx context.Context, workspaceID string) ([]domain.Integration, error) {
	rows, err := s.store.pool.Query(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE workspace_id = $1 AND deleted_at IS NULL
		 ORDER BY provider`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	var integs []domain.Integration //nolint:prealloc // size unknown from query
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		integs = append(integs, *integ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integrations: %w", err)
	}
	return integs, nil
}

// ListActiveWorkspaces returns every workspace with at least one active
// integration.
func (s *integrationStore) ListActiveWorkspaces(ctx context.Context) ([]string, error) {
	rows, err := s.store.pool.Query(ctx,
		`SELECT DISTINCT workspace_id FROM integrations
		 WHERE deleted_at IS NULL ORDER BY workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		workspaces = append(workspaces, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workspaces: %w", err)
	}
	return workspaces, nil
}

// GetDecryptedAccessToken returns the token, or an empty string when no
// active connection exists.
func (s *integrationStore) GetDecryptedAccessToken(
	ctx context.Context, workspaceID string, provider domain.Provider,
) (string, error) {
	var token string
	err := s.store.pool.QueryRow(ctx,
		`SELECT access_token FROM integrations
		 WHERE workspace_id = $1 AND provider = $2 AND deleted_at IS NULL`,
		workspaceID, string(provider)).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting access token: %w", err)
	}
	return token, nil
}

func scanIntegration(row pgx.Row) (*domain.Integration, error) {
	var integ domain.Integration
	var provider string
	var targetsJSON []byte
	if err := row.Scan(&integ.ID, &integ.WorkspaceID, &provider, &integ.AccessToken,
		&targetsJSON, &integ.CreatedAt, &integ.UpdatedAt, &integ.DeletedAt); err != nil {
		return nil, err
	}
	integ.Provider = domain.Provider(provider)
	if err := json.Unmarshal(targetsJSON, &integ.SelectedTargets); err != nil {
		return nil, fmt.Errorf("unmarshaling targets: %w", err)
	}
	return &integ, nil
}
