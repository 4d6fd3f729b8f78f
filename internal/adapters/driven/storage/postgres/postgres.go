// Package postgres is the PostgreSQL storage adapter. One pgx pool
// backs every store interface; vector search relies on the pgvector
// extension, created by the embedded migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx v5 migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
)

// Store is a unified PostgreSQL-backed storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database, runs pending migrations and
// returns the store. connURL must be a postgres:// or postgresql:// URL.
func NewStore(ctx context.Context, connURL string) (*Store, error) {
	if err := runMigrations(connURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ItemStore returns an ItemStore interface backed by this store.
func (s *Store) ItemStore() driven.ItemStore {
	return &itemStore{store: s}
}

// VectorStore returns a VectorStore interface backed by this store.
func (s *Store) VectorStore() driven.VectorStore {
	return &vectorStore{store: s}
}

// IntegrationStore returns an IntegrationStore interface backed by this
// store. The same wrapper also serves as the CredentialStore.
func (s *Store) IntegrationStore() driven.IntegrationStore {
	return &integrationStore{store: s}
}

// CredentialStore returns a CredentialStore interface backed by this store.
func (s *Store) CredentialStore() driven.CredentialStore {
	return &integrationStore{store: s}
}

// runMigrations applies all pending embedded migrations.
func runMigrations(connURL string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	migrateURL, err := toMigrateURL(connURL)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer m.Close() //nolint:errcheck

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// toMigrateURL rewrites a postgres URL to the pgx5 scheme golang-migrate
// expects for its pgx v5 driver.
func toMigrateURL(connURL string) (string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parsing database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
}
