package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// MigrationManager applies module schemas exactly once, in registration
// name order, recording applied names in schema_migrations.
type MigrationManager interface {
	RegisterSchema(name string, ddl string)
	Apply(ctx context.Context) error
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{
		pool:    pool,
		logger:  logger,
		schemas: make(map[string]string),
	}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	schemas map[string]string
}

func (m *migrationManager) RegisterSchema(name string, ddl string) {
	if _, ok := m.schemas[name]; ok {
		panic(fmt.Sprintf("schema %q registered twice", name))
	}
	m.schemas[name] = ddl
}

func (m *migrationManager) Apply(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       varchar(255) PRIMARY KEY,
			applied_at timestamptz  NOT NULL DEFAULT now()
		)`,
	); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}

	names := make([]string, 0, len(m.schemas))
	for name := range m.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := m.isApplied(ctx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := m.apply(ctx, name, m.schemas[name]); err != nil {
			return fmt.Errorf("failed to apply schema %q: %w", name, err)
		}
		m.logger.WithField("schema", name).Info("applied schema")
	}
	return nil
}

func (m *migrationManager) isApplied(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`,
		name,
	).Scan(&exists)
	return exists, err
}

func (m *migrationManager) apply(ctx context.Context, name, ddl string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
