package testutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// TestSchema is an isolated PostgreSQL schema holding one test's tables.
// DB is pinned to the schema through search_path, so every connection of
// its pool (including transactions) sees only this test's data.
type TestSchema struct {
	Name string
	DB   *database.DB
}

// SchemaManager creates and drops per-test schemas
type SchemaManager struct {
	admin   *sqlx.DB
	baseDSN string
	log     *logger.Logger
}

// NewSchemaManager creates a schema manager on top of an admin connection.
// baseDSN must be a postgres:// URL; the search_path is added per schema.
func NewSchemaManager(admin *sqlx.DB, baseDSN string, log *logger.Logger) *SchemaManager {
	return &SchemaManager{admin: admin, baseDSN: baseDSN, log: log}
}

// Create makes a fresh schema, applies migrations inside it and opens a
// pool bound to it.
func (sm *SchemaManager) Create(ctx context.Context, prefix string, migrations []string) (*TestSchema, error) {
	name := fmt.Sprintf("%s_%s", sanitize(prefix), strings.ReplaceAll(uuid.NewString()[:8], "-", ""))

	if _, err := sm.admin.ExecContext(ctx, "CREATE SCHEMA "+name); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	dsn, err := withSearchPath(sm.baseDSN, name)
	if err != nil {
		return nil, err
	}
	db, err := database.NewWithDSN(dsn, sm.log)
	if err != nil {
		return nil, err
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}

	return &TestSchema{Name: name, DB: db}, nil
}

// Drop closes the schema's pool and removes the schema with everything in it.
func (sm *SchemaManager) Drop(ctx context.Context, s *TestSchema) error {
	s.DB.Close()
	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name)); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}

func withSearchPath(rawDSN, schema string) (string, error) {
	u, err := url.Parse(rawDSN)
	if err != nil {
		return "", fmt.Errorf("invalid test DSN: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sanitize(prefix string) string {
	prefix = strings.ToLower(prefix)
	var b strings.Builder
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "test"
	}
	return b.String()
}
