// Package testutil provides testing utilities for the warehouse service:
// a shared PostgreSQL testcontainer, schema-per-test isolation, sqlmock
// helpers and warehouse fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ImageEnv overrides the PostgreSQL image used by integration tests.
const ImageEnv = "WAREFLOW_TEST_POSTGRES_IMAGE"

const defaultImage = "postgres:15-alpine"

// PostgresContainer is the running test database.
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// StartPostgres starts a PostgreSQL container and waits until it accepts
// connections. The image comes from ImageEnv when set.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	image := os.Getenv(ImageEnv)
	if image == "" {
		image = defaultImage
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase("wareflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			// the server logs readiness twice: once for the init run, once for real
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container %s: %w", image, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, DSN: dsn}, nil
}

// Connect opens the admin pool used to create and drop test schemas.
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}
