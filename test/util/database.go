// Package util provides test utilities for database-backed tests.
package util

import (
	stdsql "database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codegraph-labs/justify/pkg/graphstore"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SetupTestAdapter starts (or reuses) a shared Postgres testcontainer,
// opens a fresh connection with migrations applied, and returns both the
// Adapter and the raw *sql.DB for collaborators (e.g. pkg/queue) that need
// direct SQL access to tables outside the Adapter's surface.
func SetupTestAdapter(t *testing.T) (*graphstore.PostgresAdapter, *stdsql.DB) {
	t.Helper()
	connStr := getOrCreateSharedDatabase(t)

	adapter, err := graphstore.NewPostgresAdapter(graphstore.PostgresConfig{
		DSN:          connStr,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = adapter.DB().Exec(`TRUNCATE entities, relationships, justifications, justify_runs`)
		_ = adapter.Close()
	})

	return adapter, adapter.DB()
}

func getOrCreateSharedDatabase(t *testing.T) string {
	t.Helper()
	if ciDatabaseURL := os.Getenv("CI_DATABASE_URL"); ciDatabaseURL != "" {
		return ciDatabaseURL
	}

	containerOnce.Do(func() {
		ctx := t.Context()
		t.Log("Starting shared PostgreSQL testcontainer for all tests")

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("failed to get connection string: %w", err)
			return
		}
		sharedConnStr = connStr
	})

	require.NoError(t, containerErr, "failed to set up shared test container")
	return sharedConnStr
}

// UniqueProjectRoot returns a deterministic-enough unique path for seeding
// a justify_runs row in tests that share a database.
func UniqueProjectRoot(t *testing.T) string {
	return "/test/" + strings.ToLower(t.Name())
}
