// Package dbtest starts a throwaway PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"photo-relay-bot/internal/pkg/db"
)

// MaxTxRetries is the retry budget of pools returned by New.
const MaxTxRetries = 5

// dockerAvailable checks if Docker is available and running
func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// New creates a PostgreSQL container with the schema migrated and returns a
// pool on it. The container is terminated when the test ends.
// Skips the test if Docker is not available.
func New(t testing.TB) *db.Pool {
	t.Helper()
	if !dockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return db.Wrap(pool, MaxTxRetries)
}

// Truncate empties every game table so a test can reuse the container.
func Truncate(t testing.TB, pool *db.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE participation, win, game`)
	require.NoError(t, err)
}
