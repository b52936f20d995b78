/*
Package dbtest starts a disposable PostgreSQL container for integration tests.

Tests that call NewPool are skipped unless TEST_INTEGRATION is set.
*/
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"sixmarket/internal/app/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Seeded by the initial migration.
const (
	CategoryElectronics = "00000000-0000-4000-8000-000000000001"
	CategoryBooks       = "00000000-0000-4000-8000-000000000005"
	TagVintage          = "00000000-0000-4000-8000-000000000101"
	TagRare             = "00000000-0000-4000-8000-000000000105"
)

// NewPool runs postgres in a container, applies the migrations and returns a pool.
// The container is terminated when the test finishes.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("sixmarket_test"),
		postgres.WithUsername("sixmarket"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}
