//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/apidelta/pkg/storage"
)

// setupPostgres starts a PostgreSQL container and opens a store against it
func setupPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("apidelta_test"),
		tcpostgres.WithUsername("apidelta"),
		tcpostgres.WithPassword("apidelta_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.Type = "postgres"
	cfg.PostgresURL = connStr
	store, err := storage.NewFromConfig(ctx, cfg)
	require.NoError(t, err)

	s := store.(*PostgresStorage)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage_Integration(t *testing.T) {
	ctx := context.Background()
	s := setupPostgres(t)

	require.NoError(t, s.HealthCheck(ctx))
	// migrations are idempotent
	require.NoError(t, s.Migrate(ctx))

	info, err := s.PutBaseline(ctx, sampleDoc("release-1", "1.0.0"))
	require.NoError(t, err)
	_, err = s.PutBaseline(ctx, sampleDoc("release-1", "1.0.1"))
	require.NoError(t, err)

	infos, err := s.ListBaselines(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.NotEqual(t, info.Fingerprint, infos[0].Fingerprint)

	r := sampleReport("release-1", "release-1", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.SaveReport(ctx, r))
	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	summaries, err := s.ListReports(ctx, storage.ReportFilter{Baseline: "release-1"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].CreatedAt.Equal(r.CreatedAt))

	require.NoError(t, s.DeleteBaseline(ctx, "release-1"))
	_, err = s.GetBaseline(ctx, "release-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
