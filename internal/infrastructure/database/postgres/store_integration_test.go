//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

// startPostgres launches a PostgreSQL 16 container and returns its config.
func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "reactions_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "..", "..", "migrations"))
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:          host,
		Port:          port.Int(),
		User:          "test",
		Password:      "test",
		DBName:        "reactions_test",
		SSLMode:       "disable",
		MigrationPath: migrations,
	}
}

func TestDocumentStore_AgainstPostgres(t *testing.T) {
	cfg := startPostgres(t)
	log := logging.NewNopLogger()

	mg, err := postgres.OpenMigrator(cfg, log)
	require.NoError(t, err)
	require.NoError(t, mg.Up())
	version, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	require.NoError(t, mg.Close())

	conn, err := postgres.NewConnection(cfg, log)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.HealthCheck(context.Background()))

	store := repositories.NewDocumentRepository(conn.DB(), log, nil)
	ctx := context.Background()
	ts := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	rec := &reaction.RheaReactionRecord{
		RheaID:    "10000",
		ChEBI:     map[string]string{"CHEBI:15377": "water"},
		ECNumber:  reaction.Found("3.5.1.50"),
		Timestamp: ts,
	}
	require.NoError(t, store.UpsertRhea(ctx, rec))

	rec.ChEBI["CHEBI:57540"] = "NAD(+)"
	rec.Timestamp = ts.Add(time.Hour)
	require.NoError(t, store.UpsertRhea(ctx, rec))

	n, err := store.Count(ctx, reaction.KindRhea)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetRhea(ctx, "10000")
	require.NoError(t, err)
	assert.Len(t, got.ChEBI, 2)
	assert.True(t, ts.Add(time.Hour).Equal(got.Timestamp))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertRhea(ctx, &reaction.RheaReactionRecord{
			RheaID:    fmt.Sprintf("%d", 9998+i*2),
			ChEBI:     map[string]string{},
			ECNumber:  reaction.Found("1.1.1.1"),
			Timestamp: ts,
		}))
	}
	list, err := store.ListRheaByEC(ctx, "1.1.1.1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"9998", "10000", "10002"}, []string{list[0].RheaID, list[1].RheaID, list[2].RheaID})

	runs := repositories.NewRunRepository(conn.DB())
	require.NoError(t, runs.RecordRun(ctx, reaction.RunRecord{ID: "r1", Pass: "rhea", StartedAt: ts, FinishedAt: ts}))
	recent, err := runs.RecentRuns(ctx, "rhea", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	mg, err = postgres.OpenMigrator(cfg, log)
	require.NoError(t, err)
	require.NoError(t, mg.Down(2))
	require.NoError(t, mg.Close())
}
