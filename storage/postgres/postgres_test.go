package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/storage"
	"campusride/storage/storagetest"
)

func startPostgres(t *testing.T) config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	postgresC, err := testcontainers.Run(
		ctx, "postgres:16",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(2*time.Minute),
		),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "campusride",
			"POSTGRES_PASSWORD": "campusride",
			"POSTGRES_DB":       "campusride_test",
		}),
	)
	testcontainers.CleanupContainer(t, postgresC)
	require.NoError(t, err)

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations", "postgres"))
	require.NoError(t, err)

	return config.Config{
		PostgresHost:     host,
		PostgresPort:     port.Port(),
		PostgresUser:     "campusride",
		PostgresPassword: "campusride",
		PostgresDB:       "campusride_test",
		MigrationsPath:   migrations,
	}
}

func TestStore(t *testing.T) {
	cfg := startPostgres(t)

	store, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	storagetest.Run(t, func(t *testing.T) storage.IStorage {
		require.NoError(t, store.Reset(context.Background()))
		return store
	})
}
