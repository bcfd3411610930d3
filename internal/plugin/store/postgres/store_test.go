package postgres_test

import (
	"context"
	"testing"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/plugin/store/postgres"
	"github.com/chirino/messaging-service/internal/plugin/store/storetest"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/testutil/testpg"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, dbURL string) (registrystore.MessagingStore, context.Context) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "postgres"
	cfg.DBURL = dbURL
	ctx := config.WithContext(context.Background(), &cfg)

	// Ensure postgres store plugin is registered
	_ = postgres.ForceImport

	require.NoError(t, registrymigrate.RunAll(ctx))

	conn, err := pgx.Connect(ctx, dbURL)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "TRUNCATE messages, conversation_participants, conversations, users CASCADE")
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	loader, err := registrystore.Select("postgres")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	return store, ctx
}

func TestPostgresStore(t *testing.T) {
	dbURL := testpg.StartPostgres(t)
	storetest.Run(t, func(t *testing.T) (registrystore.MessagingStore, context.Context) {
		return setupTestStore(t, dbURL)
	})
}
