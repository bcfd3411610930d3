package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/plugin/store/sqlite"
	"github.com/chirino/messaging-service/internal/plugin/store/storetest"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (registrystore.MessagingStore, context.Context) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "messaging.db")
	ctx := config.WithContext(context.Background(), &cfg)

	_ = sqlite.ForceImport

	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	return store, ctx
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, setupTestStore)
}

func TestDSN(t *testing.T) {
	require.Equal(t, "app.db?_foreign_keys=on&_busy_timeout=5000", sqlite.DSN("sqlite://app.db"))
	require.Equal(t, "file:app.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000", sqlite.DSN("file:app.db?mode=rwc"))
	require.Equal(t, "app.db?_fk=1&_busy_timeout=100", sqlite.DSN("app.db?_fk=1&_busy_timeout=100"))
}
