package users

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	"github.com/chirino/messaging-service/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, n int) (context.Context, registrystore.MessagingStore) {
	t.Helper()
	_ = sqlite.ForceImport
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "users.db")
	ctx := config.WithContext(context.Background(), &cfg)
	require.NoError(t, registrymigrate.RunAll(ctx))
	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	for i := range n {
		_, err := store.CreateUser(ctx, model.User{ID: fmt.Sprintf("u%02d", i), Username: fmt.Sprintf("user%02d", i)})
		require.NoError(t, err)
	}
	return ctx, store
}

func TestPages(t *testing.T) {
	ctx, store := newStore(t, 7)

	var sizes []int
	var ids []string
	for page, err := range Pages(ctx, store, 3) {
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		for _, u := range page {
			ids = append(ids, u.ID)
		}
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, "u00", ids[0])
	assert.Equal(t, "u06", ids[len(ids)-1])
}

func TestPagesStopsEarly(t *testing.T) {
	ctx, store := newStore(t, 6)

	fetched := 0
	for page, err := range Pages(ctx, store, 2) {
		require.NoError(t, err)
		fetched += len(page)
		break
	}
	assert.Equal(t, 2, fetched)
}

func TestPagesExactMultiple(t *testing.T) {
	ctx, store := newStore(t, 4)

	pages := 0
	for _, err := range Pages(ctx, store, 2) {
		require.NoError(t, err)
		pages++
	}
	assert.Equal(t, 2, pages)
}

type failingStore struct {
	registrystore.MessagingStore
}

func (failingStore) ListUsers(context.Context, registrystore.ListQuery) ([]model.User, int64, error) {
	return nil, 0, errors.New("boom")
}

func TestPagesReportsErrors(t *testing.T) {
	var got error
	for _, err := range Pages(context.Background(), failingStore{}, 10) {
		got = err
	}
	require.EqualError(t, got, "boom")
}

func TestTableOutput(t *testing.T) {
	ctx, store := newStore(t, 3)

	var buf bytes.Buffer
	tbl := newTable(&buf)
	var total int
	require.NoError(t, store.StreamUsers(ctx, 2, func(batch []model.User) error {
		total += len(batch)
		appendRows(tbl, batch)
		return nil
	}))
	tbl.Render()

	assert.Equal(t, 3, total)
	out := buf.String()
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "user00")
	assert.Contains(t, out, "user02")
}
