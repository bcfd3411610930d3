package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/testutil/testredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := LoadFromURL(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	assert.True(t, c.Available())

	seen, err := c.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkSeen(ctx, "alice", time.Minute))
	seen, err = c.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("messaging-identity:alice"))

	mr.FastForward(2 * time.Minute)
	seen, err = c.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLoadRequiresURL(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := load(config.WithContext(context.Background(), &cfg))
	require.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := LoadFromURL(context.Background(), "redis://"+addr)
	require.ErrorContains(t, err, "ping failed")
}

func TestIdentityCacheAgainstRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	c, err := LoadFromURL(ctx, testredis.StartRedis(t))
	require.NoError(t, err)

	require.NoError(t, c.MarkSeen(ctx, "bob", time.Second))
	seen, err := c.Seen(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, seen)

	require.Eventually(t, func() bool {
		seen, err := c.Seen(ctx, "bob")
		return err == nil && !seen
	}, 5*time.Second, 100*time.Millisecond)
}
