package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCache(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	seen, err := c.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkSeen(ctx, "alice", time.Minute))
	seen, err = c.Seen(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, c.MarkSeen(ctx, "bob", 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		seen, _ := c.Seen(ctx, "bob")
		return !seen
	}, 5*time.Second, 50*time.Millisecond)
}
