package local

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/messaging-service/internal/registry/cache"
	"github.com/dgraph-io/ristretto/v2"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (cache.IdentityCache, error) {
			return New(10_000)
		},
	})
}

// New creates an in-process identity cache holding up to maxEntries ids.
func New(maxEntries int64) (*IdentityCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	return &IdentityCache{cache: c}, nil
}

// IdentityCache is a ristretto backed identity cache local to one process.
type IdentityCache struct {
	cache *ristretto.Cache[string, struct{}]
}

func (c *IdentityCache) Available() bool { return true }

func (c *IdentityCache) Seen(_ context.Context, userID string) (bool, error) {
	_, ok := c.cache.Get(userID)
	return ok, nil
}

func (c *IdentityCache) MarkSeen(_ context.Context, userID string, ttl time.Duration) error {
	c.cache.SetWithTTL(userID, struct{}{}, 1, ttl)
	// Make the write visible to the next Seen call.
	c.cache.Wait()
	return nil
}

// Close releases the cache's background goroutines.
func (c *IdentityCache) Close() {
	c.cache.Close()
}

var _ cache.IdentityCache = (*IdentityCache)(nil)
