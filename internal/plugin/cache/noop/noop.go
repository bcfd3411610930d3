package noop

import (
	"context"
	"time"

	"github.com/chirino/messaging-service/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.IdentityCache, error) {
			return &noopIdentityCache{}, nil
		},
	})
}

type noopIdentityCache struct{}

func (n *noopIdentityCache) Available() bool { return false }

func (n *noopIdentityCache) Seen(_ context.Context, _ string) (bool, error) { return false, nil }

func (n *noopIdentityCache) MarkSeen(_ context.Context, _ string, _ time.Duration) error { return nil }

var _ cache.IdentityCache = (*noopIdentityCache)(nil)
