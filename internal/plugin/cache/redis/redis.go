package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/messaging-service/internal/config"
	registrycache "github.com/chirino/messaging-service/internal/registry/cache"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "messaging-identity:"

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.IdentityCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: MESSAGING_SERVICE_REDIS_URL is required")
	}
	return LoadFromURL(ctx, cfg.RedisURL)
}

// LoadFromURL creates an IdentityCache from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrycache.IdentityCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	return LoadFromOptions(ctx, opts)
}

// LoadFromOptions creates an IdentityCache from go-redis Options.
func LoadFromOptions(ctx context.Context, opts *goredis.Options) (registrycache.IdentityCache, error) {
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	return &redisIdentityCache{client: client}, nil
}

type redisIdentityCache struct {
	client *goredis.Client
}

func identityKey(userID string) string {
	return keyPrefix + userID
}

func (c *redisIdentityCache) Available() bool {
	return true
}

func (c *redisIdentityCache) Seen(ctx context.Context, userID string) (bool, error) {
	err := c.client.Get(ctx, identityKey(userID)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis cache: get: %w", err)
	}
	return true, nil
}

func (c *redisIdentityCache) MarkSeen(ctx context.Context, userID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, identityKey(userID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set: %w", err)
	}
	return nil
}
