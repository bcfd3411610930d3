package cache

import (
	"context"
	"fmt"
	"time"
)

type identityCacheKey struct{}

// WithIdentityCacheContext returns a new context carrying the given IdentityCache.
func WithIdentityCacheContext(ctx context.Context, c IdentityCache) context.Context {
	return context.WithValue(ctx, identityCacheKey{}, c)
}

// IdentityCacheFromContext retrieves the IdentityCache from the context.
// Returns nil if none was set.
func IdentityCacheFromContext(ctx context.Context) IdentityCache {
	c, _ := ctx.Value(identityCacheKey{}).(IdentityCache)
	return c
}

// IdentityCache remembers which caller ids have already been provisioned
// into the users table so provisioning can skip the database.
type IdentityCache interface {
	// Available reports whether lookups can ever hit.
	Available() bool
	Seen(ctx context.Context, userID string) (bool, error)
	MarkSeen(ctx context.Context, userID string, ttl time.Duration) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (IdentityCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
