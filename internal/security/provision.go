package security

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/model"
	registrycache "github.com/chirino/messaging-service/internal/registry/cache"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/gin-gonic/gin"
)

// Provisioner inserts callers into the users table the first time they are seen.
type Provisioner struct {
	store registrystore.MessagingStore
	cache registrycache.IdentityCache
	ttl   time.Duration
}

// NewProvisioner creates a Provisioner. A nil cache disables caching.
func NewProvisioner(store registrystore.MessagingStore, cache registrycache.IdentityCache, ttl time.Duration) *Provisioner {
	return &Provisioner{store: store, cache: cache, ttl: ttl}
}

// Ensure makes sure a users row exists for id.
func (p *Provisioner) Ensure(ctx context.Context, id *Identity) error {
	cached := p.cache != nil && p.cache.Available()
	if cached {
		seen, err := p.cache.Seen(ctx, id.UserID)
		if err != nil {
			log.Warn("Identity cache lookup failed", "user", id.UserID, "err", err)
		} else if seen {
			if CacheHitsTotal != nil {
				CacheHitsTotal.Inc()
			}
			return nil
		}
		if CacheMissesTotal != nil {
			CacheMissesTotal.Inc()
		}
	}

	err := p.store.EnsureUser(ctx, model.User{
		ID:        id.UserID,
		Username:  id.Username,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	})
	if err != nil {
		return fmt.Errorf("provision %s: %w", id.UserID, err)
	}

	if cached {
		if err := p.cache.MarkSeen(ctx, id.UserID, p.ttl); err != nil {
			log.Warn("Identity cache update failed", "user", id.UserID, "err", err)
		}
	}
	return nil
}

// ProvisionMiddleware provisions the authenticated caller. It must run after AuthMiddleware.
func ProvisionMiddleware(p *Provisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil {
			c.Next()
			return
		}
		if err := p.Ensure(c.Request.Context(), id); err != nil {
			log.Error("User provisioning failed", "user", id.UserID, "err", err)
			c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			return
		}
		c.Next()
	}
}
