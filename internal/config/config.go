package config

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

const (
	PolicyKindRules = "rules"
	PolicyKindRego  = "rego"
)

// Config holds all configuration for the messaging service.
type Config struct {
	// Mode is "prod" (default) or "testing".
	Mode string

	// Database
	DBURL         string
	DatastoreType string // "postgres" or "sqlite"

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DBLogQueries logs every SQL statement at debug level.
	DBLogQueries bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Identity cache backend: "none", "local" or "redis".
	CacheType string
	RedisURL  string
	// How long a provisioned caller is remembered by the identity cache.
	CacheIdentityTTL time.Duration

	// AutoProvisionUsers inserts a users row for callers on first sight.
	AutoProvisionUsers bool

	// Authorization engine: "rules" or "rego".
	PolicyKind string
	// PolicyDir optionally holds authz.rego overriding the built-in policy.
	PolicyDir string

	// OIDC
	OIDCIssuer       string
	OIDCDiscoveryURL string // Internal URL for OIDC discovery (when issuer URL is not reachable)

	// HS256 bearer tokens.
	JWTSecret string
	JWTIssuer string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port was explicitly provided.
	// When false, management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for /health, /ready and /metrics.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// PublicURL overrides the scheme://host used in pagination links.
	PublicURL string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DatastoreType:           "postgres",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		CacheType:               "local",
		CacheIdentityTTL:        10 * time.Minute,
		AutoProvisionUsers:      true,
		PolicyKind:              PolicyKindRules,
		MetricsLabels:           "service=messaging-service",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:  1024 * 1024,
		DrainTimeout: 30,
	}
}

// ResolvedPublicURL returns the configured public base URL without a trailing
// slash, or nil when links should be derived from the incoming request.
func (c *Config) ResolvedPublicURL() *url.URL {
	if c == nil {
		return nil
	}
	raw := strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}
