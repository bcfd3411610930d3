package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
	routesystem "github.com/chirino/messaging-service/internal/plugin/route/system"
	storemetrics "github.com/chirino/messaging-service/internal/plugin/store/metrics"
	"github.com/chirino/messaging-service/internal/policy"
	registrycache "github.com/chirino/messaging-service/internal/registry/cache"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/security"
	"github.com/chirino/messaging-service/internal/service"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	Store           registrystore.MessagingStore
	Service         *service.Service
	Authorizer      policy.Authorizer
	Router          *gin.Engine
	Running         *RunningServers
	closeManagement func(context.Context) error
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	return s.Running.Close(ctx)
}

// Dependencies are the subsystems shared by the HTTP server and the other
// commands that act on the messaging data.
type Dependencies struct {
	Store      registrystore.MessagingStore
	Authorizer policy.Authorizer
	Cache      registrycache.IdentityCache
	Service    *service.Service
}

// InitDependencies runs migrations and loads the store, policy engine and
// identity cache selected by cfg.
func InitDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)

	var authz policy.Authorizer
	switch cfg.PolicyKind {
	case config.PolicyKindRules, "":
		authz = policy.NewRuleEngine(store)
	case config.PolicyKindRego:
		authz, err = policy.NewRegoEngine(ctx, store, cfg.PolicyDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rego policy: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown policy kind %q; valid: [%s %s]", cfg.PolicyKind, config.PolicyKindRules, config.PolicyKindRego)
	}

	var cache registrycache.IdentityCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Identity cache not available", "cache", cfg.CacheType, "err", err)
	} else if cache, err = cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize identity cache", "cache", cfg.CacheType, "err", err)
		cache = nil
	}

	return &Dependencies{
		Store:      store,
		Authorizer: authz,
		Cache:      cache,
		Service:    service.New(store, authz),
	}, nil
}

// StartServer initializes all subsystems and starts HTTP on a single port.
// Use Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting messaging service",
		"httpPort", cfg.Listener.Port,
		"db", cfg.DatastoreType,
		"cache", cfg.CacheType,
		"policy", cfg.PolicyKind,
	)

	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	deps, err := InitDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	auth := []gin.HandlerFunc{security.AuthMiddleware(security.NewTokenResolver(cfg))}
	if cfg.AutoProvisionUsers {
		auth = append(auth, security.ProvisionMiddleware(security.NewProvisioner(deps.Store, deps.Cache, cfg.CacheIdentityTTL)))
	}
	routeDeps := registryroute.Deps{
		Config:  cfg,
		Store:   deps.Store,
		Service: deps.Service,
		Auth:    auth,
	}
	if err := registryroute.Mount(router, registryroute.RouteTypeMain, routeDeps); err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	closeManagement, err := mountManagement(ctx, cfg, router, routeDeps)
	if err != nil {
		return nil, err
	}

	running, err := StartSinglePortHTTP(ctx, "main", cfg.Listener, router)
	if err != nil {
		if closeManagement != nil {
			_ = closeManagement(ctx)
		}
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
		"routes", registryroute.Names(registryroute.RouteTypeMain),
	)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		Store:           deps.Store,
		Service:         deps.Service,
		Authorizer:      deps.Authorizer,
		Router:          router,
		Running:         running,
		closeManagement: closeManagement,
	}, nil
}
