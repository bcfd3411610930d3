package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	"github.com/chirino/messaging-service/internal/security"
	"github.com/gin-gonic/gin"
)

// mountManagement mounts the management routes. With a dedicated management
// port they get their own gin engine and listener; otherwise they share the
// main router. The returned function stops the dedicated listener, if any.
func mountManagement(ctx context.Context, cfg *config.Config, main *gin.Engine, deps registryroute.Deps) (func(context.Context) error, error) {
	if !cfg.ManagementListenerEnabled {
		if err := registryroute.Mount(main, registryroute.RouteTypeManagement, deps); err != nil {
			return nil, fmt.Errorf("failed to load management routes: %w", err)
		}
		return nil, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	}
	if err := registryroute.Mount(router, registryroute.RouteTypeManagement, deps); err != nil {
		return nil, fmt.Errorf("failed to load management routes: %w", err)
	}

	// The management listener shares the main listener's certificate.
	mgmtCfg := cfg.ManagementListener
	mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
	mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
	if !mgmtCfg.EnablePlainText && !mgmtCfg.EnableTLS {
		mgmtCfg.EnablePlainText = true
	}
	running, err := StartSinglePortHTTP(ctx, "management", mgmtCfg, router)
	if err != nil {
		return nil, fmt.Errorf("failed to start management server: %w", err)
	}
	log.Info("Management server listening", "addr", running.Addr, "routes", registryroute.Names(registryroute.RouteTypeManagement))
	return running.Close, nil
}
