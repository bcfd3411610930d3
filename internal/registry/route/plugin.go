package route

import (
	"sort"
	"sync"

	"github.com/chirino/messaging-service/internal/config"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/service"
	"github.com/gin-gonic/gin"
)

// Deps are the initialized subsystems handed to route plugins.
type Deps struct {
	Config  *config.Config
	Store   registrystore.MessagingStore
	Service *service.Service
	// Auth authenticates and provisions the caller. Routes mounted without it are public.
	Auth []gin.HandlerFunc
}

// API returns the /api group guarded by the auth chain.
func (d Deps) API(r *gin.Engine) *gin.RouterGroup {
	return r.Group("/api", d.Auth...)
}

// RouterLoader mounts routes on the gin engine.
type RouterLoader func(r *gin.Engine, deps Deps) error

// RouteType distinguishes which server a plugin's routes belong to.
type RouteType int

const (
	// RouteTypeMain registers routes on the main API server.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers routes on the management server (health, metrics).
	// When no dedicated management port is configured, these are mounted on the main server.
	RouteTypeManagement
)

// Plugin is a named route loader; Order fixes the mount sequence.
type Plugin struct {
	Name   string
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	mu       sync.Mutex
	plugins  []Plugin
	isSorted bool
)

// Register adds a route plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	plugins = append(plugins, p)
	isSorted = false
}

func byType(t RouteType) []Plugin {
	mu.Lock()
	defer mu.Unlock()
	if !isSorted {
		sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Order < plugins[j].Order })
		isSorted = true
	}
	var out []Plugin
	for _, p := range plugins {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Mount runs every loader of the given type against r, in order.
func Mount(r *gin.Engine, t RouteType, deps Deps) error {
	for _, p := range byType(t) {
		if err := p.Loader(r, deps); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the registered plugin names of the given type, in mount order.
func Names(t RouteType) []string {
	var names []string
	for _, p := range byType(t) {
		names = append(names, p.Name)
	}
	return names
}
