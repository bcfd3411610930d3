package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
)

// Migrator runs schema migrations for a single plugin.
type Migrator interface {
	Name() string
	Migrate(ctx context.Context) error
}

// Plugin is a migrator bound to the datastore it prepares. An empty
// Datastore runs regardless of the configured datastore.
type Plugin struct {
	Order     int
	Datastore string
	Migrator  Migrator
}

var plugins []Plugin

// Register adds a migration plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Applicable returns the plugins that apply to cfg, sorted by Order.
func Applicable(cfg *config.Config) []Plugin {
	var out []Plugin
	for _, p := range plugins {
		if p.Datastore == "" || cfg == nil || p.Datastore == cfg.DatastoreType {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// RunAll executes the migrators that apply to the configured datastore.
func RunAll(ctx context.Context) error {
	for _, p := range Applicable(config.FromContext(ctx)) {
		log.Info("Running migration", "name", p.Migrator.Name())
		if err := p.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", p.Migrator.Name(), err)
		}
	}
	return nil
}
