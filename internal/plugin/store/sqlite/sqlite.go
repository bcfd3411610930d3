package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/plugin/store/gormstore"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/security"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed db/schema.sql
var schemaSQL string

// ForceImport can be referenced to ensure this package's init() runs.
var ForceImport = 0

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.MessagingStore, error) {
			cfg := config.FromContext(ctx)
			db, err := open(cfg)
			if err != nil {
				return nil, err
			}
			if security.DBPoolMaxConnections != nil {
				security.DBPoolMaxConnections.Set(1)
			}
			return gormstore.New(db), nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Datastore: "sqlite", Migrator: &sqliteMigrator{}})
}

// DSN normalises a database URL into a go-sqlite3 DSN with foreign keys
// enforced and a busy timeout set.
func DSN(raw string) string {
	dsn := strings.TrimPrefix(raw, "sqlite://")
	if dsn == "" {
		dsn = "messaging.db"
	}
	var extra []string
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		extra = append(extra, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		extra = append(extra, "_busy_timeout=5000")
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}

func open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(DSN(cfg.DBURL)), gormstore.GormConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

type sqliteMigrator struct{}

func (m *sqliteMigrator) Name() string { return "sqlite-schema" }

func (m *sqliteMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg != nil && !cfg.DatastoreMigrateAtStart {
		return nil
	}
	db, err := open(cfg)
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration: failed to execute schema: %w", err)
	}
	log.Info("SQLite schema migration complete")
	return nil
}
