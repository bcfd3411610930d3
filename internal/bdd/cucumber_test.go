package bdd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/messaging-service/internal/cmd/serve"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/testutil/cucumber"
	"github.com/chirino/messaging-service/internal/testutil/testpg"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "bdd-test-secret"

func TestFeatures(t *testing.T) {
	sc, err := loadSuiteConfig()
	require.NoError(t, err)

	cfg := testConfig(sc)
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "bdd.db")
	runFeatures(t, sc, &cfg, &SQLiteTestDB{DBURL: cfg.DBURL})
}

func TestFeaturesPostgres(t *testing.T) {
	sc, err := loadSuiteConfig()
	require.NoError(t, err)
	if !sc.Postgres {
		t.Skip("set BDD_POSTGRES=true to run the features against Postgres")
	}

	dbURL := testpg.StartPostgres(t)
	cfg := testConfig(sc)
	cfg.DatastoreType = "postgres"
	cfg.DBURL = dbURL
	runFeatures(t, sc, &cfg, &PostgresTestDB{DBURL: dbURL})
}

func testConfig(sc suiteConfig) config.Config {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	// Rows are wiped between scenarios, so provisioned callers must not be remembered.
	cfg.CacheType = "none"
	cfg.PolicyKind = sc.PolicyKind
	cfg.JWTSecret = testJWTSecret
	cfg.Listener.Port = 0
	cfg.Listener.EnableTLS = false
	return cfg
}

func runFeatures(t *testing.T, sc suiteConfig, cfg *config.Config, db cucumber.TestDB) {
	ctx := config.WithContext(context.Background(), cfg)
	srv, err := serve.StartServer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	apiURL := fmt.Sprintf("http://localhost:%d", srv.Running.Port)

	featureFiles, err := filepath.Glob(filepath.Join("features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, featureFiles, "no feature files found")

	opts := cucumber.DefaultOptions()
	opts.Concurrency = sc.Concurrency
	opts.Tags = sc.Tags
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	for _, featurePath := range featureFiles {
		name := strings.TrimSuffix(filepath.Base(featurePath), ".feature")
		t.Run(name, func(t *testing.T) {
			o := opts
			o.TestingT = t
			o.Paths = []string{featurePath}
			defer cucumber.ApplyReportOptions(&o, t.Name())()

			suite := cucumber.NewTestSuite()
			suite.APIURL = apiURL
			suite.TestingT = t
			suite.Context = cfg
			suite.DB = db
			suite.Extra["jwtSecret"] = testJWTSecret

			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: suite.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
