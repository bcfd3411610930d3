package bdd

import (
	"github.com/kelseyhightower/envconfig"
)

// suiteConfig holds the environment toggles for the feature runs.
type suiteConfig struct {
	// BDD_POLICY_KIND selects the access policy engine under test.
	PolicyKind string `envconfig:"BDD_POLICY_KIND" default:"rules"`
	// BDD_POSTGRES also runs the features against a Postgres container.
	Postgres bool `envconfig:"BDD_POSTGRES" default:"false"`
	// BDD_TAGS filters scenarios by godog tag expression.
	Tags        string `envconfig:"BDD_TAGS"`
	Concurrency int    `envconfig:"BDD_CONCURRENCY" default:"1"`
}

func loadSuiteConfig() (suiteConfig, error) {
	var cfg suiteConfig
	err := envconfig.Process("", &cfg)
	return cfg, err
}
