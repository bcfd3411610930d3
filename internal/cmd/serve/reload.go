package serve

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
)

// policyReloader is an access policy engine whose policy can be recompiled
// while the server runs.
type policyReloader interface {
	Reload(ctx context.Context, policyDir string) error
	Source() string
}

// reloadPolicyOn reloads the policy from policyDir every time a signal
// arrives, until ctx is done. A policy that fails to compile is logged and
// the active one stays in place.
func reloadPolicyOn(ctx context.Context, engine policyReloader, policyDir string, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if err := engine.Reload(ctx, policyDir); err != nil {
				log.Error("Access policy reload failed; keeping the active policy", "signal", sig, "dir", policyDir, "err", err)
				continue
			}
			log.Info("Access policy reloaded", "signal", sig, "dir", policyDir, "bytes", len(engine.Source()))
		}
	}
}
