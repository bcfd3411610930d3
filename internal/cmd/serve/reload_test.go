package serve

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/chirino/messaging-service/internal/policy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type noMembers struct{}

func (noMembers) IsParticipant(context.Context, uuid.UUID, string) (bool, error) { return false, nil }

func TestReloadPolicyOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	engine, err := policy.NewRegoEngine(ctx, noMembers{}, dir)
	require.NoError(t, err)
	require.Contains(t, engine.Source(), "participant_ops")

	signals := make(chan os.Signal)
	done := make(chan struct{})
	go func() {
		reloadPolicyOn(ctx, engine, dir, signals)
		close(done)
	}()

	custom := "package messaging.authz\n\ndefault allow = true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), []byte(custom), 0o600))
	signals <- syscall.SIGHUP
	require.Eventually(t, func() bool { return engine.Source() == custom }, 5*time.Second, 20*time.Millisecond)

	anyone := policy.Caller{UserID: "mallory"}
	require.NoError(t, engine.Authorize(ctx, anyone, policy.OpRead, policy.Conversation(uuid.New())))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), []byte("package messaging.authz\n\nallow {"), 0o600))
	signals <- syscall.SIGHUP
	// The second send is only received once the first reload has finished.
	signals <- syscall.SIGHUP
	require.Equal(t, custom, engine.Source())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reload loop did not stop")
	}
}
