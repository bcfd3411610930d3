package testredis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// URLEnv names an already running Redis to use instead of a container.
const URLEnv = "MESSAGING_SERVICE_TEST_REDIS_URL"

// StartRedis returns a redis:// URL for a disposable Redis. A running server
// named by URLEnv wins; otherwise a container is started, and the test is
// skipped when no container runtime is available.
func StartRedis(tb testing.TB) string {
	tb.Helper()
	if url := os.Getenv(URLEnv); url != "" {
		return url
	}
	if t, ok := tb.(*testing.T); ok {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		tb.Fatalf("start redis container: %v", err)
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			tb.Errorf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		tb.Fatalf("redis endpoint: %v", err)
	}
	return fmt.Sprintf("%s/0", endpoint)
}
