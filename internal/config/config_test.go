package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvedPublicURL_EmptyMeansRequestDerived(t *testing.T) {
	var cfg Config
	require.Nil(t, cfg.ResolvedPublicURL())

	var nilCfg *Config
	require.Nil(t, nilCfg.ResolvedPublicURL())
}

func TestResolvedPublicURL_TrimsTrailingSlash(t *testing.T) {
	cfg := Config{PublicURL: " https://chat.example.com/ "}
	u := cfg.ResolvedPublicURL()
	require.NotNil(t, u)
	require.Equal(t, "https://chat.example.com", u.String())
}

func TestResolvedPublicURL_RejectsRelative(t *testing.T) {
	cfg := Config{PublicURL: "/api"}
	require.Nil(t, cfg.ResolvedPublicURL())
}

func TestContextRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), &cfg)
	require.Same(t, &cfg, FromContext(ctx))
	require.Nil(t, FromContext(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, ModeProd, cfg.Mode)
	require.Equal(t, PolicyKindRules, cfg.PolicyKind)
	require.True(t, cfg.AutoProvisionUsers)
	require.Equal(t, 8080, cfg.Listener.Port)
}
