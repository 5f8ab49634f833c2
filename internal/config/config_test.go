package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXPLORER_AUTH_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 100, cfg.RateLimits.API.Limit)
	require.Equal(t, 5, cfg.RateLimits.Login.Limit)
	require.Equal(t, 15*time.Minute, cfg.RateLimits.Login.Window)
	require.False(t, cfg.Production())
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("EXPLORER_AUTH_SECRET", testSecret)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  port: 9090
rate_limits:
  api:
    limit: 50
    window: 30s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 50, cfg.RateLimits.API.Limit)
	require.Equal(t, 30*time.Second, cfg.RateLimits.API.Window)
	require.True(t, cfg.Production())

	// Untouched sections keep their defaults.
	require.Equal(t, 10, cfg.RateLimits.AI.Limit)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("EXPLORER_AUTH_SECRET", testSecret)
	t.Setenv("EXPLORER_PORT", "7070")
	t.Setenv("EXPLORER_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T)
	}{
		{"missing secret", func(t *testing.T) { t.Setenv("EXPLORER_AUTH_SECRET", "") }},
		{"short secret", func(t *testing.T) { t.Setenv("EXPLORER_AUTH_SECRET", "short") }},
		{"bad port", func(t *testing.T) {
			t.Setenv("EXPLORER_AUTH_SECRET", testSecret)
			t.Setenv("EXPLORER_PORT", "70000")
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mutate(t)
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EXPLORER_AUTH_SECRET", testSecret)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
}
