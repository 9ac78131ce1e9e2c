package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENVIRONMENT", "NODE_ID", "JWT_SECRET", "ALLOWED_ORIGINS",
	"VALKEY_ADDR", "VALKEY_PASSWORD", "VALKEY_DB",
	"TICK_INTERVAL", "PROBE_TIMEOUT", "PRESENCE_TTL", "LOG_LEVEL", "LOG_FORMAT",
}

// setEnv clears every config key and then sets the given ones for the test.
func setEnv(t *testing.T, m map[string]string) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	for k, v := range m {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "s3cret", "NODE_ID": "node-a"})
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3010, cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.PresenceTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Empty(t, cfg.ValkeyAddr)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, []string{"http://127.0.0.1:5173", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoadNodeIDFallsBackToHostname(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "s3cret"})
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, hostname(), cfg.NodeID)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET":      "s3cret",
		"PORT":            "8080",
		"ENVIRONMENT":     "prod",
		"VALKEY_ADDR":     "valkey:6379",
		"VALKEY_DB":       "2",
		"TICK_INTERVAL":   "250ms",
		"ALLOWED_ORIGINS": " https://a.example , ,https://b.example",
		"LOG_LEVEL":       "debug",
		"LOG_FORMAT":      "JSON",
	})
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "valkey:6379", cfg.ValkeyAddr)
	assert.Equal(t, 2, cfg.ValkeyDB)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"blank secret":   {"JWT_SECRET": "  "},
		"bad port":       {"JWT_SECRET": "x", "PORT": "eighty"},
		"bad duration":   {"JWT_SECRET": "x", "PROBE_TIMEOUT": "soon"},
		"zero tick":      {"JWT_SECRET": "x", "TICK_INTERVAL": "0s"},
		"bad level":      {"JWT_SECRET": "x", "LOG_LEVEL": "chatty"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setEnv(t, env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SCENYX_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SCENYX_TEST_DOTENV") })

	assert.True(t, LoadDotEnv(file))
	assert.Equal(t, "loaded", os.Getenv("SCENYX_TEST_DOTENV"))
	assert.False(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
