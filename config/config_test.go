package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pool.Identities)
	assert.Equal(t, 3, cfg.Pool.MaxConcurrency)
	assert.Equal(t, 12*time.Second, cfg.Extract.ReadinessTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Extract.PollInterval)
	assert.Equal(t, time.Second, cfg.Extract.FieldTimeout)
	assert.Equal(t, []string{"Font"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, "Asia/Shanghai", cfg.Extract.Timezone)
	assert.Equal(t, time.Hour, cfg.Batch.Expiry)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Browser.BlockAds)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("POSTWATCH_PORT", "9100")
	t.Setenv("POSTWATCH_MAX_CONCURRENCY", "2")
	t.Setenv("POSTWATCH_READY_TIMEOUT", "8s")
	t.Setenv("POSTWATCH_API_KEYS", " k1, ,k2 ")
	t.Setenv("POSTWATCH_HEADLESS", "false")
	t.Setenv("POSTWATCH_RATE_RPS", "0.5")

	cfg := Load()

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pool.MaxConcurrency)
	assert.Equal(t, 8*time.Second, cfg.Extract.ReadinessTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.False(t, cfg.Browser.Headless)
	assert.InDelta(t, 0.5, cfg.RateLimit.RequestsPerSecond, 1e-9)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("POSTWATCH_PORT", "eighty")
	t.Setenv("POSTWATCH_POLL_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Extract.PollInterval)
}

func TestRequestTimeout(t *testing.T) {
	c := ExtractConfig{NavigationTimeout: 20 * time.Second, ReadinessTimeout: 12 * time.Second, MediaTimeout: 10 * time.Second}
	assert.Equal(t, 47*time.Second, c.RequestTimeout())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
pool:
  identities: 5
  max_concurrency: 2
extract:
  readiness_timeout: 8s
auth:
  enabled: true
  api_keys: [k1, k2]
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pool.Identities)
	assert.Equal(t, 2, cfg.Pool.MaxConcurrency)
	assert.Equal(t, 8*time.Second, cfg.Extract.ReadinessTimeout)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	// untouched sections keep their defaults
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Extract.PollInterval)
}

func TestLoadFile_EnvWins(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("POSTWATCH_PORT", "9100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pool.Identities)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "pool:\n  identitys: 3\n"))
	assert.Error(t, err, "unknown keys are rejected")
}
