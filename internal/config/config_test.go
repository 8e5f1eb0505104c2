package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoad_ValidConfig(t *testing.T) {
	configContent := `
env: test
backend:
  base_url: "https://backend.test"
  api_key: "anon-key"
  realtime_url: "wss://backend.test/realtime"
  redirect_url: "https://app.test/auth/callback"
  timeout: 5s
  rate_limit: 50
  rate_burst: 100
local_store:
  driver: memory
  path: ""
redis_connection:
  addressredis: "localhost:6379"
  db: 1
  max_retries: 3
  dial_timeout: 5s
  timeoutredis: 10s
premium:
  ttl: 5m
profile:
  retry_delay: 1s
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))
	t.Setenv("CONFIG_PATH", configPath)

	cfg := MustLoad()

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "https://backend.test", cfg.BaseURL)
	assert.Equal(t, "anon-key", cfg.APIKey)
	assert.Equal(t, "wss://backend.test/realtime", cfg.RealtimeURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 50.0, cfg.RateLimit)
	assert.Equal(t, "memory", cfg.Driver)
	assert.Equal(t, 1, cfg.DB)
	assert.Equal(t, 5*time.Minute, cfg.Premium.TTL)
	assert.Equal(t, time.Second, cfg.Profile.RetryDelay)
}

func TestMustLoad_Defaults(t *testing.T) {
	configContent := `
env: test
backend:
  base_url: "https://backend.test"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))
	t.Setenv("CONFIG_PATH", configPath)

	cfg := MustLoad()

	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "medcampus.db", cfg.Path)
	assert.Equal(t, 5*time.Minute, cfg.Premium.TTL)
	assert.Equal(t, time.Second, cfg.Profile.RetryDelay)
}

func TestMustLoad_EnvOverride(t *testing.T) {
	configContent := `
env: test
backend:
  base_url: "https://backend.test"
  api_key: "from-file"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))
	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("BACKEND_API_KEY", "from-env")

	cfg := MustLoad()

	assert.Equal(t, "from-env", cfg.APIKey)
}
