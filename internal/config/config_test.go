package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := ReadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "none", cfg.Bus.Driver)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 60, cfg.Rate.Burst)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestReadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
log_level: debug
allowed_origins:
  - http://localhost:3000
ping_interval: 10s
store:
  driver: bolt
  path: /tmp/board.db
bus:
  driver: nats
  url: nats://localhost:4222
`), 0o600))

	t.Setenv("BOARD_STORE_DRIVER", "redis")
	t.Setenv("BOARD_RATE_BURST", "5")

	cfg, err := ReadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.PingInterval)
	assert.Equal(t, "redis", cfg.Store.Driver, "environment wins over the file")
	assert.Equal(t, "/tmp/board.db", cfg.Store.Path)
	assert.Equal(t, "nats://localhost:4222", cfg.Bus.URL)
	assert.Equal(t, 5, cfg.Rate.Burst)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Panics(t, func() { MustReadConfig(filepath.Join(t.TempDir(), "missing.yaml")) })
}
