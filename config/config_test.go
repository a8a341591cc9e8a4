package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Queue.DelaySeconds)
	assert.Equal(t, 50, cfg.Queue.BatchSize)
	assert.Equal(t, 360, cfg.Queue.GraceSeconds)
	assert.Equal(t, 1800, cfg.Queue.PoolExtensionSeconds)
	assert.Equal(t, "queue_delay", cfg.Queue.KeyPrefix)
	assert.Equal(t, 30, cfg.Queue.RetryDelaySeconds)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Server.MaxTopics)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
storage:
  backend: redis
  redis:
    addr: redis:6379
queue:
  delay_seconds: 5
  batch_size: 10
logging:
  format: json
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 5, cfg.Queue.DelaySeconds)
	assert.Equal(t, 10, cfg.Queue.BatchSize)
	assert.Equal(t, 360, cfg.Queue.GraceSeconds)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  batch_size: 10\n"), 0o600))
	t.Setenv("DELAYQ_QUEUE_BATCH_SIZE", "25")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Queue.BatchSize)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"nested composite", func(c *Config) {
			c.Storage.Backend = "composite"
			c.Storage.IndexBackend = "composite"
		}},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero batch", func(c *Config) { c.Queue.BatchSize = 0 }},
		{"negative delay", func(c *Config) { c.Queue.DelaySeconds = -1 }},
		{"negative grace", func(c *Config) { c.Queue.GraceSeconds = -1 }},
		{"negative retry delay", func(c *Config) { c.Queue.RetryDelaySeconds = -1 }},
		{"negative topic cap", func(c *Config) { c.Server.MaxTopics = -1 }},
		{"empty prefix", func(c *Config) { c.Queue.KeyPrefix = "" }},
		{"zero interval", func(c *Config) { c.Poller.IntervalMs = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
