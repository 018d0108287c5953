package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 12*time.Hour, cfg.Cache.FreshnessWindow)
	assert.Equal(t, []int{0, 10, 20, 30}, cfg.Search.PageOffsets)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
cache:
  backend: redis
  freshnessWindow: 30m
artifacts:
  staticDir: /srv/static
`), 0o644))

	t.Setenv("JK_AUTH_TOKEN", "s3cret")
	t.Setenv("JK_DOMAIN", "https://jobs.example.com")
	t.Setenv("JK_RATE_LIMIT_REQUESTS", "10")
	t.Setenv("JK_RATE_LIMIT_WINDOW", "2s")
	t.Setenv("JK_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.FreshnessWindow)
	assert.Equal(t, "/srv/static", cfg.Artifacts.StaticDir)
	assert.Equal(t, "https://jobs.example.com", cfg.Artifacts.PublicBaseURL)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, "sqlite", cfg.Storage.Driver, "unset fields keep defaults")
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"zero freshness", func(c *Config) { c.Cache.FreshnessWindow = 0 }},
		{"s3 without bucket", func(c *Config) { c.Artifacts.Backend = ArtifactBackendS3 }},
		{"no public url", func(c *Config) { c.Artifacts.PublicBaseURL = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"no offsets", func(c *Config) { c.Search.PageOffsets = nil }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
