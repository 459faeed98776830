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
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Store.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
version: 1
log:
  level: debug
  format: plain
catalog:
  path: ./nodes.yaml
  refresh: "*/5 * * * *"
fetch:
  dir: ./workflows
  timeout: 3s
  max_retries: 4
  backoff:
    base: 50ms
    factor: 1.5
    max: 1s
store:
  driver: sqlite3
  dsn: file:flows.db
export:
  trace: true
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "plain", cfg.Log.Format)
	assert.Equal(t, "*/5 * * * *", cfg.Catalog.Refresh)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 4, cfg.Fetch.MaxRetries)
	assert.Equal(t, BackoffConfig{Base: 50 * time.Millisecond, Factor: 1.5, Max: time.Second}, cfg.Fetch.Backoff)
	assert.True(t, cfg.Store.Enabled())
	assert.Equal(t, "workflows", cfg.Store.Table)
	assert.True(t, cfg.Export.Trace)
	assert.Equal(t, "1.0", cfg.Export.Version)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"version": 1, "log": {"level": "warn"}, "store": {"driver": "postgres", "dsn": "postgres://localhost/flows"}}`))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"version", func(c *Config) { c.Version = 2 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"refresh without path", func(c *Config) { c.Catalog.Refresh = "@hourly" }},
		{"bad refresh", func(c *Config) { c.Catalog.Path = "x"; c.Catalog.Refresh = "every day" }},
		{"both fetchers", func(c *Config) { c.Fetch.BaseURL = "http://x"; c.Fetch.Dir = "." }},
		{"negative retries", func(c *Config) { c.Fetch.MaxRetries = -1 }},
		{"negative backoff", func(c *Config) { c.Fetch.Backoff.Base = -time.Second }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql"; c.Store.DSN = "x" }},
		{"driver without dsn", func(c *Config) { c.Store.Driver = "sqlite3" }},
		{"dsn without driver", func(c *Config) { c.Store.DSN = "file:x.db" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	path := filepath.Join(t.TempDir(), "flowgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nexport:\n  version: \"2.0\"\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0", cfg.Export.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("version: [1"))
	assert.Error(t, err)
}
