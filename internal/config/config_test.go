package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000/api/process", cfg.Backend.Endpoint)
	assert.Equal(t, "x-openai-key", cfg.Backend.KeyHeader)
	assert.Equal(t, "pdf_doc", cfg.Backend.FileField)
	assert.Equal(t, 120*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Backend.LegacyUnwrap)
	assert.True(t, cfg.Backend.CircuitBreaker.Enabled)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 2.0, cfg.Export.Snapshot.Scale)
	assert.Equal(t, "#0f172a", cfg.Export.Snapshot.Background)
	assert.Equal(t, []string{"json", "text", "markdown", "html"}, cfg.App.SupportedFormats)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"bad endpoint", func(c *Config) { c.Backend.Endpoint = "not a url" }, "Endpoint"},
		{"empty header", func(c *Config) { c.Backend.KeyHeader = "" }, "KeyHeader"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "Timeout"},
		{"bad log level", func(c *Config) { c.App.LogLevel = "loud" }, "LogLevel"},
		{"unknown store", func(c *Config) { c.Store.Backend = "disk" }, "Backend"},
		{"redis without addr", func(c *Config) { c.Store.Backend = "redis"; c.Store.Redis.Addr = "" }, "store.redis.addr"},
		{"threshold above one", func(c *Config) { c.Backend.CircuitBreaker.FailureThreshold = 1.5 }, "FailureThreshold"},
		{"default format unsupported", func(c *Config) { c.App.DefaultFormat = "xml" }, "invalid default format"},
		{"tls without cert", func(c *Config) { c.Server.TLS.Mode = "server" }, "TLS configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestApplyFallbacks(t *testing.T) {
	t.Setenv("CVINSIGHT_SERVER_APIKEYS", " one, ,two ")
	t.Setenv("OPENAI_API_KEY", "  sk-env  ")

	cfg := &Config{}
	cfg.applyFallbacks()

	assert.Equal(t, []string{"one", "two"}, cfg.Server.APIKeys)
	assert.Equal(t, "sk-env", cfg.Backend.APIKey)
	assert.Equal(t, "disabled", cfg.Server.TLS.Mode)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CVINSIGHT_BACKEND_ENDPOINT", "https://analysis.internal/api/process")
	t.Setenv("CVINSIGHT_STORE_BACKEND", "redis")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://analysis.internal/api/process", cfg.Backend.Endpoint)
	assert.Equal(t, "redis", cfg.Store.Backend)
}
