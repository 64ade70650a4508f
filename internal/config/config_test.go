package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://rdap.arin.net/registry", cfg.RDAP.BaseURL)
	assert.Equal(t, 5, cfg.RDAP.MaxRetries)
	assert.Equal(t, 2.0, cfg.RDAP.BackoffMul)
	assert.Equal(t, float64(70), cfg.Match.ProviderThreshold)
	assert.Equal(t, 2, cfg.Match.FlipThreshold)
	assert.Equal(t, 10, cfg.Enrich.Concurrency)
	assert.Equal(t, 50, cfg.Enrich.BatchSize)
	assert.Equal(t, "dynamic-m.com", cfg.DDNS.Domain)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CIRCUIT_LOG_LEVEL", "debug")
	t.Setenv("CIRCUIT_ENRICH_CONCURRENCY", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Enrich.Concurrency)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "warn", Format: "console"})
	assert.NoError(t, err)
}
