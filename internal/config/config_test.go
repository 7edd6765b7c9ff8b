package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Bus.Brokers)
	assert.Equal(t, "leads", cfg.Bus.TopicPrefix)
	assert.Equal(t, 10, cfg.Bus.MaxInFlight["fingerprint"])
	assert.Equal(t, 2, cfg.Bus.MaxInFlight["enrich"])
	assert.Equal(t, "sonar", cfg.Perplexity.Model)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "https://api.wappalyzer.com/v2", cfg.Wappalyzer.BaseURL)
	assert.Equal(t, 60, cfg.Discovery.FreshnessDays)
	assert.Equal(t, 1, cfg.Discovery.MaxRetries)
	assert.Equal(t, 2, cfg.Discovery.MinNewPerRound)
	assert.Equal(t, 15, cfg.Discovery.MaxExclusions)
	assert.Equal(t, 10, cfg.Fingerprint.FetchTimeoutSecs)
	assert.Equal(t, 500_000, cfg.Fingerprint.MaxHTMLBytes)
	assert.Contains(t, cfg.Fingerprint.ExtraPages, "/contato")
	assert.Equal(t, 5, cfg.Contacts.Target)
	assert.Equal(t, 180, cfg.Registry.CacheTTLDays)
	assert.Equal(t, 5, cfg.Serper.MaxCalls)
	assert.Equal(t, 20, cfg.Memory.WindowSize)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
discovery:
  freshness_days: 30
  max_retries: 2
contacts:
  target: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Discovery.FreshnessDays)
	assert.Equal(t, 2, cfg.Discovery.MaxRetries)
	assert.Equal(t, 3, cfg.Contacts.Target)
	// Untouched keys keep defaults.
	assert.Equal(t, 2, cfg.Discovery.MinNewPerRound)
	assert.Equal(t, 180, cfg.Registry.CacheTTLDays)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
