package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	require.Equal(t, "8080", c.AppPort)
	require.Equal(t, "release", c.GinMode)
	require.Equal(t, []string{"*"}, c.AllowedOrigins)
	require.Equal(t, 120, c.PoolSize)
	require.Equal(t, 12, c.FeaturedCount)
	require.Equal(t, 180, c.SweepIntervalSec)
	require.Equal(t, 300, c.ScoreIntervalSec)
	require.Equal(t, 300, c.ListingCacheTTLSec)
	require.Equal(t, 0.7, c.ScoreEngagementWeight)
	require.Equal(t, 0.3, c.ScoreAttentionWeight)
	require.Equal(t, 0.75, c.ScoreClickWeight)
	require.Equal(t, 180, c.ScoreDwellCapSec)
	require.Equal(t, 5, c.CatalogTimeoutSec)
	require.Equal(t, 6379, c.RedisPort)
	require.Equal(t, "info", c.LogLevel)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := AppConfig{PoolSize: 24, FeaturedCount: 4, ScoreClickWeight: 0.5}
	applyDefaults(&c)

	require.Equal(t, 24, c.PoolSize)
	require.Equal(t, 4, c.FeaturedCount)
	require.Equal(t, 0.5, c.ScoreClickWeight)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LINK_POOL_SIZE", "60")
	t.Setenv("SWEEP_INTERVAL_SEC", "30")
	t.Setenv("SCORE_CLICK_WEIGHT", "0.9")
	t.Setenv("CATALOG_WEBHOOK_URL", "http://catalog.local/hooks/links")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_COMPRESS", "1")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	require.Equal(t, "9090", c.AppPort)
	require.Equal(t, 60, c.PoolSize)
	require.Equal(t, 30, c.SweepIntervalSec)
	require.Equal(t, 0.9, c.ScoreClickWeight)
	require.Equal(t, "http://catalog.local/hooks/links", c.CatalogWebhookURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	require.True(t, c.LogCompress)
}

func TestLoadJSONConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	payload := `{
		"app": {"AppPort": "8181", "JWTSecret": "s3cret"},
		"links": {"PoolSize": 80, "FeaturedCount": 8, "SweepIntervalSec": 60},
		"scoring": {"EngagementWeight": 0.6, "AttentionWeight": 0.4, "ClickWeight": 0.8, "DwellCapSec": 120},
		"catalog": {"WebhookURL": "http://catalog.local/hooks", "TimeoutSec": 3},
		"log": {"Level": "debug", "Compress": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))

	require.Equal(t, "8181", c.AppPort)
	require.Equal(t, "s3cret", c.JWTSecret)
	require.Equal(t, 80, c.PoolSize)
	require.Equal(t, 8, c.FeaturedCount)
	require.Equal(t, 60, c.SweepIntervalSec)
	require.Equal(t, 0.6, c.ScoreEngagementWeight)
	require.Equal(t, 0.4, c.ScoreAttentionWeight)
	require.Equal(t, 0.8, c.ScoreClickWeight)
	require.Equal(t, 120, c.ScoreDwellCapSec)
	require.Equal(t, "http://catalog.local/hooks", c.CatalogWebhookURL)
	require.Equal(t, 3, c.CatalogTimeoutSec)
	require.Equal(t, "debug", c.LogLevel)
	require.True(t, c.LogCompress)
}

func TestLoadJSONConfigMissingFile(t *testing.T) {
	var c AppConfig
	require.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "nope.json"), &c))
	require.Equal(t, AppConfig{}, c)
}

func TestLoadJSONConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var c AppConfig
	require.Error(t, loadJSONConfig(path, &c))
}

func TestSplitAndTrim(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,, "))
	require.Empty(t, splitAndTrim(""))
}
