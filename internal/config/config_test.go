package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "` + filepath.Join(dir, "news.db") + `"
timeout = "2s"

[fetch]
http_timeout = "10s"
user_agent = "custom-agent/2.0"

[refresh]
interval = "5m"
max_concurrent = 3

[retention]
keep_per_feed = 50
max_age = "48h"
interval = "12h"

[log]
level = "DEBUG"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Database.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Fetch.HTTPTimeout)
	assert.Equal(t, "custom-agent/2.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, 3, cfg.Refresh.MaxConcurrent)
	assert.Equal(t, 50, cfg.Retention.KeepPerFeed)
	assert.Equal(t, 48*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestLoadFillsDefaultsForMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"ERROR\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Log.Level)
	assert.Equal(t, 15*time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, 20, cfg.Retention.KeepPerFeed)
	assert.Equal(t, 72*time.Hour, cfg.Retention.MaxAge)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := TestConfig()
	cfg.Database.Path = filepath.Join(dir, "news.db")
	cfg.Refresh.Interval = 7 * time.Minute
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Database.Path, loaded.Database.Path)
	assert.Equal(t, 7*time.Minute, loaded.Refresh.Interval)
	assert.Equal(t, cfg.Fetch.UserAgent, loaded.Fetch.UserAgent)
}

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, GenerateDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[refresh]")
	assert.Contains(t, string(data), "max_concurrent = 5")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "news.db"), expandPath("~/news.db"))
	assert.Equal(t, "", expandPath(""))
	assert.True(t, filepath.IsAbs(expandPath("relative/news.db")))
}
