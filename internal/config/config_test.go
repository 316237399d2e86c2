package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "# empty config, everything from defaults\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "playpulse.db", cfg.Database.SQLitePath)
	assert.Equal(t, time.Minute, cfg.Poller.Interval)
	assert.Equal(t, 30*time.Second, cfg.Poller.SourceTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.GapThreshold)
	assert.Equal(t, 30*time.Second, cfg.Sessions.MinWatchTime)
	assert.Equal(t, 3, cfg.Notify.FailureThreshold)
	assert.Equal(t, 60*time.Minute, cfg.Notify.Cooldown)
	assert.Equal(t, "file", cfg.Notify.StateBackend)
	assert.False(t, cfg.Queue.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfigFile(t, `
sessions:
  gapThreshold: 5m
  minWatchTime: 60s
notify:
  failureThreshold: 5
  cooldown: 30m
  stateBackend: redis
database:
  type: postgres
  dbname: tracker
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Sessions.GapThreshold)
	assert.Equal(t, 60*time.Second, cfg.Sessions.MinWatchTime)
	assert.Equal(t, 5, cfg.Notify.FailureThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Notify.Cooldown)
	assert.Equal(t, "redis", cfg.Notify.StateBackend)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "tracker", cfg.Database.DBName)
}

func TestLoadSources(t *testing.T) {
	path := writeConfigFile(t, `
sources:
  - kind: box
    deviceName: Living Room
    deviceModel: AppleTV11,1
    url: http://bridge:9000/livingroom
  - kind: streaming
    deviceName: iPhone
    deviceModel: iPhone14,2
    userName: dana
    url: http://bridge:9000/spotify/dana
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "box", cfg.Sources[0].Kind)
	assert.Equal(t, "Living Room", cfg.Sources[0].DeviceName)
	assert.Empty(t, cfg.Sources[0].UserName)
	assert.Equal(t, "dana", cfg.Sources[1].UserName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
