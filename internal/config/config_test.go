package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Daemon.LogLevel)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.True(t, cfg.Trigger.Enabled)
	assert.Equal(t, 10, cfg.Trigger.PollInterval)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Daemon.LogLevel = "debug"
	cfg.Trigger.Path = "/mnt/config/station.yaml"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Daemon.LogLevel)
	assert.Equal(t, "/mnt/config/station.yaml", loaded.Trigger.Path)
}

func TestLoadFromFileMissingReturnsError(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFromEnvAppliesOverrides(t *testing.T) {
	t.Setenv("STATIONRT_LOG_LEVEL", "warn")
	t.Setenv("STATIONRT_TRIGGER_PATH", "/opt/station.yaml")
	t.Setenv("STATIONRT_MASTER_KEY", "deadbeef")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "warn", cfg.Daemon.LogLevel)
	assert.Equal(t, "/opt/station.yaml", cfg.Trigger.Path)
	assert.Equal(t, "deadbeef", cfg.Secrets.MasterKey)
	assert.True(t, cfg.Secrets.Enabled)
}
