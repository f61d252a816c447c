package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	cfg.Normalize()

	assert.Equal(t, "UTC", cfg.Timezone, "explicit values survive")
	assert.Equal(t, 60, cfg.WindowDays)
	assert.Equal(t, 4*time.Hour, cfg.MinFetchInterval)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.NotEmpty(t, cfg.Refresh)
	assert.NotNil(t, cfg.OnlyStates)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Timezone)

	// The file now exists and loads back to the same values.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Timezone, again.Timezone)
	assert.Equal(t, cfg.WindowDays, again.WindowDays)
}

func TestLoadPartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: UTC\nwindow_days: 14\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 14, cfg.WindowDays)
	assert.Equal(t, 4*time.Hour, cfg.MinFetchInterval, "unset fields fall back to defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_days: 14\n"), 0o600))

	t.Setenv("TECHCAL_WINDOW_DAYS", "30")
	t.Setenv("TECHCAL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLocationRejectsBadZone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	_, err := cfg.Location()
	assert.Error(t, err)
}
