package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.SyncPushTimeout)
	assert.Equal(t, 10*time.Second, cfg.SyncDefaultTimeout)
	assert.Equal(t, 8000, cfg.QueueWarningSize)
	assert.Equal(t, 10000, cfg.QueueMaxSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("SYNAPSE_SYNC_BASE_URL", "https://sync.example.com")
	t.Setenv("SYNAPSE_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.SyncBaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDiscoversProjectLocalConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".synapse"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".synapse", "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel, "discovery must walk upward from a nested working directory")
}
