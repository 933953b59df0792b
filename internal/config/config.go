// Package config loads synctl/synapse configuration via a layered
// viper setup: defaults, then a discovered YAML file, then
// SYNAPSE_-prefixed environment variables, in ascending precedence.
//
// Grounded on the teacher's internal/config/config.go Initialize
// function: same three-location file-discovery walk, same
// SetEnvPrefix/SetEnvKeyReplacer/AutomaticEnv environment override
// wiring, generalized from the beads-specific key set to this
// package's sync/database/queue settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved, typed configuration snapshot synctl and the
// facade package hand to their collaborators.
type Config struct {
	DatabasePath string

	SyncBaseURL      string
	SyncPushTimeout  time.Duration
	SyncPullTimeout  time.Duration
	SyncDefaultTimeout time.Duration

	QueueWarningSize int
	QueueMaxSize     int

	LogLevel string
}

// Load builds a *viper.Viper with defaults, an optionally-discovered
// config.yaml, and SYNAPSE_-prefixed env overrides, then decodes it
// into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path, ok := discoverConfigFile(); ok {
		v.SetConfigFile(path)
		// A malformed or missing file at a discovered path is not
		// fatal: defaults and env vars still apply.
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("SYNAPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return &Config{
		DatabasePath:       v.GetString("database.path"),
		SyncBaseURL:        v.GetString("sync.base_url"),
		SyncPushTimeout:    v.GetDuration("sync.push_timeout"),
		SyncPullTimeout:    v.GetDuration("sync.pull_timeout"),
		SyncDefaultTimeout: v.GetDuration("sync.default_timeout"),
		QueueWarningSize:   v.GetInt("queue.warning_size"),
		QueueMaxSize:       v.GetInt("queue.max_size"),
		LogLevel:           v.GetString("log.level"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("database.path", filepath.Join(home, ".synapse", "synapse.db"))

	v.SetDefault("sync.base_url", "")
	v.SetDefault("sync.push_timeout", "60s")
	v.SetDefault("sync.pull_timeout", "60s")
	v.SetDefault("sync.default_timeout", "10s")

	v.SetDefault("queue.warning_size", 8000)
	v.SetDefault("queue.max_size", 10000)

	v.SetDefault("log.level", "info")
}

// discoverConfigFile walks the precedence chain: project-local
// .synapse/config.yaml (searched upward from cwd so subdirectory
// invocations still find it), then ~/.config/synapse/config.yaml,
// then ~/.synapse/config.yaml.
func discoverConfigFile() (string, bool) {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			candidate := filepath.Join(dir, ".synapse", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(configDir, "synapse", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".synapse", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}
