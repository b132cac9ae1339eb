// Package config handles configuration loading and management for uivar.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for uivar.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Ports    PortsConfig    `mapstructure:"ports"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
}

// DataConfig holds data directory settings.
type DataConfig struct {
	// Dir is the root directory for per-project metadata and worktrees.
	// Defaults to $XDG_DATA_HOME/uivar (or ~/.local/share/uivar).
	Dir string `mapstructure:"dir"`
}

// PortsConfig holds port allocation settings.
type PortsConfig struct {
	// Base is the global base port for deterministic allocation.
	Base int `mapstructure:"base"`
	// BlockSize is the number of ports reserved per project.
	BlockSize int `mapstructure:"block_size"`
	// Blocks is the number of project blocks in the usable range.
	Blocks int `mapstructure:"blocks"`
}

// TimeoutsConfig holds timeout settings for variant operations.
type TimeoutsConfig struct {
	// ServerStart bounds how long a dev server may take to become ready.
	ServerStart time.Duration `mapstructure:"server_start"`
	// ServerStop bounds the graceful-shutdown window before force kill.
	ServerStop time.Duration `mapstructure:"server_stop"`
	// Lock bounds how long a metadata lock acquisition may wait.
	Lock time.Duration `mapstructure:"lock"`
	// LockStale is the age past which a held lock is presumed abandoned.
	LockStale time.Duration `mapstructure:"lock_stale"`
}

// HooksConfig holds post-creation hook toggles.
type HooksConfig struct {
	// CopyEnv copies the project's .env file into new worktrees.
	CopyEnv bool `mapstructure:"copy_env"`
	// InstallDeps runs a background dependency install in new worktrees.
	InstallDeps bool `mapstructure:"install_deps"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (UIVAR_*)
// 2. Project config (.uivar.yaml in current directory or parent)
// 3. User config (~/.config/uivar/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("UIVAR")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir()
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir()
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetAdaptersPath returns the path to the user-defined adapters file.
func GetAdaptersPath() string {
	return filepath.Join(getUserConfigDir(), "adapters.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "")

	v.SetDefault("ports.base", 42000)
	v.SetDefault("ports.block_size", 1000)
	v.SetDefault("ports.blocks", 20)

	v.SetDefault("timeouts.server_start", "60s")
	v.SetDefault("timeouts.server_stop", "5s")
	v.SetDefault("timeouts.lock", "10s")
	v.SetDefault("timeouts.lock_stale", "30s")

	v.SetDefault("hooks.copy_env", true)
	v.SetDefault("hooks.install_deps", true)
}

// getUserConfigDir returns the XDG config directory for uivar.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "uivar")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "uivar")
	}
	return filepath.Join(home, ".config", "uivar")
}

// defaultDataDir returns the XDG data directory for uivar.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "uivar")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "uivar")
	}
	return filepath.Join(home, ".local", "share", "uivar")
}

// findProjectConfig searches for .uivar.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".uivar.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Ports: PortsConfig{
			Base:      42000,
			BlockSize: 1000,
			Blocks:    20,
		},
		Timeouts: TimeoutsConfig{
			ServerStart: 60 * time.Second,
			ServerStop:  5 * time.Second,
			Lock:        10 * time.Second,
			LockStale:   30 * time.Second,
		},
		Hooks: HooksConfig{
			CopyEnv:     true,
			InstallDeps: true,
		},
	}
}
