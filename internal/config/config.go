// Package config handles configuration loading and management for Usher.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for Usher.
type Config struct {
	// StateDir overrides the session state directory. Empty uses the
	// XDG default.
	StateDir string `mapstructure:"state_dir"`
	// DataDir overrides the task registry directory. Empty uses the
	// XDG default.
	DataDir string `mapstructure:"data_dir"`
	// CatalogPath points at a YAML catalog replacing the built-in
	// agent index and pipeline definitions.
	CatalogPath string `mapstructure:"catalog_path"`

	Retry   RetryConfig   `mapstructure:"retry"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	// MaxRetries is the per-agent retry ceiling.
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelayMs is the first-attempt backoff delay in milliseconds.
	BaseDelayMs int `mapstructure:"base_delay_ms"`
}

// LoggingConfig holds debug logging settings.
type LoggingConfig struct {
	// DebugLog is the debug log file path. Empty disables logging.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (USHER_*)
// 2. Project config (.usher.yaml in current directory or parent)
// 3. User config (~/.config/usher/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
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
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	// Map specific environment variables
	v.BindEnv("state_dir", "USHER_STATE_DIR")
	v.BindEnv("data_dir", "USHER_DATA_DIR")
	v.BindEnv("catalog_path", "USHER_CATALOG_PATH")
	v.BindEnv("logging.debug_log", "USHER_DEBUG_LOG")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.expandPaths()

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

	cfg.expandPaths()

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("state_dir", cfg.StateDir)
	v.Set("data_dir", cfg.DataDir)
	v.Set("catalog_path", cfg.CatalogPath)
	v.Set("retry.max_retries", cfg.Retry.MaxRetries)
	v.Set("retry.base_delay_ms", cfg.Retry.BaseDelayMs)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Path defaults: empty means the XDG locations
	v.SetDefault("state_dir", "")
	v.SetDefault("data_dir", "")
	v.SetDefault("catalog_path", "")

	// Retry defaults
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 1000)

	// Logging defaults
	v.SetDefault("logging.debug_log", "")
}

// expandPaths expands ${VAR} references in path-valued settings.
func (c *Config) expandPaths() {
	c.StateDir = expandEnv(c.StateDir)
	c.DataDir = expandEnv(c.DataDir)
	c.CatalogPath = expandEnv(c.CatalogPath)
	c.Logging.DebugLog = expandEnv(c.Logging.DebugLog)
}

// getUserConfigDir returns the XDG config directory for Usher.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "usher")
	}

	// Fall back to ~/.config/usher
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "usher")
	}
	return filepath.Join(home, ".config", "usher")
}

// findProjectConfig searches for .usher.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".usher.yaml")
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

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		StateDir:    "",
		DataDir:     "",
		CatalogPath: "",
		Retry: RetryConfig{
			MaxRetries:  3,
			BaseDelayMs: 1000,
		},
		Logging: LoggingConfig{
			DebugLog: "",
		},
	}
}
