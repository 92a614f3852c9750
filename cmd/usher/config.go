package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/usherhq/usher/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or modify configuration",
	Long: `View or modify Usher configuration.

With no arguments, displays the effective configuration after merging
defaults, the user config, the project config, and environment variables.
With one argument, displays that key. With two arguments, sets the key
in the user configuration file.

Examples:
  usher config                        # Show all configuration
  usher config retry.max_retries      # Show one value
  usher config retry.max_retries 5    # Set a value`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch len(args) {
	case 0:
		displayAllConfig(cfg)
	case 1:
		displayConfigKey(cfg, args[0])
	case 2:
		setConfigKey(cfg, args[0], args[1])
	}

	return nil
}

// displayAllConfig prints the effective configuration.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("state_dir: %s\n", orUnset(cfg.StateDir))
	fmt.Printf("data_dir: %s\n", orUnset(cfg.DataDir))
	fmt.Printf("catalog_path: %s\n", orUnset(cfg.CatalogPath))
	fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.base_delay_ms: %d\n", cfg.Retry.BaseDelayMs)
	fmt.Printf("logging.debug_log: %s\n", orUnset(cfg.Logging.DebugLog))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "state_dir":
		return orUnset(cfg.StateDir), nil
	case "data_dir":
		return orUnset(cfg.DataDir), nil
	case "catalog_path":
		return orUnset(cfg.CatalogPath), nil
	case "retry.max_retries":
		return strconv.Itoa(cfg.Retry.MaxRetries), nil
	case "retry.base_delay_ms":
		return strconv.Itoa(cfg.Retry.BaseDelayMs), nil
	case "logging.debug_log":
		return orUnset(cfg.Logging.DebugLog), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "state_dir":
		cfg.StateDir = value
	case "data_dir":
		cfg.DataDir = value
	case "catalog_path":
		cfg.CatalogPath = value
	case "retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry.max_retries: %w", err)
		}
		cfg.Retry.MaxRetries = n
	case "retry.base_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry.base_delay_ms: %w", err)
		}
		cfg.Retry.BaseDelayMs = n
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
