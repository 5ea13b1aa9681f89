package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/fulfiller/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify fulfiller configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/fulfiller/config.yaml
Project-specific overrides can be placed in .fulfiller.yaml
Environment variables override both, e.g. FULFILLER_POOL_WORKERS=8`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	values := configValues(cfg)
	for _, key := range config.Keys() {
		fmt.Printf("%s: %s\n", key, values[key])
	}
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Printf("\n(project overrides from %s)\n", path)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, ok := configValues(cfg)[strings.ToLower(key)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown configuration key: %s\n", key)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey validates and writes a value to the user config file.
func setConfigKey(key, value string) {
	key = strings.ToLower(key)
	if err := validateConfigValue(key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.SetValue(key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if key == "anthropic.api_key" {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// configValues renders every key for display. The API key is masked.
func configValues(cfg *config.Config) map[string]string {
	return map[string]string{
		"anthropic.api_key":         config.MaskAPIKey(cfg.Anthropic.APIKey),
		"anthropic.model":           cfg.Anthropic.Model,
		"anthropic.use_bedrock":     strconv.FormatBool(cfg.Anthropic.UseBedrock),
		"anthropic.aws_region":      cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":     cfg.Anthropic.AWSProfile,
		"anthropic.max_tokens":      strconv.Itoa(cfg.Anthropic.MaxTokens),
		"store.driver":              cfg.Store.Driver,
		"store.path":                cfg.Store.Path,
		"executor.max_retries":      strconv.Itoa(cfg.Executor.MaxRetries),
		"executor.backoff_base":     cfg.Executor.BackoffBase.String(),
		"executor.backoff_max":      cfg.Executor.BackoffMax.String(),
		"executor.provider_timeout": cfg.Executor.ProviderTimeout.String(),
		"pool.workers":              strconv.Itoa(cfg.Pool.Workers),
		"pool.poll_interval":        cfg.Pool.PollInterval.String(),
		"notifications.outbox_dir":  cfg.Notifications.OutboxDir,
		"notifications.record":      strconv.FormatBool(cfg.Notifications.Record),
		"instructions.path":         cfg.Instructions.Path,
	}
}

// validateConfigValue checks that value parses as the key's type.
func validateConfigValue(key, value string) error {
	if !config.IsKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	switch key {
	case "anthropic.max_tokens", "executor.max_retries", "pool.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		if n < 0 || (key != "executor.max_retries" && n == 0) {
			return fmt.Errorf("%s out of range: %d", key, n)
		}
	case "executor.backoff_base", "executor.backoff_max", "executor.provider_timeout", "pool.poll_interval":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	case "anthropic.use_bedrock", "notifications.record":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
	case "store.driver":
		if value != "sqlite" && value != "sqlite3" {
			return fmt.Errorf("invalid driver %q: expected sqlite or sqlite3", value)
		}
	}
	return nil
}
