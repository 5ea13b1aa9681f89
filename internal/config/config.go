// Package config handles configuration loading and management for fulfiller.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the project-level override file, searched upward
// from the working directory.
const ProjectConfigName = ".fulfiller.yaml"

// EnvPrefix prefixes environment overrides, e.g. FULFILLER_POOL_WORKERS.
const EnvPrefix = "FULFILLER"

// Config holds all configuration for fulfiller.
type Config struct {
	Anthropic     AnthropicConfig     `mapstructure:"anthropic"`
	Store         StoreConfig         `mapstructure:"store"`
	Executor      ExecutorConfig      `mapstructure:"executor"`
	Pool          PoolConfig          `mapstructure:"pool"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Instructions  InstructionsConfig  `mapstructure:"instructions"`
}

// AnthropicConfig holds completion provider settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int    `mapstructure:"max_tokens"`
}

// StoreConfig selects the SQLite driver and database file.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path overrides the project database location.
	Path string `mapstructure:"path"`
}

// ExecutorConfig holds task retry and timeout settings.
type ExecutorConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// PoolConfig holds order worker settings.
type PoolConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NotificationsConfig holds client notification settings.
type NotificationsConfig struct {
	// OutboxDir overrides the project outbox directory.
	OutboxDir string `mapstructure:"outbox_dir"`
	// Record also stores each notification in the database.
	Record bool `mapstructure:"record"`
}

// InstructionsConfig points at a category instruction override file.
type InstructionsConfig struct {
	Path string `mapstructure:"path"`
}

var defaults = map[string]any{
	"anthropic.api_key":         "",
	"anthropic.model":           "claude-sonnet-4-20250514",
	"anthropic.use_bedrock":     false,
	"anthropic.aws_region":      "",
	"anthropic.aws_profile":     "",
	"anthropic.max_tokens":      8192,
	"store.driver":              "sqlite",
	"store.path":                "",
	"executor.max_retries":      3,
	"executor.backoff_base":     "1s",
	"executor.backoff_max":      "30s",
	"executor.provider_timeout": "2m",
	"pool.workers":              4,
	"pool.poll_interval":        "5s",
	"notifications.outbox_dir":  "",
	"notifications.record":      true,
	"instructions.path":         "",
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, FULFILLER_*)
// 2. Project config (.fulfiller.yaml in current directory or parent)
// 3. User config (~/.config/fulfiller/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file over the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return saveTo(GetUserConfigPath(), cfg)
}

func saveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("store.driver", cfg.Store.Driver)
	v.Set("store.path", cfg.Store.Path)
	v.Set("executor.max_retries", cfg.Executor.MaxRetries)
	v.Set("executor.backoff_base", cfg.Executor.BackoffBase.String())
	v.Set("executor.backoff_max", cfg.Executor.BackoffMax.String())
	v.Set("executor.provider_timeout", cfg.Executor.ProviderTimeout.String())
	v.Set("pool.workers", cfg.Pool.Workers)
	v.Set("pool.poll_interval", cfg.Pool.PollInterval.String())
	v.Set("notifications.outbox_dir", cfg.Notifications.OutboxDir)
	v.Set("notifications.record", cfg.Notifications.Record)
	v.Set("instructions.path", cfg.Instructions.Path)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetValue sets a single key in the user config file, keeping the others.
func SetValue(key, value string) error {
	return setValueIn(GetUserConfigPath(), key, value)
}

func setValueIn(path, key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	v.Set(key, value)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// getUserConfigDir returns the XDG config directory for fulfiller.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fulfiller")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "fulfiller")
	}
	return filepath.Join(home, ".config", "fulfiller")
}

// findProjectConfig searches for .fulfiller.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
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
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Executor: ExecutorConfig{
			MaxRetries:      3,
			BackoffBase:     time.Second,
			BackoffMax:      30 * time.Second,
			ProviderTimeout: 2 * time.Minute,
		},
		Pool: PoolConfig{
			Workers:      4,
			PollInterval: 5 * time.Second,
		},
		Notifications: NotificationsConfig{
			Record: true,
		},
	}
}
