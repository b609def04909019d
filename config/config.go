// Package config provides configuration structures for the interception
// pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full pipeline configuration.
type Config struct {
	// UserID is the account on whose behalf records are captured.
	UserID string `yaml:"user_id" json:"user_id" mapstructure:"user_id"`

	// Gate configuration
	FreshnessWindow time.Duration `yaml:"freshness_window" json:"freshness_window" mapstructure:"freshness_window"` // Suppress duplicates seen upstream within this window
	RetentionAge    time.Duration `yaml:"retention_age" json:"retention_age" mapstructure:"retention_age"`          // Delete local records older than this
	SweepInterval   time.Duration `yaml:"sweep_interval" json:"sweep_interval" mapstructure:"sweep_interval"`       // How often the retention sweep runs

	// Query configuration
	DefaultPageSize int `yaml:"default_page_size" json:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size" json:"max_page_size" mapstructure:"max_page_size"`

	// Store configuration
	StoreBackend string `yaml:"store_backend" json:"store_backend" mapstructure:"store_backend"` // "sqlite" or "memory"
	StorePath    string `yaml:"store_path" json:"store_path" mapstructure:"store_path"`          // SQLite database path

	// Remote configuration
	RemoteDSN string `yaml:"remote_dsn" json:"remote_dsn,omitempty" mapstructure:"remote_dsn"` // Postgres connection string; empty disables the remote

	// Observability configuration
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"` // Empty disables the metrics endpoint
	LogLevel    string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`

	// Dapr configuration
	Dapr DaprConfig `yaml:"dapr" json:"dapr" mapstructure:"dapr"`
}

// DaprConfig holds Dapr-specific configuration for the pub/sub relay.
type DaprConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	PubSubComponent string `yaml:"pubsub_component" json:"pubsub_component" mapstructure:"pubsub_component"` // Name of Dapr pubsub component
	AppPort         string `yaml:"app_port" json:"app_port" mapstructure:"app_port"`                         // Port the topic subscriber listens on
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		FreshnessWindow: 3 * time.Hour,
		RetentionAge:    30 * 24 * time.Hour,
		SweepInterval:   6 * time.Hour,
		DefaultPageSize: 20,
		MaxPageSize:     200,
		StoreBackend:    "sqlite",
		StorePath:       "feedscope.db",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		Dapr: DaprConfig{
			Enabled:         false,
			PubSubComponent: "pubsub",
			AppPort:         "6002",
		},
	}
}

// Load reads configuration from an optional file plus FEEDSCOPE_*
// environment variables, layered over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("feedscope")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()

	// AutomaticEnv only consults keys viper already knows about, so every
	// key must be registered with its default before unmarshalling.
	v.SetDefault("user_id", cfg.UserID)
	v.SetDefault("freshness_window", cfg.FreshnessWindow)
	v.SetDefault("retention_age", cfg.RetentionAge)
	v.SetDefault("sweep_interval", cfg.SweepInterval)
	v.SetDefault("default_page_size", cfg.DefaultPageSize)
	v.SetDefault("max_page_size", cfg.MaxPageSize)
	v.SetDefault("store_backend", cfg.StoreBackend)
	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("remote_dsn", cfg.RemoteDSN)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("dapr.enabled", cfg.Dapr.Enabled)
	v.SetDefault("dapr.pubsub_component", cfg.Dapr.PubSubComponent)
	v.SetDefault("dapr.app_port", cfg.Dapr.AppPort)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness_window must be positive")
	}

	if c.RetentionAge <= 0 {
		return fmt.Errorf("retention_age must be positive")
	}

	if c.RetentionAge < c.FreshnessWindow {
		return fmt.Errorf("retention_age must not be shorter than freshness_window")
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}

	if c.DefaultPageSize < 1 {
		return fmt.Errorf("default_page_size must be at least 1")
	}

	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("max_page_size must not be smaller than default_page_size")
	}

	validBackends := map[string]bool{
		"":       true, // defaults to sqlite
		"sqlite": true,
		"memory": true,
	}
	if !validBackends[c.StoreBackend] {
		return fmt.Errorf("invalid store_backend '%s', must be one of: sqlite, memory", c.StoreBackend)
	}

	if c.StoreBackend != "memory" && c.StorePath == "" {
		return fmt.Errorf("sqlite backend requires store_path to be specified")
	}

	if c.Dapr.Enabled && c.Dapr.PubSubComponent == "" {
		return fmt.Errorf("dapr mode requires pubsub_component to be specified")
	}

	return nil
}
