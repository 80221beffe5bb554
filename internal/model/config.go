package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// BackendConfig holds the connection settings for the capstone
// platform REST backend.
type BackendConfig struct {
	// BaseURL is the root URL of the backend (e.g., https://capstone.example.edu).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// PollIntervalSec is how often (in seconds) the poller re-aggregates.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AggregationConfig holds the windows and caps applied during an
// aggregation pass.
type AggregationConfig struct {
	// LookAheadDays bounds how far into the future deadlines and events
	// are collected.
	LookAheadDays int `mapstructure:"look_ahead_days" yaml:"look_ahead_days"`

	// LookBackHours keeps slightly-past events visible.
	LookBackHours int `mapstructure:"look_back_hours" yaml:"look_back_hours"`

	// PerSourceCap limits how many records each collector returns per project.
	PerSourceCap int `mapstructure:"per_source_cap" yaml:"per_source_cap"`
}

// EmailConfig holds the optional IMAP announcement source settings.
// The mailbox password lives in the system keyring, not here.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend     BackendConfig     `mapstructure:"backend" yaml:"backend"`
	Aggregation AggregationConfig `mapstructure:"aggregation" yaml:"aggregation"`
	Email       EmailConfig       `mapstructure:"email" yaml:"email"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/capstone-notify/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "capstone-notify", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			PollIntervalSec: 120,
		},
		Aggregation: AggregationConfig{
			LookAheadDays: 14,
			LookBackHours: 6,
			PerSourceCap:  5,
		},
		Email: EmailConfig{
			Port: "993",
			TLS:  true,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("backend.poll_interval_sec", 120)
	v.SetDefault("aggregation.look_ahead_days", 14)
	v.SetDefault("aggregation.look_back_hours", 6)
	v.SetDefault("aggregation.per_source_cap", 5)
	v.SetDefault("email.port", "993")
	v.SetDefault("email.tls", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("aggregation", cfg.Aggregation)
	v.Set("email", cfg.Email)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
