// Package main provides the coral diagnostics server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Alerting     AlertingConfig     `yaml:"alerting"`
	Observations ObservationsConfig `yaml:"observations"`
	Notify       NotifyConfig       `yaml:"notify"`
	Verbose      bool               `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address        string        `yaml:"address"`         // HTTP listen address (default: :8080)
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request timeout (default: 10s)
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file path (default: data/coralwatch.db)
}

// AlertingConfig contains evaluation settings.
type AlertingConfig struct {
	DefaultThreshold int           `yaml:"default_threshold"`  // Case count that opens an alert (default: 200)
	AffectedRadiusKm float64       `yaml:"affected_radius_km"` // Radius stamped on new alerts (default: 50)
	Interval         time.Duration `yaml:"interval"`           // Evaluation cycle interval (default: 15m)
	Concurrency      int           `yaml:"concurrency"`        // Areas reconciled in parallel (default: 8)
	RetentionDays    int           `yaml:"retention_days"`     // History retention in days, -1 disables (default: 180)
}

// ObservationsConfig points at the observation feed.
type ObservationsConfig struct {
	File string `yaml:"file"` // YAML file with per-area case counts
}

// NotifyConfig contains notification channel settings.
type NotifyConfig struct {
	MaxPerWindow int             `yaml:"max_per_window"` // Notifications per window (default: 10)
	Window       time.Duration   `yaml:"window"`         // Rate limit window (default: 1m)
	Email        EmailConfig     `yaml:"email"`
	Slack        SlackConfig     `yaml:"slack"`
	WebSocket    WebSocketConfig `yaml:"websocket"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// SlackConfig contains Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebSocketConfig toggles the live alert stream.
type WebSocketConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/coralwatch.db"
	}
	if c.Alerting.DefaultThreshold == 0 {
		c.Alerting.DefaultThreshold = 200
	}
	if c.Alerting.AffectedRadiusKm == 0 {
		c.Alerting.AffectedRadiusKm = 50.0
	}
	if c.Alerting.Interval == 0 {
		c.Alerting.Interval = 15 * time.Minute
	}
	if c.Alerting.Concurrency == 0 {
		c.Alerting.Concurrency = 8
	}
	// 0 means unset. Disabling retention takes an explicit -1.
	if c.Alerting.RetentionDays == 0 {
		c.Alerting.RetentionDays = 180
	}
	if c.Notify.MaxPerWindow == 0 {
		c.Notify.MaxPerWindow = 10
	}
	if c.Notify.Window == 0 {
		c.Notify.Window = time.Minute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Alerting.DefaultThreshold < 0 {
		return fmt.Errorf("alerting.default_threshold must not be negative")
	}
	if c.Alerting.AffectedRadiusKm < 0 {
		return fmt.Errorf("alerting.affected_radius_km must not be negative")
	}
	if c.Alerting.Interval < time.Second {
		return fmt.Errorf("alerting.interval must be at least 1s")
	}
	if c.Alerting.RetentionDays < -1 {
		return fmt.Errorf("alerting.retention_days must be -1 (disabled) or positive")
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" {
			return fmt.Errorf("notify.email.host is required when email is enabled")
		}
		if c.Notify.Email.From == "" {
			return fmt.Errorf("notify.email.from is required when email is enabled")
		}
		if len(c.Notify.Email.Recipients) == 0 {
			return fmt.Errorf("notify.email.recipients is required when email is enabled")
		}
	}
	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when slack is enabled")
	}
	return nil
}
