package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Auth       AuthConfig       `yaml:"auth"`
	Detector   DetectorConfig   `yaml:"detector"`
	Advisor    AdvisorConfig    `yaml:"advisor"`
	Notifiers  NotifiersConfig  `yaml:"notifiers"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Address string    `yaml:"address"` // HTTP listen address (default: :8000)
	TLS     TLSConfig `yaml:"tls"`     // HTTPS configuration
}

// TLSConfig contains TLS settings for the API server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`   // Enable HTTPS
	CertFile string `yaml:"cert_file"` // Server certificate file
	KeyFile  string `yaml:"key_file"`  // Server private key file
}

// DatabaseConfig contains metadata database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database path (default: ./data/agrisense.db)
}

// ClickHouseConfig contains reading storage settings.
type ClickHouseConfig struct {
	Addresses     []string `yaml:"addresses"`      // host:port list (default: localhost:9000)
	Database      string   `yaml:"database"`       // database name (default: agrisense)
	Username      string   `yaml:"username"`       // auth username (default: default)
	Password      string   `yaml:"password"`       // auth password
	RetentionDays int      `yaml:"retention_days"` // reading TTL in days (default: 90)
}

// MQTTConfig contains embedded broker settings.
type MQTTConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable the embedded MQTT broker
	Address string `yaml:"address"` // TCP listen address (default: :1883)
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable the metrics endpoint
	Address string `yaml:"address"` // metrics listen address (default: :9090)
}

// AuthConfig contains authentication settings. The JWT signing secret
// comes from the AGRISENSE_JWT_SECRET environment variable, never from
// the config file.
type AuthConfig struct {
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`  // default: 15m
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl"` // default: 168h
	LockoutThreshold int           `yaml:"lockout_threshold"` // failed logins before lockout (default: 5)
	LockoutDuration  time.Duration `yaml:"lockout_duration"`  // default: 30m
}

// DetectorConfig contains anomaly detector settings.
type DetectorConfig struct {
	ThresholdsFile string        `yaml:"thresholds_file"` // optional YAML thresholds override
	Window         time.Duration `yaml:"window"`          // moisture drop window (default: 30m)
	Cooldown       time.Duration `yaml:"cooldown"`        // repeat alert suppression (default: 15m)
}

// AdvisorConfig contains recommendation engine settings. The Gemini
// API key comes from the GEMINI_API_KEY environment variable.
type AdvisorConfig struct {
	GeminiModel string `yaml:"gemini_model"` // default: gemini-2.0-flash
}

// NotifiersConfig contains notification channel settings.
type NotifiersConfig struct {
	MaxPerMinute int         `yaml:"max_per_minute"` // dispatch rate limit (default: 10)
	Slack        SlackConfig `yaml:"slack"`
	Email        EmailConfig `yaml:"email"`
}

// SlackConfig contains Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
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
		c.Server.Address = ":8000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/agrisense.db"
	}
	if len(c.ClickHouse.Addresses) == 0 {
		c.ClickHouse.Addresses = []string{"localhost:9000"}
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "agrisense"
	}
	if c.ClickHouse.Username == "" {
		c.ClickHouse.Username = "default"
	}
	if c.ClickHouse.RetentionDays == 0 {
		c.ClickHouse.RetentionDays = 90
	}
	if c.MQTT.Address == "" {
		c.MQTT.Address = ":1883"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Advisor.GeminiModel == "" {
		c.Advisor.GeminiModel = "gemini-2.0-flash"
	}
	if c.Notifiers.MaxPerMinute == 0 {
		c.Notifiers.MaxPerMinute = 10
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Notifiers.Slack.Enabled && c.Notifiers.Slack.WebhookURL == "" {
		return fmt.Errorf("notifiers.slack.webhook_url is required when slack is enabled")
	}
	if c.Notifiers.Email.Enabled {
		if c.Notifiers.Email.Host == "" {
			return fmt.Errorf("notifiers.email.host is required when email is enabled")
		}
		if c.Notifiers.Email.From == "" {
			return fmt.Errorf("notifiers.email.from is required when email is enabled")
		}
		if len(c.Notifiers.Email.Recipients) == 0 {
			return fmt.Errorf("notifiers.email.recipients is required when email is enabled")
		}
	}
	return nil
}
