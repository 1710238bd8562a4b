// Package config handles configuration loading from TOML or YAML files.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no --config flag is given
const DefaultPath = "StatBeacon.toml"

// Payload modes for outbound posts
const (
	PayloadNotification = "notification" // chat-style payload with attachments
	PayloadReport       = "report"       // flat Report record
)

// Config holds all configuration for the beacon. It is loaded once at
// startup and never mutated afterwards.
type Config struct {
	// Beacon identification
	Name string `toml:"name" yaml:"name"`

	// Loop cadence
	IntervalSeconds uint64 `toml:"interval_seconds" yaml:"interval_seconds"`

	// Outbound HTTP
	Proxy                 string `toml:"proxy" yaml:"proxy"` // empty means direct
	TargetStatURL         string `toml:"target_stat_url" yaml:"target_stat_url"`
	TargetAlertURL        string `toml:"target_alert_url" yaml:"target_alert_url"`
	RequestTimeoutSeconds uint64 `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	StatPayload           string `toml:"stat_payload" yaml:"stat_payload"`
	AlertPayload          string `toml:"alert_payload" yaml:"alert_payload"`

	// Optional bounded retry (0 keeps posts best effort)
	RetryAttempts          int    `toml:"retry_attempts" yaml:"retry_attempts"`
	RetryInitialIntervalMS uint64 `toml:"retry_initial_interval_ms" yaml:"retry_initial_interval_ms"`

	// Thresholds
	CPUAlertThreshold         float64 `toml:"cpu_alert_threshold" yaml:"cpu_alert_threshold"`
	MemoryAlertThreshold      float64 `toml:"memory_alert_threshold" yaml:"memory_alert_threshold"`
	TemperatureAlertThreshold float64 `toml:"temperature_alert_threshold" yaml:"temperature_alert_threshold"`

	// Logging
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`

	// Optional sinks
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
	RedisURL    string `toml:"redis_url" yaml:"redis_url"`
}

// requiredKeys must be present in every config file
var requiredKeys = []string{
	"name",
	"interval_seconds",
	"target_stat_url",
	"target_alert_url",
	"cpu_alert_threshold",
	"memory_alert_threshold",
	"temperature_alert_threshold",
}

// DefaultConfig returns a config with defaults for every optional key
func DefaultConfig() *Config {
	return &Config{
		RequestTimeoutSeconds:  10,
		StatPayload:            PayloadNotification,
		AlertPayload:           PayloadNotification,
		RetryInitialIntervalMS: 500,
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// Load reads, parses and validates the config file at path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Format is a config file syntax
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Parse decodes data on top of DefaultConfig and checks that every
// required key is present. It does not validate values.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := DefaultConfig()
	keys := map[string]interface{}{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return nil, err
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, err
		}
		if _, err := toml.Decode(string(data), &keys); err != nil {
			return nil, err
		}
	}

	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, &ConfigError{Field: key, Message: "missing required key"}
		}
	}

	return cfg, nil
}

// Interval returns the loop sleep duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryInitialInterval returns the first backoff interval
func (c *Config) RetryInitialInterval() time.Duration {
	return time.Duration(c.RetryInitialIntervalMS) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Name == "" {
		return &ConfigError{Field: "name", Message: "beacon name is required"}
	}
	if c.IntervalSeconds == 0 {
		return &ConfigError{Field: "interval_seconds", Message: "must be greater than zero"}
	}
	if err := validateHTTPURL("target_stat_url", c.TargetStatURL); err != nil {
		return err
	}
	if err := validateHTTPURL("target_alert_url", c.TargetAlertURL); err != nil {
		return err
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "proxy", Message: "must be an absolute URL"}
		}
	}
	thresholds := []struct {
		field string
		value float64
	}{
		{"cpu_alert_threshold", c.CPUAlertThreshold},
		{"memory_alert_threshold", c.MemoryAlertThreshold},
		{"temperature_alert_threshold", c.TemperatureAlertThreshold},
	}
	for _, th := range thresholds {
		if math.IsNaN(th.value) || math.IsInf(th.value, 0) {
			return &ConfigError{Field: th.field, Message: "must be a finite number"}
		}
	}
	if c.RequestTimeoutSeconds == 0 {
		return &ConfigError{Field: "request_timeout_seconds", Message: "must be greater than zero"}
	}
	if !validPayload(c.StatPayload) {
		return &ConfigError{Field: "stat_payload", Message: "must be \"notification\" or \"report\""}
	}
	if !validPayload(c.AlertPayload) {
		return &ConfigError{Field: "alert_payload", Message: "must be \"notification\" or \"report\""}
	}
	if c.RetryAttempts < 0 {
		return &ConfigError{Field: "retry_attempts", Message: "must not be negative"}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "log_format", Message: "must be \"text\" or \"json\""}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return &ConfigError{Field: field, Message: "URL is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: field, Message: err.Error()}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

func validPayload(p string) bool {
	return p == PayloadNotification || p == PayloadReport
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}
