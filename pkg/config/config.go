package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/machshop/enforcement/pkg/telemetry"
)

// Config is the top-level service configuration, loaded from a YAML file
// and validated before any component starts.
type Config struct {
	Database DatabaseConfig          `yaml:"database" validate:"required"`
	Logging  telemetry.LoggingConfig `yaml:"logging"`
	Metrics  telemetry.MetricsConfig `yaml:"metrics"`
	Tracing  telemetry.TracingConfig `yaml:"tracing"`
	Rules    RulesConfig             `yaml:"rules"`
	Service  ServiceConfig           `yaml:"service"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" validate:"omitempty,oneof=dev staging prod"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path            string        `yaml:"path" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"omitempty,min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"omitempty,min=1"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RulesConfig points at the optional quality rule file. When Path is empty
// the built-in default rules apply.
type RulesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Default returns a configuration with sane defaults applied.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "enforcement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: telemetry.LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "enforcement",
		},
		Tracing: telemetry.TracingConfig{
			Enabled:      false,
			Exporter:     "stdout",
			SamplingRate: 1.0,
		},
		Service: ServiceConfig{
			Name:        "enforcement",
			Environment: "dev",
		},
	}
}

// Load reads, parses, and validates a YAML configuration file. Values not
// present in the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Telemetry assembles the telemetry configuration from the service-level
// sections.
func (c *Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		ServiceName:    c.Service.Name,
		ServiceVersion: c.Service.Version,
		Environment:    c.Service.Environment,
		Logging:        c.Logging,
		Metrics:        c.Metrics,
		Tracing:        c.Tracing,
	}
}
