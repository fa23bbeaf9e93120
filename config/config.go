package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds the execution limits applied to every snippet run
type SandboxConfig struct {
	BudgetMS    int    `mapstructure:"budget_ms"`
	MaxOutputKB int    `mapstructure:"max_output_kb"`
	MaxSteps    uint64 `mapstructure:"max_steps"`
}

// PolicyConfig holds adjustments to the built-in policy catalog
type PolicyConfig struct {
	File    string   `mapstructure:"file"`
	Deny    []string `mapstructure:"deny"`
	Disable []string `mapstructure:"disable"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SNIPPETBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return load(v)
}

// NewFromFile loads the configuration from an explicit YAML file
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.budget_ms", 2000)
	v.SetDefault("sandbox.max_output_kb", 64)
	v.SetDefault("sandbox.max_steps", 0)

	v.SetDefault("policy.file", "")
	v.SetDefault("policy.deny", []string{})
	v.SetDefault("policy.disable", []string{})

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Sandbox.BudgetMS <= 0 {
		return fmt.Errorf("sandbox.budget_ms must be positive, got: %d", c.Sandbox.BudgetMS)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	for _, name := range append(append([]string{}, c.Policy.Deny...), c.Policy.Disable...) {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid policy identifier: %q", name)
		}
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics.port: %d", c.Metrics.Port)
	}

	if c.Metrics.Enabled && c.Server.Transport == "http" && c.Metrics.Port == c.Server.HTTPPort {
		return fmt.Errorf("metrics.port must differ from server.http_port, both are %d", c.Metrics.Port)
	}

	return nil
}

// GetBudget returns the execution budget as a duration
func (c *Config) GetBudget() time.Duration {
	return time.Duration(c.Sandbox.BudgetMS) * time.Millisecond
}

// GetMaxOutputBytes returns the per-stream output cap in bytes
func (c *Config) GetMaxOutputBytes() int {
	return c.Sandbox.MaxOutputKB * 1024
}
