// Package config holds the registry configuration and its YAML loader.
package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// RegistryConfig holds registry behavior configuration
type RegistryConfig struct {
	AnonymousPrefix   string   `yaml:"anonymous_prefix"`
	PolicyMode        string   `yaml:"policy_mode"` // settings or isolation
	DisableFinalizers bool     `yaml:"disable_finalizers"`
	GlobalAliases     []string `yaml:"global_aliases"`
}

// CacheConfig holds owner query cache configuration
type CacheConfig struct {
	OwnerQuerySize int `yaml:"owner_query_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the model registry
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PolicyMode values accepted by registry.policy_mode.
const (
	PolicySettings  = "settings"
	PolicyIsolation = "isolation"
)

// Default returns a Config with all defaults applied, for embedding the
// registry without a config file.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load loads configuration from a file
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Registry.AnonymousPrefix == "" {
		cfg.Registry.AnonymousPrefix = "AnonymousModel_"
	}
	if cfg.Registry.PolicyMode == "" {
		cfg.Registry.PolicyMode = PolicySettings
	}
	if cfg.Cache.OwnerQuerySize == 0 {
		cfg.Cache.OwnerQuerySize = 1024
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var err error

	switch c.Registry.PolicyMode {
	case PolicySettings, PolicyIsolation:
	default:
		err = multierr.Append(err, fmt.Errorf("registry.policy_mode must be %q or %q, got %q",
			PolicySettings, PolicyIsolation, c.Registry.PolicyMode))
	}

	if c.Cache.OwnerQuerySize < 1 {
		err = multierr.Append(err, fmt.Errorf("cache.owner_query_size must be positive, got %d",
			c.Cache.OwnerQuerySize))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q",
			c.Logging.Level))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.format must be json or console, got %q",
			c.Logging.Format))
	}

	return err
}

// BuildLogger constructs a zap logger from the logging configuration.
func (lc LoggingConfig) BuildLogger() *zap.Logger {
	var level zapcore.Level
	switch lc.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if lc.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
