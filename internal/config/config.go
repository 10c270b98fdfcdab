// Package config loads drivebox settings from an optional YAML file, then
// applies DRIVEBOX_* environment overrides.
//
// Environment keys follow the section layout, for example
// DRIVEBOX_STORAGE_ENDPOINT, DRIVEBOX_ACCOUNTS_DSN or
// DRIVEBOX_LIMITS_COPY_CONCURRENCY.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/download"
	"github.com/koustreak/drivebox/internal/filestore"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/pathutil"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIVEBOX"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Storage  filestore.Config `yaml:"storage" envconfig:"STORAGE"`
	Limits   LimitsConfig     `yaml:"limits" envconfig:"LIMITS"`
	Download download.Config  `yaml:"download" envconfig:"DOWNLOAD"`
	Accounts account.Config   `yaml:"accounts" envconfig:"ACCOUNTS"`
	Logging  logger.Config    `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	UserHeader      string        `yaml:"user_header" envconfig:"USER_HEADER"`
	MaxUploadMemory int64         `yaml:"max_upload_memory" envconfig:"MAX_UPLOAD_MEMORY"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LimitsConfig bounds path names and move fan-out.
type LimitsConfig struct {
	MaxNameLength   int `yaml:"max_name_length" envconfig:"MAX_NAME_LENGTH"`
	CopyConcurrency int `yaml:"copy_concurrency" envconfig:"COPY_CONCURRENCY"`
}

// Default returns a configuration that runs against a local MinIO with a
// static account map.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			UserHeader:      "X-Forwarded-User",
			MaxUploadMemory: 32 << 20,
			ReadTimeout:     time.Minute,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: *filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin"),
		Limits: LimitsConfig{
			MaxNameLength:   pathutil.DefaultMaxNameLength,
			CopyConcurrency: 1,
		},
		Accounts: *account.DefaultConfig(),
		Logging:  *logger.DefaultConfig(),
	}
}

// Load builds a Config from Default, the YAML file at path (skipped when
// path is empty), and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid section at once.
func (c *Config) Validate() error {
	var problems []error
	if c.Server.Addr == "" {
		problems = append(problems, errors.New("server.addr is required"))
	}
	if c.Server.UserHeader == "" {
		problems = append(problems, errors.New("server.user_header is required"))
	}
	if c.Limits.MaxNameLength < 1 {
		problems = append(problems, errors.New("limits.max_name_length must be positive"))
	}
	if c.Limits.CopyConcurrency < 1 {
		problems = append(problems, errors.New("limits.copy_concurrency must be at least 1"))
	}
	if err := c.Storage.Validate(); err != nil {
		problems = append(problems, fmt.Errorf("storage: %w", err))
	}
	if err := c.Accounts.Validate(); err != nil {
		problems = append(problems, fmt.Errorf("accounts: %w", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}
