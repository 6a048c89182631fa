// Package config aggregates the configuration of every wirepass component
// and loads it from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/gateway"
	"github.com/wirepass/wirepass/internal/poller"
	"github.com/wirepass/wirepass/internal/storage"
	"github.com/wirepass/wirepass/internal/wallet"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDirName is the data directory created in the user's home.
const DefaultDataDirName = ".wirepass"

// Config is the top-level wirepass configuration.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// DataDir holds local state: stored keys, the wallet key and the
	// sqlite database.
	// Default: $HOME/.wirepass
	DataDir string `yaml:"data_dir"`

	API     api.Config     `yaml:"api"`
	Storage storage.Config `yaml:"storage"`
	Poller  poller.Config  `yaml:"poller"`
	Wallet  wallet.Config  `yaml:"wallet"`

	// Gateway is only used by "wirepass gateway"; environment variables
	// override it there.
	Gateway gateway.Config `yaml:"gateway"`
}

// DefaultDataDir returns $HOME/.wirepass, or .wirepass when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDirName
	}
	return filepath.Join(home, DefaultDataDirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// ApplyDefaults sets default values for zero-valued fields. Component
// directories default to DataDir.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = c.DataDir
	}
	c.API.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Poller.ApplyDefaults()
	c.Wallet.ApplyDefaults(c.DataDir)
	c.Gateway.ApplyDefaults()
}

// Validate checks the client configuration. The gateway section is checked
// by the gateway itself.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Poller.Validate(); err != nil {
		return err
	}
	if err := c.Wallet.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfig reads a YAML configuration file. It does not apply defaults
// or validate, so that command-line overrides can be applied first.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Load parses path if it exists. A missing file yields an empty Config
// unless required is set.
func Load(path string, required bool) (*Config, error) {
	cfg, err := ParseConfig(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return &Config{}, nil
	}
	return cfg, err
}
