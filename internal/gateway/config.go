package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the gateway.
const (
	DefaultListen          = ":8787"
	DefaultProfilePath     = "/api/client/profile"
	DefaultShutdownTimeout = 5 * time.Second
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "WIREPASS"

// Config holds the configuration for the proxy gateway.
type Config struct {
	// UpstreamURL is the backend origin requests are forwarded to (required).
	UpstreamURL string `mapstructure:"UPSTREAM_URL" yaml:"upstream_url"`

	// Network labels the backend network (e.g. "mainnet") and is returned
	// to clients in the X-Wirepass-Network header.
	Network string `mapstructure:"NETWORK" yaml:"network"`

	// Listen is the TCP address to listen on.
	// Default: :8787
	Listen string `mapstructure:"LISTEN" yaml:"listen"`

	// ProfilePath is the path whose upstream 302 responses are turned into
	// plain-text responses carrying the redirect target.
	// Default: /api/client/profile
	ProfilePath string `mapstructure:"PROFILE_PATH" yaml:"profile_path"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ProfilePath == "" {
		c.ProfilePath = DefaultProfilePath
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return errors.New("gateway: config: UpstreamURL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gateway: config: UpstreamURL %q must be an http(s) URL", c.UpstreamURL)
	}
	if !strings.HasPrefix(c.ProfilePath, "/") {
		return errors.New("gateway: config: ProfilePath must start with /")
	}
	return nil
}

// LoadConfigFromEnv reads the gateway configuration from WIREPASS_*
// environment variables and applies defaults.
func LoadConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetDefault("UPSTREAM_URL", "")
	v.SetDefault("NETWORK", "")
	v.SetDefault("LISTEN", DefaultListen)
	v.SetDefault("PROFILE_PATH", DefaultProfilePath)
	v.SetDefault("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("gateway: load config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
