package poller

import (
	"errors"
	"time"

	"github.com/wirepass/wirepass/internal/pending"
)

// Default polling cadence. Confirmation usually takes minutes, so the first
// check is delayed and later checks are spaced out.
const (
	DefaultInitialDelay = 20 * time.Second
	DefaultInterval     = 40 * time.Second
)

// Config holds the configuration for the availability poller.
type Config struct {
	// InitialDelay is the wait before the first check.
	// Default: 20s
	InitialDelay time.Duration `yaml:"initial_delay"`

	// Interval is the wait between later checks.
	// Default: 40s
	Interval time.Duration `yaml:"interval"`

	// MaxAttempts is the number of failed checks after which polling gives up.
	// Default: 20
	MaxAttempts int `yaml:"max_attempts"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.InitialDelay == 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = pending.MaxAttempts
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.InitialDelay < 0 {
		return errors.New("poller: config: InitialDelay must not be negative")
	}
	if c.Interval <= 0 {
		return errors.New("poller: config: Interval must be positive")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("poller: config: MaxAttempts must be positive")
	}
	return nil
}
