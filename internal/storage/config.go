package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

const (
	// DefaultDriver is the default storage driver.
	DefaultDriver = DriverFile

	// DefaultDataDir is the default directory for the file and sqlite drivers.
	DefaultDataDir = ".wirepass"

	// DefaultRedisPrefix is prepended to every key stored in Redis.
	DefaultRedisPrefix = "wirepass:"
)

// Config selects and configures a storage backend.
type Config struct {
	// Driver is one of "file", "sqlite", "redis", "memory".
	// Default: "file"
	Driver string `yaml:"driver"`

	// DataDir holds one JSON file per key for the file driver.
	// Default: .wirepass
	DataDir string `yaml:"data_dir"`

	// SQLitePath is the database file for the sqlite driver.
	// Default: DataDir/wirepass.db
	SQLitePath string `yaml:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// RedisPrefix namespaces keys in a shared Redis.
	// Default: "wirepass:"
	RedisPrefix string `yaml:"redis_prefix"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DefaultDriver
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "wirepass.db")
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = DefaultRedisPrefix
	}
}

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("storage: config: redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage: config: invalid driver %q", c.Driver)
	}
	return nil
}
