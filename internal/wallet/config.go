package wallet

import (
	"errors"
	"path/filepath"
)

// DefaultKeyFileName is the key file name inside the data directory.
const DefaultKeyFileName = "wallet.key"

// Config selects the wallet used by the CLI.
type Config struct {
	// KeyFile is the path of the local wallet key.
	// Default: <data_dir>/wallet.key
	KeyFile string `yaml:"key_file"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults(dataDir string) {
	if c.KeyFile == "" {
		c.KeyFile = filepath.Join(dataDir, DefaultKeyFileName)
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.KeyFile == "" {
		return errors.New("wallet: config: KeyFile is required")
	}
	return nil
}
