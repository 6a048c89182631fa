// Package storage provides the key-value persistence layer used by the local
// stores (device names, pending transactions, preferences). Each logical store
// keeps a single JSON document under a fixed key and always reads and rewrites
// it as a whole.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("storage: key not found")

	// ErrSkipWrite may be returned by an UpdateFunc to leave the stored value
	// untouched. Update then returns nil.
	ErrSkipWrite = errors.New("storage: skip write")
)

// UpdateFunc receives the current value of a key (found is false when the key
// is absent) and returns the value to store.
type UpdateFunc func(current string, found bool) (string, error)

// Backend is a string key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Update performs a read-modify-write of key. Implementations serialize
	// concurrent updates of the same key, including across processes where
	// the backend is shared.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey rejects keys that cannot be used safely as file names or
// Redis key suffixes.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}

// Open creates the backend selected by cfg.Driver.
func Open(cfg Config) (Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverFile:
		return NewFileBackend(cfg.DataDir)
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case DriverRedis:
		return NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix), nil
	case DriverMemory:
		return NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}
