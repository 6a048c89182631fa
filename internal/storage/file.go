package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wirepass/wirepass/internal/fsutil"
)

const lockFileName = ".lock"

// FileBackend stores each key as dir/<key>.json. Mutations hold an exclusive
// advisory lock on dir/.lock so that several wirepass processes sharing a
// data directory never interleave their read-modify-write cycles.
type FileBackend struct {
	mu  sync.Mutex
	dir string
}

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func fileName(key string) string { return key + ".json" }

func (b *FileBackend) Get(_ context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(false)
	if err != nil {
		return "", err
	}
	defer unlock()

	return b.read(key)
}

func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	return b.Update(ctx, key, func(string, bool) (string, error) { return value, nil })
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(filepath.Join(b.dir, fileName(key))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Update(_ context.Context, key string, fn UpdateFunc) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := b.read(key)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next, err := fn(cur, found)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(b.dir, fileName(key), []byte(next), 0o600); err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) read(key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, fileName(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	return string(data), nil
}

// lock takes the directory-wide advisory lock and returns its release func.
func (b *FileBackend) lock(exclusive bool) (func(), error) {
	f, err := os.OpenFile(filepath.Join(b.dir, lockFileName), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("storage: open lock: %w", err)
	}
	if err := lockFile(f, exclusive); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: lock: %w", err)
	}
	return func() {
		_ = unlockFile(f)
		f.Close()
	}, nil
}
