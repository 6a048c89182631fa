// Package devicenames keeps the user-chosen names of WireGuard devices,
// keyed by device public key. The backend only knows public keys; names live
// on the client.
package devicenames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/wirepass/wirepass/internal/storage"
)

// StorageKey is the key under which the whole mapping is persisted.
const StorageKey = "wirepass.device-names"

// Entry is the stored name of one device.
type Entry struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mapping maps base64 public keys to their entries.
type Mapping map[string]Entry

// Store reads and rewrites the full mapping on every operation.
type Store struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore returns a Store persisting to backend.
func NewStore(backend storage.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "devicenames"),
		now:     time.Now,
	}
}

// Get returns the name stored for pubkey. A missing key, unreadable storage
// or a corrupt mapping all read as "no name".
func (s *Store) Get(ctx context.Context, pubkey string) (string, bool) {
	e, ok := s.load(ctx)[pubkey]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// Set names the device. Renaming keeps the original creation time.
func (s *Store) Set(ctx context.Context, pubkey, name string) error {
	if pubkey == "" {
		return errors.New("devicenames: set: empty public key")
	}
	return s.update(ctx, func(m Mapping) {
		e, ok := m[pubkey]
		if !ok {
			e.CreatedAt = s.now().UTC()
		}
		e.Name = name
		m[pubkey] = e
	})
}

// Remove forgets the device name. Removing an unknown key is not an error.
func (s *Store) Remove(ctx context.Context, pubkey string) error {
	return s.update(ctx, func(m Mapping) {
		delete(m, pubkey)
	})
}

// All returns a copy of the whole mapping.
func (s *Store) All(ctx context.Context) Mapping {
	return maps.Clone(s.load(ctx))
}

func (s *Store) load(ctx context.Context) Mapping {
	raw, err := s.backend.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("read device names failed", "error", err)
		}
		return Mapping{}
	}
	return s.decode(raw)
}

func (s *Store) decode(raw string) Mapping {
	m := Mapping{}
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.logger.Warn("stored device names are malformed, treating as empty", "error", err)
		return Mapping{}
	}
	if m == nil {
		m = Mapping{}
	}
	return m
}

func (s *Store) update(ctx context.Context, mutate func(Mapping)) error {
	err := s.backend.Update(ctx, StorageKey, func(cur string, found bool) (string, error) {
		m := Mapping{}
		if found {
			m = s.decode(cur)
		}
		mutate(m)
		data, err := json.Marshal(m)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("devicenames: save: %w", err)
	}
	return nil
}
