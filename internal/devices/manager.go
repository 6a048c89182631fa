// Package devices provisions WireGuard devices for a client: it registers
// fresh keys with the backend, downloads configs and keeps local names.
package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/challenge"
	"github.com/wirepass/wirepass/internal/devicenames"
	"github.com/wirepass/wirepass/internal/keys"
)

// Backend is the subset of *api.Client used for device management.
type Backend interface {
	RegisterWGDevice(ctx context.Context, req api.WGRegisterRequest) (*api.WGDevice, error)
	ListWGDevices(ctx context.Context, req api.SignedChallenge) ([]api.WGDevice, error)
	DeleteWGPeer(ctx context.Context, req api.WGPeerRequest) error
}

// Auth signs challenges and downloads configs.
type Auth interface {
	Sign(ctx context.Context, id string) (api.SignedChallenge, time.Time, error)
	FetchWireGuardConfigForKey(ctx context.Context, id string, kp *keys.Keypair) (*challenge.WireGuardConfig, error)
}

// Device is a registered device with its local name.
type Device struct {
	Pubkey    string
	Name      string
	Address   string
	CreatedAt time.Time
}

// Provisioned is a newly provisioned device and its ready-to-use config.
type Provisioned struct {
	Device Device
	Config string
}

// Manager manages the WireGuard devices of clients owned by one wallet.
type Manager struct {
	backend Backend
	auth    Auth
	names   *devicenames.Store
	keygen  challenge.KeyGenerator
	logger  *slog.Logger
}

// NewManager creates a Manager. A nil keygen uses keys.NewGenerator().
func NewManager(backend Backend, auth Auth, names *devicenames.Store, keygen challenge.KeyGenerator, logger *slog.Logger) *Manager {
	if keygen == nil {
		keygen = keys.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend: backend,
		auth:    auth,
		names:   names,
		keygen:  keygen,
		logger:  logger.With("component", "devices"),
	}
}

// Register creates a keypair, registers its public key for clientID, names
// the device and downloads its config.
func (m *Manager) Register(ctx context.Context, clientID, name string) (*Provisioned, error) {
	kp, err := m.keygen.Generate()
	if err != nil {
		return nil, fmt.Errorf("devices: register: %w", err)
	}
	signed, _, err := m.auth.Sign(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("devices: register: %w", err)
	}
	dev, err := m.backend.RegisterWGDevice(ctx, api.WGRegisterRequest{
		SignedChallenge: signed,
		WGPubkey:        kp.PublicKeyString(),
	})
	if err != nil {
		return nil, fmt.Errorf("devices: register: %w", err)
	}
	if name != "" {
		if err := m.names.Set(ctx, kp.PublicKeyString(), name); err != nil {
			m.logger.Warn("store device name failed", "pubkey", kp.PublicKeyString(), "error", err)
		}
	}

	cfg, err := m.auth.FetchWireGuardConfigForKey(ctx, clientID, kp)
	if err != nil {
		return nil, fmt.Errorf("devices: register: %w", err)
	}
	m.logger.Info("device registered", "client_id", clientID, "pubkey", kp.PublicKeyString())
	return &Provisioned{
		Device: Device{
			Pubkey:    kp.PublicKeyString(),
			Name:      name,
			Address:   dev.Address,
			CreatedAt: dev.CreatedAt,
		},
		Config: cfg.Config,
	}, nil
}

// List returns the devices of clientID with their local names, sorted by
// name and then public key. Devices without a local name have an empty Name.
func (m *Manager) List(ctx context.Context, clientID string) ([]Device, error) {
	signed, _, err := m.auth.Sign(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("devices: list: %w", err)
	}
	remote, err := m.backend.ListWGDevices(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("devices: list: %w", err)
	}

	names := m.names.All(ctx)
	out := make([]Device, 0, len(remote))
	for _, d := range remote {
		dev := Device{Pubkey: d.Pubkey, Address: d.Address, CreatedAt: d.CreatedAt}
		if e, ok := names[d.Pubkey]; ok {
			dev.Name = e.Name
			if dev.CreatedAt.IsZero() {
				dev.CreatedAt = e.CreatedAt
			}
		}
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Pubkey < out[j].Pubkey
	})
	return out, nil
}

// Delete removes a device from the backend and forgets its name.
func (m *Manager) Delete(ctx context.Context, clientID, pubkey string) error {
	if _, err := keys.ParsePublicKey(pubkey); err != nil {
		return fmt.Errorf("devices: delete: %w", err)
	}
	signed, _, err := m.auth.Sign(ctx, clientID)
	if err != nil {
		return fmt.Errorf("devices: delete: %w", err)
	}
	if err := m.backend.DeleteWGPeer(ctx, api.WGPeerRequest{SignedChallenge: signed, WGPubkey: pubkey}); err != nil {
		return fmt.Errorf("devices: delete: %w", err)
	}
	if err := m.names.Remove(ctx, pubkey); err != nil {
		m.logger.Warn("remove device name failed", "pubkey", pubkey, "error", err)
	}
	m.logger.Info("device deleted", "client_id", clientID, "pubkey", pubkey)
	return nil
}

// Regenerate issues a new key and config for the device oldPubkey. The new
// key is registered before the old peer is removed, and the device keeps its
// name under the new key. A private key is never stored, so a lost config can
// only be replaced.
func (m *Manager) Regenerate(ctx context.Context, clientID, oldPubkey string) (*Provisioned, error) {
	name, _ := m.names.Get(ctx, oldPubkey)

	kp, err := m.keygen.Generate()
	if err != nil {
		return nil, fmt.Errorf("devices: regenerate: %w", err)
	}
	newPub := kp.PublicKeyString()

	signed, _, err := m.auth.Sign(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("devices: regenerate: %w", err)
	}
	dev, err := m.backend.RegisterWGDevice(ctx, api.WGRegisterRequest{
		SignedChallenge: signed,
		WGPubkey:        newPub,
	})
	if err != nil {
		return nil, fmt.Errorf("devices: regenerate: %w", err)
	}
	cfg, err := m.auth.FetchWireGuardConfigForKey(ctx, clientID, kp)
	if err != nil {
		return nil, fmt.Errorf("devices: regenerate: %w", err)
	}

	if name != "" {
		if err := m.names.Set(ctx, newPub, name); err != nil {
			m.logger.Warn("store device name failed", "pubkey", newPub, "error", err)
		}
	}
	if oldPubkey != "" && oldPubkey != newPub {
		m.removeReplaced(ctx, clientID, oldPubkey)
	}

	m.logger.Info("device regenerated", "client_id", clientID, "old_pubkey", oldPubkey, "pubkey", newPub)
	return &Provisioned{
		Device: Device{
			Pubkey:    newPub,
			Name:      name,
			Address:   dev.Address,
			CreatedAt: dev.CreatedAt,
		},
		Config: cfg.Config,
	}, nil
}

// removeReplaced deletes the peer a regenerated device replaced. A peer the
// backend still holds keeps its name.
func (m *Manager) removeReplaced(ctx context.Context, clientID, pubkey string) {
	err := m.Delete(ctx, clientID, pubkey)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrNotFound):
		if err := m.names.Remove(ctx, pubkey); err != nil {
			m.logger.Warn("remove device name failed", "pubkey", pubkey, "error", err)
		}
	default:
		m.logger.Warn("remove replaced device failed", "pubkey", pubkey, "error", err)
	}
}
