package devices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/challenge"
	"github.com/wirepass/wirepass/internal/devicenames"
	"github.com/wirepass/wirepass/internal/keys"
	"github.com/wirepass/wirepass/internal/storage"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockBackend struct {
	mu          sync.Mutex
	registered  []string
	deleted     []string
	devices     []api.WGDevice
	registerErr error
	deleteErr   error
}

func (m *mockBackend) RegisterWGDevice(_ context.Context, req api.WGRegisterRequest) (*api.WGDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	m.registered = append(m.registered, req.WGPubkey)
	return &api.WGDevice{Pubkey: req.WGPubkey, Address: "10.8.0.9/32"}, nil
}

func (m *mockBackend) ListWGDevices(context.Context, api.SignedChallenge) ([]api.WGDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.WGDevice(nil), m.devices...), nil
}

func (m *mockBackend) DeleteWGPeer(_ context.Context, req api.WGPeerRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, req.WGPubkey)
	return m.deleteErr
}

type mockAuth struct {
	mu      sync.Mutex
	signed  []string
	fetched []string
	signErr error
}

func (m *mockAuth) Sign(_ context.Context, id string) (api.SignedChallenge, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signed = append(m.signed, id)
	if m.signErr != nil {
		return api.SignedChallenge{}, time.Time{}, m.signErr
	}
	return api.SignedChallenge{ID: id, Key: "k", Signature: "s"}, time.Unix(1700000000, 0), nil
}

func (m *mockAuth) FetchWireGuardConfigForKey(_ context.Context, id string, kp *keys.Keypair) (*challenge.WireGuardConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, kp.PublicKeyString())
	return &challenge.WireGuardConfig{
		Config:  challenge.PatchConfig("PrivateKey = "+challenge.Placeholder, kp.PrivateKeyString()),
		Keypair: kp,
	}, nil
}

func newTestManager(b *mockBackend, a *mockAuth) (*Manager, *devicenames.Store) {
	names := devicenames.NewStore(storage.NewMemoryBackend(), nil)
	return NewManager(b, a, names, nil, nil), names
}

func mustKey(t *testing.T) string {
	t.Helper()
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return kp.PublicKeyString()
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRegister_StoresNameAndReturnsConfig(t *testing.T) {
	b := &mockBackend{}
	a := &mockAuth{}
	m, names := newTestManager(b, a)
	ctx := context.Background()

	p, err := m.Register(ctx, "client-1", "laptop")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(b.registered) != 1 || b.registered[0] != p.Device.Pubkey {
		t.Errorf("registered = %v, device = %+v", b.registered, p.Device)
	}
	if len(a.fetched) != 1 || a.fetched[0] != p.Device.Pubkey {
		t.Errorf("config fetched for %v", a.fetched)
	}
	if p.Device.Address != "10.8.0.9/32" {
		t.Errorf("Address = %q", p.Device.Address)
	}
	if name, ok := names.Get(ctx, p.Device.Pubkey); !ok || name != "laptop" {
		t.Errorf("stored name = %q, %v", name, ok)
	}
	if p.Config == "PrivateKey = "+challenge.Placeholder {
		t.Error("config not patched")
	}
}

func TestRegister_SignFailure(t *testing.T) {
	b := &mockBackend{}
	m, _ := newTestManager(b, &mockAuth{signErr: errors.New("declined")})

	if _, err := m.Register(context.Background(), "client-1", "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(b.registered) != 0 {
		t.Error("device registered without signature")
	}
}

func TestList_MergesNames(t *testing.T) {
	k1, k2 := mustKey(t), mustKey(t)
	b := &mockBackend{devices: []api.WGDevice{{Pubkey: k1}, {Pubkey: k2}}}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()

	if err := names.Set(ctx, k2, "alpha"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := m.List(ctx, "client-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List = %+v", got)
	}
	// Unnamed devices sort first.
	if got[0].Pubkey != k1 || got[0].Name != "" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Pubkey != k2 || got[1].Name != "alpha" || got[1].CreatedAt.IsZero() {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestDelete_RemovesName(t *testing.T) {
	k := mustKey(t)
	b := &mockBackend{}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()
	names.Set(ctx, k, "phone")

	if err := m.Delete(ctx, "client-1", k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(b.deleted) != 1 || b.deleted[0] != k {
		t.Errorf("deleted = %v", b.deleted)
	}
	if _, ok := names.Get(ctx, k); ok {
		t.Error("name still stored after delete")
	}
}

func TestDelete_BackendErrorKeepsName(t *testing.T) {
	k := mustKey(t)
	b := &mockBackend{deleteErr: &api.APIError{StatusCode: 500}}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()
	names.Set(ctx, k, "phone")

	if err := m.Delete(ctx, "client-1", k); !errors.Is(err, api.ErrServer) {
		t.Fatalf("Delete err = %v, want ErrServer", err)
	}
	if _, ok := names.Get(ctx, k); !ok {
		t.Error("name removed although backend delete failed")
	}
}

func TestDelete_RejectsInvalidKey(t *testing.T) {
	b := &mockBackend{}
	m, _ := newTestManager(b, &mockAuth{})

	if err := m.Delete(context.Background(), "client-1", "not-a-key"); err == nil {
		t.Fatal("expected error")
	}
	if len(b.deleted) != 0 {
		t.Error("backend called with invalid key")
	}
}

func TestRegenerate_MovesName(t *testing.T) {
	old := mustKey(t)
	b := &mockBackend{}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()
	names.Set(ctx, old, "router")

	p, err := m.Regenerate(ctx, "client-1", old)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if p.Device.Pubkey == old {
		t.Fatal("regenerate reused the old key")
	}
	if len(b.registered) != 1 || b.registered[0] != p.Device.Pubkey {
		t.Errorf("registered = %v, want [%s]", b.registered, p.Device.Pubkey)
	}
	if p.Device.Address != "10.8.0.9/32" {
		t.Errorf("Address = %q", p.Device.Address)
	}
	if name, ok := names.Get(ctx, p.Device.Pubkey); !ok || name != "router" {
		t.Errorf("new key name = %q, %v", name, ok)
	}
	if _, ok := names.Get(ctx, old); ok {
		t.Error("old key still named")
	}
	if len(b.deleted) != 1 || b.deleted[0] != old {
		t.Errorf("deleted = %v", b.deleted)
	}
}

func TestRegenerate_OldPeerAlreadyGone(t *testing.T) {
	old := mustKey(t)
	b := &mockBackend{deleteErr: &api.APIError{StatusCode: 404}}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()
	names.Set(ctx, old, "router")

	if _, err := m.Regenerate(ctx, "client-1", old); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if _, ok := names.Get(ctx, old); ok {
		t.Error("old key still named")
	}
}

func TestRegenerate_RegisterFailureKeepsOldPeer(t *testing.T) {
	old := mustKey(t)
	b := &mockBackend{registerErr: &api.APIError{StatusCode: 500}}
	a := &mockAuth{}
	m, names := newTestManager(b, a)
	ctx := context.Background()
	names.Set(ctx, old, "router")

	if _, err := m.Regenerate(ctx, "client-1", old); !errors.Is(err, api.ErrServer) {
		t.Fatalf("Regenerate err = %v, want ErrServer", err)
	}
	if len(b.deleted) != 0 {
		t.Errorf("old peer deleted although the new key was not registered: %v", b.deleted)
	}
	if len(a.fetched) != 0 {
		t.Errorf("config fetched for unregistered key: %v", a.fetched)
	}
	if name, ok := names.Get(ctx, old); !ok || name != "router" {
		t.Errorf("old name = %q, %v", name, ok)
	}
}

func TestRegenerate_OldPeerDeleteFailureKeepsName(t *testing.T) {
	old := mustKey(t)
	b := &mockBackend{deleteErr: &api.APIError{StatusCode: 502}}
	m, names := newTestManager(b, &mockAuth{})
	ctx := context.Background()
	names.Set(ctx, old, "router")

	p, err := m.Regenerate(ctx, "client-1", old)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if name, ok := names.Get(ctx, old); !ok || name != "router" {
		t.Errorf("old name = %q, %v; want kept while the peer is still live", name, ok)
	}
	if name, ok := names.Get(ctx, p.Device.Pubkey); !ok || name != "router" {
		t.Errorf("new key name = %q, %v", name, ok)
	}
}
