package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wirepass/wirepass/internal/api"
)

type mockLister struct {
	mu      sync.Mutex
	calls   int
	owners  []string
	clients []api.ClientInfo
	err     error
}

func (m *mockLister) ListClients(_ context.Context, owner string) ([]api.ClientInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.owners = append(m.owners, owner)
	if m.err != nil {
		return nil, m.err
	}
	return append([]api.ClientInfo(nil), m.clients...), nil
}

func (m *mockLister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCache_GetFetchesOnce(t *testing.T) {
	l := &mockLister{clients: []api.ClientInfo{{ID: "c1"}}}
	c := NewCache(l, "owner1", nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 1 || got[0].ID != "c1" {
			t.Fatalf("Get = %+v", got)
		}
	}
	if n := l.callCount(); n != 1 {
		t.Errorf("ListClients calls = %d, want 1", n)
	}
	if l.owners[0] != "owner1" {
		t.Errorf("owner = %q", l.owners[0])
	}
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	l := &mockLister{clients: []api.ClientInfo{{ID: "c1"}}}
	c := NewCache(l, "owner1", nil)
	ctx := context.Background()

	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}

	l.mu.Lock()
	l.clients = append(l.clients, api.ClientInfo{ID: "c2"})
	l.mu.Unlock()

	c.Invalidate()
	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Get after invalidate = %+v", got)
	}
	if n := l.callCount(); n != 2 {
		t.Errorf("ListClients calls = %d, want 2", n)
	}
}

func TestCache_ErrorLeavesCacheInvalid(t *testing.T) {
	l := &mockLister{err: errors.New("boom")}
	c := NewCache(l, "owner1", nil)
	ctx := context.Background()

	if _, err := c.Get(ctx); err == nil {
		t.Fatal("expected error")
	}

	l.mu.Lock()
	l.err = nil
	l.mu.Unlock()

	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := l.callCount(); n != 2 {
		t.Errorf("ListClients calls = %d, want 2", n)
	}
	if c.FetchedAt().IsZero() {
		t.Error("FetchedAt not set after a successful fetch")
	}
}

func TestCache_FetchedAtTracksRefetch(t *testing.T) {
	l := &mockLister{clients: []api.ClientInfo{{ID: "c1"}}}
	c := NewCache(l, "owner1", nil)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	if !c.FetchedAt().IsZero() {
		t.Fatalf("FetchedAt before any fetch = %v", c.FetchedAt())
	}
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := c.FetchedAt(); !got.Equal(clock) {
		t.Errorf("FetchedAt = %v, want %v", got, clock)
	}

	first := clock
	clock = clock.Add(time.Minute)
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := c.FetchedAt(); !got.Equal(first) {
		t.Errorf("FetchedAt after cached Get = %v, want %v", got, first)
	}

	if _, err := c.Refetch(ctx); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if got := c.FetchedAt(); !got.Equal(clock) {
		t.Errorf("FetchedAt after Refetch = %v, want %v", got, clock)
	}
}

func TestCache_ReturnsCopy(t *testing.T) {
	l := &mockLister{clients: []api.ClientInfo{{ID: "c1"}}}
	c := NewCache(l, "owner1", nil)

	got, _ := c.Get(context.Background())
	got[0].ID = "mutated"

	again, _ := c.Get(context.Background())
	if again[0].ID != "c1" {
		t.Errorf("cache mutated through returned slice: %q", again[0].ID)
	}
}

func TestActive(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clients := []api.ClientInfo{
		{ID: "expired", Expiration: now.Add(-time.Hour)},
		{ID: "live", Expiration: now.Add(time.Hour)},
	}
	got := Active(clients, now)
	if len(got) != 1 || got[0].ID != "live" {
		t.Errorf("Active = %+v", got)
	}
}
