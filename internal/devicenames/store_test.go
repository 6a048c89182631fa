package devicenames

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wirepass/wirepass/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	return NewStore(backend, testLogger()), backend
}

func TestStore_SetGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok := s.Get(ctx, "pk1"); ok {
		t.Fatal("Get on empty store returned ok")
	}
	if err := s.Set(ctx, "pk1", "laptop"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	name, ok := s.Get(ctx, "pk1")
	if !ok || name != "laptop" {
		t.Errorf("Get = %q, %v; want %q, true", name, ok, "laptop")
	}
}

func TestStore_RenameKeepsCreatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	if err := s.Set(ctx, "pk", "A"); err != nil {
		t.Fatalf("Set A: %v", err)
	}

	s.now = func() time.Time { return first.Add(time.Hour) }
	if err := s.Set(ctx, "pk", "B"); err != nil {
		t.Fatalf("Set B: %v", err)
	}

	name, _ := s.Get(ctx, "pk")
	if name != "B" {
		t.Errorf("name = %q, want %q", name, "B")
	}
	if got := s.All(ctx)["pk"].CreatedAt; !got.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", got, first)
	}
}

func TestStore_SetPreservesOtherKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "pk1", "one")
	_ = s.Set(ctx, "pk2", "two")
	if err := s.Remove(ctx, "pk1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	all := s.All(ctx)
	if len(all) != 1 {
		t.Fatalf("len(All) = %d, want 1", len(all))
	}
	if all["pk2"].Name != "two" {
		t.Errorf("pk2 = %q, want %q", all["pk2"].Name, "two")
	}
}

func TestStore_RemoveUnknownIsNoError(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Remove(context.Background(), "nope"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestStore_MalformedJSONReadsAsEmpty(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	_ = backend.Set(ctx, StorageKey, "{not json")

	if _, ok := s.Get(ctx, "pk"); ok {
		t.Error("Get on malformed store returned ok")
	}
	if len(s.All(ctx)) != 0 {
		t.Error("All on malformed store is not empty")
	}

	// A write replaces the corrupt blob.
	if err := s.Set(ctx, "pk", "fixed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if name, ok := s.Get(ctx, "pk"); !ok || name != "fixed" {
		t.Errorf("Get = %q, %v; want %q, true", name, ok, "fixed")
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Set(ctx, "pk", "orig")

	all := s.All(ctx)
	all["pk"] = Entry{Name: "mutated"}
	all["other"] = Entry{Name: "x"}

	if name, _ := s.Get(ctx, "pk"); name != "orig" {
		t.Errorf("store mutated through All(): name = %q", name)
	}
	if _, ok := s.Get(ctx, "other"); ok {
		t.Error("store gained key through All()")
	}
}

func TestStore_SetEmptyKey(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Set(context.Background(), "", "x"); err == nil {
		t.Fatal("Set with empty key = nil error")
	}
}
