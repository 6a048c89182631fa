// Package pending tracks purchase transactions that were submitted on-chain
// but are not yet visible in the backend's client list.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/wirepass/wirepass/internal/storage"
)

const (
	// StorageKey is the key under which the ledger is persisted.
	StorageKey = "wirepass.pending-transactions"

	// MaxAttempts is the number of availability checks made per transaction.
	MaxAttempts = 20

	// Retention is how long completed entries are kept before Cleanup prunes them.
	Retention = 24 * time.Hour
)

// Status of a pending transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// Transaction is one tracked purchase intent.
type Transaction struct {
	ID           string    `json:"id"`
	Region       string    `json:"region"`
	Duration     Duration  `json:"duration"`
	PurchaseTime time.Time `json:"purchaseTime"`
	Status       Status    `json:"status"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
}

// NewTransaction returns a fresh pending entry purchased at now.
func NewTransaction(id, region string, duration Duration, now time.Time) Transaction {
	return Transaction{
		ID:           id,
		Region:       region,
		Duration:     duration,
		PurchaseTime: now.UTC(),
		Status:       StatusPending,
		MaxAttempts:  MaxAttempts,
	}
}

// Duration is the purchased duration as sent by the backend, which encodes
// it either as a JSON string or a JSON number.
type Duration string

// UnmarshalJSON accepts both string and number encodings.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Duration(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("pending: duration: %w", err)
	}
	*d = Duration(n.String())
	return nil
}

// Ledger is the persisted list of pending transactions. Every mutation reads
// the full list, changes it and writes it back through the storage backend.
type Ledger struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger returns a Ledger persisting to backend.
func NewLedger(backend storage.Backend, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		backend: backend,
		logger:  logger.With("component", "pending"),
		now:     time.Now,
	}
}

// Add records tx. Adding an id that is already tracked keeps the existing
// entry and only logs a warning.
func (l *Ledger) Add(ctx context.Context, tx Transaction) error {
	if tx.ID == "" {
		return errors.New("pending: add: empty id")
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.MaxAttempts == 0 {
		tx.MaxAttempts = MaxAttempts
	}
	return l.mutate(ctx, "add", func(list []Transaction) ([]Transaction, bool) {
		if slices.ContainsFunc(list, func(t Transaction) bool { return t.ID == tx.ID }) {
			l.logger.Warn("transaction already tracked, ignoring duplicate", "id", tx.ID)
			return list, false
		}
		return append(list, tx), true
	})
}

// UpdateStatus sets the status of id. An unknown id is a logged no-op.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status Status) error {
	return l.mutateOne(ctx, "update status", id, func(t *Transaction) {
		t.Status = status
	})
}

// UpdateAttempts sets the attempt counter of id. An unknown id is a logged no-op.
func (l *Ledger) UpdateAttempts(ctx context.Context, id string, attempts int) error {
	return l.mutateOne(ctx, "update attempts", id, func(t *Transaction) {
		t.Attempts = attempts
	})
}

// Remove drops id from the ledger.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	return l.mutate(ctx, "remove", func(list []Transaction) ([]Transaction, bool) {
		n := len(list)
		list = slices.DeleteFunc(list, func(t Transaction) bool { return t.ID == id })
		return list, len(list) != n
	})
}

// All returns every tracked transaction in insertion order.
func (l *Ledger) All(ctx context.Context) []Transaction {
	return l.load(ctx)
}

// Active returns the transactions still awaiting confirmation.
func (l *Ledger) Active(ctx context.Context) []Transaction {
	var out []Transaction
	for _, t := range l.load(ctx) {
		if t.Status == StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// Cleanup prunes completed entries purchased at least Retention ago and
// returns how many were removed. Pending entries are never pruned.
func (l *Ledger) Cleanup(ctx context.Context) (int, error) {
	now := l.now()
	removed := 0
	err := l.mutate(ctx, "cleanup", func(list []Transaction) ([]Transaction, bool) {
		n := len(list)
		list = slices.DeleteFunc(list, func(t Transaction) bool {
			return t.Status == StatusComplete && now.Sub(t.PurchaseTime) >= Retention
		})
		removed = n - len(list)
		return list, removed > 0
	})
	return removed, err
}

func (l *Ledger) mutateOne(ctx context.Context, op, id string, fn func(*Transaction)) error {
	return l.mutate(ctx, op, func(list []Transaction) ([]Transaction, bool) {
		i := slices.IndexFunc(list, func(t Transaction) bool { return t.ID == id })
		if i < 0 {
			l.logger.Warn("transaction not found", "op", op, "id", id)
			return list, false
		}
		fn(&list[i])
		return list, true
	})
}

// mutate applies fn to the stored list; fn reports whether anything changed.
func (l *Ledger) mutate(ctx context.Context, op string, fn func([]Transaction) ([]Transaction, bool)) error {
	err := l.backend.Update(ctx, StorageKey, func(cur string, found bool) (string, error) {
		var list []Transaction
		if found {
			list = l.decode(cur)
		}
		list, changed := fn(list)
		if !changed {
			return "", storage.ErrSkipWrite
		}
		if list == nil {
			list = []Transaction{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("pending: %s: %w", op, err)
	}
	return nil
}

func (l *Ledger) load(ctx context.Context) []Transaction {
	raw, err := l.backend.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("read ledger failed", "error", err)
		}
		return nil
	}
	return l.decode(raw)
}

func (l *Ledger) decode(raw string) []Transaction {
	if raw == "" {
		return nil
	}
	var list []Transaction
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		l.logger.Warn("stored ledger is malformed, treating as empty", "error", err)
		return nil
	}
	return list
}
