// Package poller waits for a submitted purchase to show up as a confirmed
// client on the backend and reconciles the pending-transaction ledger.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/pending"
)

// Phase is the state of the poller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseResolved
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseResolved:
		return "resolved"
	case PhaseExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome is how the last finished session ended.
type Outcome struct {
	Phase    Phase // PhaseResolved or PhaseExhausted
	ClientID string
	Attempts int
	Client   *api.ClientInfo // set when resolved
}

// State is a snapshot of the poller.
type State struct {
	Phase       Phase
	ClientID    string
	Attempts    int
	MaxAttempts int
	Last        *Outcome
}

// Checker asks the backend whether a client is confirmed. A nil result with
// a nil error means "not yet".
type Checker interface {
	ClientAvailable(ctx context.Context, id string) (*api.ClientInfo, error)
}

// Ledger is the part of the pending-transaction ledger the poller updates.
type Ledger interface {
	UpdateStatus(ctx context.Context, id string, status pending.Status) error
	UpdateAttempts(ctx context.Context, id string, attempts int) error
	Active(ctx context.Context) []pending.Transaction
}

// ClientCache is the cached client-list view refreshed after a confirmation.
type ClientCache interface {
	Invalidate()
	Refetch(ctx context.Context) ([]api.ClientInfo, error)
}

// Poller runs at most one polling session at a time. Checks within a
// session are strictly sequential. Once Stop returns, the stopped session
// makes no further checks and writes nothing.
type Poller struct {
	cfg     Config
	checker Checker
	ledger  Ledger
	cache   ClientCache
	logger  *slog.Logger

	// opMu serializes Start, Stop and Resume.
	opMu sync.Mutex

	mu       sync.Mutex
	state    State
	session  uint64
	cancel   context.CancelFunc
	done     chan struct{}
	onChange func(State)
}

// New creates a Poller. cache may be nil.
func New(cfg Config, checker Checker, ledger Ledger, cache ClientCache, logger *slog.Logger) *Poller {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		checker: checker,
		ledger:  ledger,
		cache:   cache,
		logger:  logger.With("component", "poller"),
		state:   State{Phase: PhaseIdle, MaxAttempts: cfg.MaxAttempts},
	}
}

// SetOnChange registers fn to receive every state change. fn runs on the
// polling goroutine and must not call Start, Stop or Resume.
func (p *Poller) SetOnChange(fn func(State)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins polling for clientID, stopping any running session first.
// initialAttempts carries over checks already spent, e.g. when resuming a
// ledger entry; if it already reaches the limit the session ends exhausted
// without checking.
func (p *Poller) Start(ctx context.Context, clientID string, initialAttempts int) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.startLocked(ctx, clientID, initialAttempts)
}

// Resume starts polling for the first pending ledger entry. It returns the
// resumed transaction, or false when nothing is pending.
func (p *Poller) Resume(ctx context.Context) (pending.Transaction, bool) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	active := p.ledger.Active(ctx)
	if len(active) == 0 {
		return pending.Transaction{}, false
	}
	tx := active[0]
	p.logger.Info("resuming pending transaction", "client_id", tx.ID, "attempts", tx.Attempts)
	p.startLocked(ctx, tx.ID, tx.Attempts)
	return tx, true
}

// Stop cancels the running session, if any, and waits for it to exit.
func (p *Poller) Stop() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.stopLocked() {
		p.publish(func(s *State) {
			s.Phase = PhaseIdle
			s.ClientID = ""
			s.Attempts = 0
		})
	}
}

// Wait blocks until the current session ends or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) startLocked(ctx context.Context, clientID string, initialAttempts int) {
	p.stopLocked()

	if initialAttempts >= p.cfg.MaxAttempts {
		p.logger.Warn("attempts already exhausted, not polling",
			"client_id", clientID, "attempts", initialAttempts)
		p.publish(func(s *State) {
			*s = State{
				Phase:       PhaseIdle,
				MaxAttempts: p.cfg.MaxAttempts,
				Last:        &Outcome{Phase: PhaseExhausted, ClientID: clientID, Attempts: initialAttempts},
			}
		})
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.session++
	sess := p.session
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.publishSession(sess, func(s *State) {
		s.Phase = PhasePolling
		s.ClientID = clientID
		s.Attempts = initialAttempts
	})
	p.logger.Info("polling for client", "client_id", clientID, "attempts", initialAttempts)

	go p.run(sctx, cancel, done, sess, clientID, initialAttempts)
}

// stopLocked cancels the running session and waits for its goroutine.
// It reports whether a session was running.
func (p *Poller) stopLocked() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.session++
	running := p.state.Phase == PhasePolling
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return running
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, sess uint64, clientID string, attempts int) {
	defer close(done)
	defer cancel()

	timer := time.NewTimer(p.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.abandon(sess)
			return
		case <-timer.C:
		}

		info, err := p.checker.ClientAvailable(ctx, clientID)
		if ctx.Err() != nil {
			p.abandon(sess)
			return
		}
		if err == nil && info != nil {
			p.resolve(ctx, sess, clientID, attempts+1, info)
			return
		}

		attempts++
		if err != nil {
			p.logger.Warn("availability check failed", "client_id", clientID, "attempt", attempts, "error", err)
		} else {
			p.logger.Debug("client not yet available", "client_id", clientID, "attempt", attempts)
		}
		if err := p.ledger.UpdateAttempts(ctx, clientID, attempts); err != nil {
			p.logger.Warn("persist attempts failed", "client_id", clientID, "error", err)
		}

		if attempts >= p.cfg.MaxAttempts {
			p.logger.Warn("client still unavailable, giving up", "client_id", clientID, "attempts", attempts)
			p.finish(sess, &Outcome{Phase: PhaseExhausted, ClientID: clientID, Attempts: attempts})
			return
		}

		p.publishSession(sess, func(s *State) { s.Attempts = attempts })
		timer.Reset(p.cfg.Interval)
	}
}

func (p *Poller) resolve(ctx context.Context, sess uint64, clientID string, checks int, info *api.ClientInfo) {
	p.logger.Info("client confirmed", "client_id", clientID, "checks", checks)

	if err := p.ledger.UpdateStatus(ctx, clientID, pending.StatusComplete); err != nil {
		p.logger.Warn("mark transaction complete failed", "client_id", clientID, "error", err)
	}
	if p.cache != nil {
		p.cache.Invalidate()
		if _, err := p.cache.Refetch(ctx); err != nil {
			p.logger.Warn("refresh client list failed", "error", err)
		}
	}
	p.finish(sess, &Outcome{Phase: PhaseResolved, ClientID: clientID, Attempts: checks, Client: info})
}

// finish reports the terminal phase and returns the poller to idle.
func (p *Poller) finish(sess uint64, out *Outcome) {
	p.publishSession(sess, func(s *State) { s.Phase = out.Phase })
	p.publishSession(sess, func(s *State) {
		s.Phase = PhaseIdle
		s.ClientID = ""
		s.Attempts = 0
		s.Last = out
	})
}

// abandon returns to idle when the caller's context ended the session.
// After Stop the session is already stale and nothing changes.
func (p *Poller) abandon(sess uint64) {
	p.publishSession(sess, func(s *State) {
		s.Phase = PhaseIdle
		s.ClientID = ""
		s.Attempts = 0
	})
}

// publishSession applies fn only while sess is still the current session.
func (p *Poller) publishSession(sess uint64, fn func(*State)) {
	p.mu.Lock()
	if p.session != sess {
		p.mu.Unlock()
		return
	}
	fn(&p.state)
	st, cb := p.state, p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (p *Poller) publish(fn func(*State)) {
	p.mu.Lock()
	fn(&p.state)
	st, cb := p.state, p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}
