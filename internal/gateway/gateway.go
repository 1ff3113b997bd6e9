// Package gateway implements the step-up verification state machine that
// guards every sensitive credential read: attempt counting, time-bound
// lockout, a grace window after a successful check, and per-credential
// reveal timers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/logging"
)

// State of the gateway machine.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingInput State = "awaiting_input"
	StateVerifying     State = "verifying"
	StateGranted       State = "granted"
	StateLockedOut     State = "locked_out"
)

// Decision is the outcome of Begin for a sensitive action.
type Decision int

const (
	// DecisionProceed: a fresh verification is still valid, run the action.
	DecisionProceed Decision = iota
	// DecisionPrompt: the caller must collect the master secret and Submit.
	DecisionPrompt
	// DecisionLocked: rejected, no verification may even be attempted.
	DecisionLocked
)

// Verifier is the mediator's verification primitive.
type Verifier interface {
	VerifyMasterSecret(secret string) error
}

// Options tunes the gateway windows. Zero values select the defaults.
type Options struct {
	Grace       time.Duration // step-up grace window, default 5m
	Penalty     time.Duration // lockout length, default 5m
	RevealFor   time.Duration // per-credential auto-hide, default 30s
	MaxAttempts int           // failures before lockout, default 3
}

func (o *Options) defaults() {
	if o.Grace <= 0 {
		o.Grace = 5 * time.Minute
	}
	if o.Penalty <= 0 {
		o.Penalty = 5 * time.Minute
	}
	if o.RevealFor <= 0 {
		o.RevealFor = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
}

// Gateway tracks verification attempts and revealed credentials. Safe for
// concurrent use; the verifier call itself runs outside the lock.
type Gateway struct {
	mu           sync.Mutex
	state        State
	attempts     int
	grantedUntil time.Time
	lockedUntil  time.Time
	revealed     map[string]*time.Timer

	verifier  Verifier
	log       logging.Logger
	opts      Options
	onLockout func()
}

// New builds a gateway around the mediator's verification primitive.
// onLockout (may be nil) fires whenever a lockout begins, so the mediator
// can purge its plaintext cache.
func New(verifier Verifier, log logging.Logger, opts Options, onLockout func()) *Gateway {
	opts.defaults()
	return &Gateway{
		state:     StateIdle,
		revealed:  make(map[string]*time.Timer),
		verifier:  verifier,
		log:       log,
		opts:      opts,
		onLockout: onLockout,
	}
}

// State returns the current machine state, after rolling expired windows
// forward.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.state
}

// AttemptsRemaining reports how many failures are left before lockout.
func (g *Gateway) AttemptsRemaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.opts.MaxAttempts - g.attempts
}

// expireLocked rolls expired Granted/LockedOut windows back to Idle.
// Serving out a lockout clears the attempt counter.
func (g *Gateway) expireLocked() {
	now := time.Now()
	switch g.state {
	case StateGranted:
		if !now.Before(g.grantedUntil) {
			g.state = StateIdle
		}
	case StateLockedOut:
		if !now.Before(g.lockedUntil) {
			g.state = StateIdle
			g.attempts = 0
		}
	}
}

// Begin is the entry point for a sensitive action. A live lockout rejects
// immediately with the remaining time; a live grace window proceeds without
// prompting; otherwise the caller must prompt for the secret.
func (g *Gateway) Begin() (Decision, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()

	switch g.state {
	case StateLockedOut:
		return DecisionLocked, time.Until(g.lockedUntil)
	case StateGranted:
		return DecisionProceed, time.Until(g.grantedUntil)
	default:
		g.state = StateAwaitingInput
		return DecisionPrompt, 0
	}
}

// Submit runs the user-provided secret through the verifier. While locked
// out it returns common.ErrLockedOut without invoking the verifier at all.
// The returned error is nil exactly when the gateway transitioned to
// Granted.
func (g *Gateway) Submit(ctx context.Context, secret string) error {
	g.mu.Lock()
	g.expireLocked()
	if g.state == StateLockedOut {
		remaining := time.Until(g.lockedUntil)
		g.mu.Unlock()
		return fmt.Errorf("%w: retry in %s", common.ErrLockedOut, remaining.Round(time.Second))
	}
	g.state = StateVerifying
	g.mu.Unlock()

	err := g.verifier.VerifyMasterSecret(secret)

	g.mu.Lock()
	if err == nil {
		g.attempts = 0
		g.state = StateGranted
		g.grantedUntil = time.Now().Add(g.opts.Grace)
		g.mu.Unlock()
		g.log.Debug(ctx, "step-up verification granted")
		return nil
	}

	// session problems is not a failed guess
	if errors.Is(err, common.ErrNoSession) {
		g.state = StateIdle
		g.mu.Unlock()
		return err
	}

	g.attempts++
	if g.attempts >= g.opts.MaxAttempts {
		g.state = StateLockedOut
		g.lockedUntil = time.Now().Add(g.opts.Penalty)
		g.hideAllLocked()
		notify := g.onLockout
		g.mu.Unlock()

		g.log.Warn(ctx, "verification locked out", "attempts", g.opts.MaxAttempts)
		if notify != nil {
			notify()
		}
		return fmt.Errorf("%w: retry in %s", common.ErrLockedOut, g.opts.Penalty.Round(time.Second))
	}

	remaining := g.opts.MaxAttempts - g.attempts
	g.state = StateAwaitingInput
	g.mu.Unlock()

	g.log.Debug(ctx, "verification failed", "attempts_remaining", remaining)
	return fmt.Errorf("%w: %d attempts remaining", common.ErrUnauthorized, remaining)
}

// Cancel resolves a pending prompt as denied. It never counts as a failed
// attempt and always lands in Idle (unless a lockout is being served).
func (g *Gateway) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateAwaitingInput || g.state == StateVerifying {
		g.state = StateIdle
	}
}

// Reveal marks a credential's plaintext as visible and arms its auto-hide
// timer. The timer is independent of the grace window: a reveal always
// hides itself after the configured interval.
func (g *Gateway) Reveal(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.revealed[id]; ok {
		t.Stop()
	}
	g.revealed[id] = time.AfterFunc(g.opts.RevealFor, func() { g.Hide(id) })
}

// Hide re-masks a single credential.
func (g *Gateway) Hide(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.revealed[id]; ok {
		t.Stop()
		delete(g.revealed, id)
	}
}

// Revealed returns the ids whose plaintext is currently visible, sorted.
func (g *Gateway) Revealed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.revealed))
	for id := range g.revealed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Gateway) hideAllLocked() {
	for id, t := range g.revealed {
		t.Stop()
		delete(g.revealed, id)
	}
}
