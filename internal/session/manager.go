// Package session owns the login session lifecycle: creation, sliding idle
// expiry, master-secret re-verification and logout. The session record never
// leaves the package; callers get a redacted view.
package session

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/cryptox"
	"github.com/dmitrijs2005/lockbox/internal/identity"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/google/uuid"
)

// State of the session machine.
type State string

const (
	StateLoggedOut State = "logged_out"
	StateActive    State = "active"
	StateExpired   State = "expired"
)

// record is the full session state. The token and verifier are deliberately
// unexported and excluded from View.
type record struct {
	sessionID    string
	user         identity.UserInfo
	token        string
	verifier     []byte
	authSalt     []byte
	createdAt    time.Time
	lastActivity time.Time
	expiresAt    time.Time
}

// View is the redacted projection exposed to callers: no token, no verifier.
type View struct {
	SessionID    string            `json:"session_id"`
	User         identity.UserInfo `json:"user"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// Manager drives the session state machine. All methods are safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	state     State
	rec       *record
	idle      time.Duration
	timer     *time.Timer
	provider  identity.Provider
	log       logging.Logger
	onExpired func()
}

// NewManager builds a manager with the given idle timeout. The provider is
// only used to revoke tokens on logout.
func NewManager(provider identity.Provider, log logging.Logger, idle time.Duration) *Manager {
	return &Manager{
		state:    StateLoggedOut,
		idle:     idle,
		provider: provider,
		log:      log,
	}
}

// OnExpired registers a callback invoked (without the manager lock held)
// after an idle timeout destroys the session.
func (m *Manager) OnExpired(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = fn
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Create starts a session. Only callable from LoggedOut; an already active
// session yields common.ErrSessionExists. The verifier and authSalt come
// from the mediator, which derives them from the master secret; the secret
// itself is never handed to the manager.
func (m *Manager) Create(token string, user identity.UserInfo, verifier, authSalt []byte) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive {
		return nil, common.ErrSessionExists
	}

	now := time.Now()
	m.rec = &record{
		sessionID:    uuid.NewString(),
		user:         user,
		token:        token,
		verifier:     append([]byte(nil), verifier...),
		authSalt:     append([]byte(nil), authSalt...),
		createdAt:    now,
		lastActivity: now,
		expiresAt:    now.Add(m.idle),
	}
	m.state = StateActive
	m.armTimerLocked()

	m.log.Info(context.Background(), "session created", "session_id", m.rec.sessionID, "expires_at", m.rec.expiresAt)
	return m.viewLocked(), nil
}

// UpdateActivity bumps lastActivity and slides the expiry window. No-op
// outside Active. Every authenticated operation routes through here so
// genuinely active use never times out mid-task.
func (m *Manager) UpdateActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.rec == nil {
		return
	}
	now := time.Now()
	m.rec.lastActivity = now
	m.rec.expiresAt = now.Add(m.idle)
	m.armTimerLocked()
}

// IsValid reports whether an unexpired session exists. Fails closed: a nil
// record or zero expiry is invalid.
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.rec == nil || m.rec.expiresAt.IsZero() {
		return false
	}
	return time.Now().Before(m.rec.expiresAt)
}

// ValidateMasterSecret derives a key from candidate and the session's auth
// salt and compares its verifier against the stored one in constant time.
// Raw secrets are never compared.
func (m *Manager) ValidateMasterSecret(candidate string) bool {
	m.mu.Lock()
	if m.state != StateActive || m.rec == nil {
		m.mu.Unlock()
		return false
	}
	verifier := append([]byte(nil), m.rec.verifier...)
	authSalt := append([]byte(nil), m.rec.authSalt...)
	m.mu.Unlock()

	// key derivation is CPU-bound; run it outside the lock
	key, err := cryptox.DeriveKey(candidate, authSalt)
	if err != nil {
		return false
	}
	defer cryptox.Wipe(key)

	candidateVerifier := cryptox.MakeVerifier(key)
	return subtle.ConstantTimeCompare(verifier, candidateVerifier) == 1
}

// Logout revokes the external token and clears the session. The local
// session ends even when revocation fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.rec == nil {
		m.state = StateLoggedOut
		m.mu.Unlock()
		return nil
	}
	token := m.rec.token
	m.clearLocked()
	m.mu.Unlock()

	if m.provider != nil {
		if err := m.provider.RevokeToken(ctx, token); err != nil {
			m.log.Warn(ctx, "token revocation failed, local session cleared anyway", "error", err)
		}
	}

	m.log.Info(ctx, "logged out")
	return nil
}

// Get returns the redacted session view, or nil when not Active.
func (m *Manager) Get() *View {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.rec == nil {
		return nil
	}
	return m.viewLocked()
}

func (m *Manager) viewLocked() *View {
	return &View{
		SessionID:    m.rec.sessionID,
		User:         m.rec.user,
		CreatedAt:    m.rec.createdAt,
		LastActivity: m.rec.lastActivity,
		ExpiresAt:    m.rec.expiresAt,
	}
}

func (m *Manager) armTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.idle, m.handleTimeout)
}

// handleTimeout fires from the armed timer. If activity slid the window
// since the timer was armed, it re-arms; otherwise the session is destroyed
// and the expiry callback notified.
func (m *Manager) handleTimeout() {
	m.mu.Lock()
	if m.state != StateActive || m.rec == nil {
		m.mu.Unlock()
		return
	}
	if remaining := time.Until(m.rec.expiresAt); remaining > 0 {
		m.timer = time.AfterFunc(remaining, m.handleTimeout)
		m.mu.Unlock()
		return
	}

	m.state = StateExpired
	m.clearLocked()
	notify := m.onExpired
	m.mu.Unlock()

	m.log.Info(context.Background(), "session expired after idle timeout")
	if notify != nil {
		notify()
	}
}

// clearLocked wipes secret material and resets the machine to LoggedOut.
func (m *Manager) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.rec != nil {
		cryptox.Wipe(m.rec.verifier)
		cryptox.Wipe(m.rec.authSalt)
		m.rec = nil
	}
	m.state = StateLoggedOut
}
