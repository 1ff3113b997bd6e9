package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	mu     sync.Mutex
	secret string
	calls  int
	err    error
}

func (f *fakeVerifier) VerifyMasterSecret(secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if secret != f.secret {
		return common.ErrUnauthorized
	}
	return nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() logging.Logger {
	return logging.NewTextLogger(io.Discard, slog.LevelError)
}

func newGateway(v Verifier, opts Options, onLockout func()) *Gateway {
	return New(v, testLogger(), opts, onLockout)
}

func TestGateway_GrantAndGraceWindow(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{}, nil)

	d, _ := g.Begin()
	assert.Equal(t, DecisionPrompt, d)
	assert.Equal(t, StateAwaitingInput, g.State())

	require.NoError(t, g.Submit(ctx, "pw"))
	assert.Equal(t, StateGranted, g.State())

	// inside the grace window no prompt is needed
	d, remaining := g.Begin()
	assert.Equal(t, DecisionProceed, d)
	assert.Positive(t, remaining)
	assert.Equal(t, 1, v.callCount())
}

func TestGateway_GraceWindowExpires(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{Grace: 40 * time.Millisecond}, nil)

	_, _ = g.Begin()
	require.NoError(t, g.Submit(ctx, "pw"))

	time.Sleep(70 * time.Millisecond)

	d, _ := g.Begin()
	assert.Equal(t, DecisionPrompt, d)
}

func TestGateway_FailuresCountDown(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{}, nil)

	_, _ = g.Begin()

	err := g.Submit(ctx, "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, StateAwaitingInput, g.State())
	assert.Equal(t, 2, g.AttemptsRemaining())

	// success resets the counter
	require.NoError(t, g.Submit(ctx, "pw"))
	assert.Equal(t, 3, g.AttemptsRemaining())
}

func TestGateway_LockoutAfterThreeFailures(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	cleared := false
	g := newGateway(v, Options{}, func() { cleared = true })

	_, _ = g.Begin()
	for i := 0; i < 3; i++ {
		err := g.Submit(ctx, "wrong")
		require.Error(t, err)
	}

	assert.Equal(t, StateLockedOut, g.State())
	assert.True(t, cleared, "lockout must purge the plaintext cache")
	assert.Equal(t, 3, v.callCount())

	// a fourth submission is rejected without invoking the verifier
	err := g.Submit(ctx, "pw")
	assert.ErrorIs(t, err, common.ErrLockedOut)
	assert.Equal(t, 3, v.callCount())

	d, remaining := g.Begin()
	assert.Equal(t, DecisionLocked, d)
	assert.Positive(t, remaining)
}

func TestGateway_LockoutExpires(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{Penalty: 50 * time.Millisecond}, nil)

	_, _ = g.Begin()
	for i := 0; i < 3; i++ {
		_ = g.Submit(ctx, "wrong")
	}
	require.Equal(t, StateLockedOut, g.State())

	time.Sleep(80 * time.Millisecond)

	d, _ := g.Begin()
	assert.Equal(t, DecisionPrompt, d)
	assert.Equal(t, 3, g.AttemptsRemaining())
	require.NoError(t, g.Submit(ctx, "pw"))
}

func TestGateway_LockoutHidesRevealedPlaintext(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{}, nil)

	_, _ = g.Begin()
	require.NoError(t, g.Submit(ctx, "pw"))
	g.Reveal("cred-1")
	g.Reveal("cred-2")
	require.Len(t, g.Revealed(), 2)

	for i := 0; i < 3; i++ {
		_ = g.Submit(ctx, "wrong")
	}

	assert.Empty(t, g.Revealed())
}

func TestGateway_CancelIsNotAFailedAttempt(t *testing.T) {
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{}, nil)

	d, _ := g.Begin()
	require.Equal(t, DecisionPrompt, d)

	g.Cancel()

	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, 3, g.AttemptsRemaining())
	assert.Equal(t, 0, v.callCount())
}

func TestGateway_SessionErrorIsNotAFailedGuess(t *testing.T) {
	ctx := context.Background()
	v := &fakeVerifier{secret: "pw", err: common.ErrNoSession}
	g := newGateway(v, Options{}, nil)

	_, _ = g.Begin()
	err := g.Submit(ctx, "pw")
	assert.ErrorIs(t, err, common.ErrNoSession)
	assert.Equal(t, 3, g.AttemptsRemaining())
	assert.Equal(t, StateIdle, g.State())
}

func TestGateway_RevealAutoHides(t *testing.T) {
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{RevealFor: 50 * time.Millisecond}, nil)

	g.Reveal("cred-1")
	assert.Equal(t, []string{"cred-1"}, g.Revealed())

	time.Sleep(120 * time.Millisecond)

	// auto-hide fired without any new verification
	assert.Empty(t, g.Revealed())
	assert.Equal(t, 0, v.callCount())
}

func TestGateway_RevealTimerRestartsPerReveal(t *testing.T) {
	v := &fakeVerifier{secret: "pw"}
	g := newGateway(v, Options{RevealFor: 80 * time.Millisecond}, nil)

	g.Reveal("cred-1")
	time.Sleep(50 * time.Millisecond)
	g.Reveal("cred-1") // re-reveal restarts the timer
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"cred-1"}, g.Revealed())

	time.Sleep(70 * time.Millisecond)
	assert.Empty(t, g.Revealed())
}

func TestGateway_ManualHide(t *testing.T) {
	g := newGateway(&fakeVerifier{secret: "pw"}, Options{}, nil)

	g.Reveal("a")
	g.Reveal("b")
	g.Hide("a")

	assert.Equal(t, []string{"b"}, g.Revealed())
}
