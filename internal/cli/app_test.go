package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/gateway"
	"github.com/dmitrijs2005/lockbox/internal/handler"
	"github.com/dmitrijs2005/lockbox/internal/identity"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/dmitrijs2005/lockbox/internal/session"
	"github.com/dmitrijs2005/lockbox/internal/storage"
	"github.com/dmitrijs2005/lockbox/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (s *stubProvider) GetToken(ctx context.Context, interactive bool) (string, error) {
	return "token-1", nil
}

func (s *stubProvider) ValidateToken(ctx context.Context, token string) (*identity.UserInfo, error) {
	return &identity.UserInfo{Email: "a@b.com", ID: "user-1"}, nil
}

func (s *stubProvider) RevokeToken(ctx context.Context, token string) error { return nil }

// newTestApp builds an App over an in-memory vault with stubbed terminal
// input. Lines typed at text prompts come from input; every secret prompt
// returns secret; printed lines are collected into out.
func newTestApp(t *testing.T, input, secret string, out *[]string) *App {
	t.Helper()

	log := logging.NewTextLogger(io.Discard, slog.LevelError)
	provider := &stubProvider{}
	sessions := session.NewManager(provider, log, time.Minute)
	v := vault.New(storage.NewMemoryStore(), sessions, provider, log, time.Minute)
	g := gateway.New(v, log, gateway.Options{}, v.ClearCache)

	oldRead := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(secret), nil }
	t.Cleanup(func() { readPassword = oldRead })

	oldPrint := printlnFn
	printlnFn = func(args ...any) (int, error) {
		*out = append(*out, fmt.Sprintln(args...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = oldPrint })

	return &App{
		handler:  handler.New(v, g, sessions, log),
		sessions: sessions,
		reader:   bufio.NewReader(strings.NewReader(input)),
		out:      &bytes.Buffer{},
	}
}

const testSecret = "Sup3rSecret!"

func TestApp_RegisterAddListShow(t *testing.T) {
	ctx := context.Background()
	var out []string

	// Add prompts for URL and username; the password prompt is the stubbed
	// secret reader, so the stored password equals testSecret
	a := newTestApp(t, "https://a.com\nbob\n", testSecret, &out)

	require.NoError(t, a.Register(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, a.getStatus(), "a@b.com")

	require.NoError(t, a.Add(ctx))

	joined := strings.Join(out, "")
	require.Contains(t, joined, "Saved as")

	out = out[:0]
	require.NoError(t, a.List(ctx))
	joined = strings.Join(out, "")
	assert.Contains(t, joined, "https://a.com")
	assert.Contains(t, joined, "bob")
	assert.Contains(t, joined, vault.PasswordMask)
	assert.NotContains(t, joined, testSecret)
}

func TestApp_ShowRevealsWithinGrace(t *testing.T) {
	ctx := context.Background()
	var out []string

	a := newTestApp(t, "https://a.com\nbob\n", testSecret, &out)
	require.NoError(t, a.Register(ctx))
	require.NoError(t, a.Add(ctx))

	// dig the id out of the "Saved as <id>" line
	var id string
	for _, line := range out {
		if strings.HasPrefix(line, "Saved as ") {
			id = strings.TrimSpace(strings.TrimPrefix(line, "Saved as "))
		}
	}
	require.NotEmpty(t, id)

	out = out[:0]
	require.NoError(t, a.Show(ctx, []string{id}))
	joined := strings.Join(out, "")
	assert.Contains(t, joined, "Password: "+testSecret)
}

func TestApp_LogoutThenListFails(t *testing.T) {
	ctx := context.Background()
	var out []string

	a := newTestApp(t, "", testSecret, &out)
	require.NoError(t, a.Register(ctx))
	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())

	out = out[:0]
	require.NoError(t, a.List(ctx))
	assert.Contains(t, strings.Join(out, ""), "not logged in")
}
