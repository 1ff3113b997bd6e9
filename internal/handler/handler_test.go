package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/gateway"
	"github.com/dmitrijs2005/lockbox/internal/identity"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/dmitrijs2005/lockbox/internal/session"
	"github.com/dmitrijs2005/lockbox/internal/storage"
	"github.com/dmitrijs2005/lockbox/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (f *fakeProvider) GetToken(ctx context.Context, interactive bool) (string, error) {
	return "token-1", nil
}

func (f *fakeProvider) ValidateToken(ctx context.Context, token string) (*identity.UserInfo, error) {
	return &identity.UserInfo{Email: "a@b.com", ID: "user-1"}, nil
}

func (f *fakeProvider) RevokeToken(ctx context.Context, token string) error { return nil }

const testSecret = "Sup3rSecret!"

func newHandler(t *testing.T) *Handler {
	t.Helper()
	log := logging.NewTextLogger(io.Discard, slog.LevelError)
	provider := &fakeProvider{}
	sessions := session.NewManager(provider, log, time.Minute)
	v := vault.New(storage.NewMemoryStore(), sessions, provider, log, time.Minute)
	g := gateway.New(v, log, gateway.Options{}, v.ClearCache)
	return New(v, g, sessions, log)
}

func do(t *testing.T, h *Handler, op string, payload any) Response {
	t.Helper()
	req := Request{Op: op}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		req.Payload = raw
	}
	return h.Handle(context.Background(), req)
}

func registered(t *testing.T) *Handler {
	t.Helper()
	h := newHandler(t)
	resp := do(t, h, "register", map[string]any{"secret": testSecret})
	require.True(t, resp.Success, resp.Error)
	return h
}

func TestHandle_UnknownOp(t *testing.T) {
	h := newHandler(t)
	resp := do(t, h, "nope", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown operation")
}

func TestHandle_MissingRequiredField(t *testing.T) {
	h := newHandler(t)
	resp := do(t, h, "login", map[string]any{})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, `missing field "secret"`)
}

func TestHandle_MalformedPayload(t *testing.T) {
	h := newHandler(t)
	resp := h.Handle(context.Background(), Request{Op: "login", Payload: json.RawMessage(`[1,2]`)})
	assert.False(t, resp.Success)
	assert.Equal(t, "malformed payload", resp.Error)
}

func TestRegisterAndSessionGet(t *testing.T) {
	h := registered(t)

	resp := do(t, h, "session.get", nil)
	require.True(t, resp.Success)

	var view session.View
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "a@b.com", view.User.Email)
}

func TestRegister_Twice(t *testing.T) {
	h := registered(t)
	resp := do(t, h, "register", map[string]any{"secret": testSecret})
	assert.False(t, resp.Success)
	assert.Equal(t, "vault already initialized", resp.Error)
}

func TestLogin_WrongSecret(t *testing.T) {
	h := registered(t)
	require.True(t, do(t, h, "logout", nil).Success)

	resp := do(t, h, "login", map[string]any{"secret": "wrong"})
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid master secret", resp.Error)
}

func TestSaveAndList_Masked(t *testing.T) {
	h := registered(t)

	resp := do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	})
	require.True(t, resp.Success, resp.Error)

	var saved vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &saved))
	require.NotEmpty(t, saved.ID)

	resp = do(t, h, "credentials.list", nil)
	require.True(t, resp.Success, resp.Error)

	var res vault.CacheResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, vault.CacheFresh, res.Status)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, vault.PasswordMask, res.Entries[0].Password)
}

func TestCredentialPassword_GraceThenReveal(t *testing.T) {
	h := registered(t)

	resp := do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	})
	require.True(t, resp.Success, resp.Error)
	var saved vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &saved))

	// the save verified the secret, so the grace window is open and no
	// secret is needed to read the password
	resp = do(t, h, "credential.password", map[string]any{"id": saved.ID})
	require.True(t, resp.Success, resp.Error)

	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "p1", out["password"])

	resp = do(t, h, "credentials.revealed", nil)
	require.True(t, resp.Success)
	var ids []string
	require.NoError(t, json.Unmarshal(resp.Data, &ids))
	assert.Equal(t, []string{saved.ID}, ids)

	require.True(t, do(t, h, "credential.hide", map[string]any{"id": saved.ID}).Success)
	resp = do(t, h, "credentials.revealed", nil)
	require.True(t, resp.Success)
	ids = nil
	require.NoError(t, json.Unmarshal(resp.Data, &ids))
	assert.Empty(t, ids)
}

func TestCredentialPassword_OutsideGraceNeedsSecret(t *testing.T) {
	h := registered(t)

	resp := do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	})
	require.True(t, resp.Success, resp.Error)
	var saved vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &saved))

	h.gate.Cancel()
	h.vault.ClearCache()

	resp = do(t, h, "credential.password", map[string]any{"id": saved.ID})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "verification required")

	resp = do(t, h, "credential.password", map[string]any{"id": saved.ID, "secret": testSecret})
	require.True(t, resp.Success, resp.Error)
	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "p1", out["password"])
}

func TestVerify_CountdownAndLockout(t *testing.T) {
	h := registered(t)
	h.gate.Cancel()

	resp := do(t, h, "verify", map[string]any{"secret": "wrong"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "2 attempts remaining")

	resp = do(t, h, "verify", map[string]any{"secret": "wrong"})
	assert.Contains(t, resp.Error, "1 attempts remaining")

	resp = do(t, h, "verify", map[string]any{"secret": "wrong"})
	assert.False(t, resp.Success)

	// locked out: the good secret is rejected without being checked
	resp = do(t, h, "verify", map[string]any{"secret": testSecret})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "retry in")

	resp = do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "retry in")
}

func TestSearch_MaskedAndUnlocked(t *testing.T) {
	h := registered(t)

	for _, c := range []map[string]any{
		{"url": "https://mail.example.com", "username": "bob", "password": "p1", "secret": testSecret},
		{"url": "https://bank.example.com", "username": "alice", "password": "p2", "secret": testSecret},
	} {
		require.True(t, do(t, h, "credential.save", c).Success)
	}

	resp := do(t, h, "credentials.search", map[string]any{"query": "bank"})
	require.True(t, resp.Success, resp.Error)
	var res vault.CacheResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "alice", res.Entries[0].Username)
	assert.Equal(t, vault.PasswordMask, res.Entries[0].Password)

	resp = do(t, h, "credentials.search", map[string]any{"query": "bank", "secret": testSecret})
	require.True(t, resp.Success, resp.Error)
	var entries []vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].Password)
}

func TestMnemonicGenerate(t *testing.T) {
	h := newHandler(t)
	resp := do(t, h, "mnemonic.generate", nil)
	require.True(t, resp.Success, resp.Error)

	var out map[string][]string
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Len(t, out["mnemonic"], 16)
}

func TestExportImport_RoundTrip(t *testing.T) {
	h := registered(t)

	require.True(t, do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	}).Success)

	resp := do(t, h, "mnemonic.generate", nil)
	require.True(t, resp.Success)
	var gen map[string][]string
	require.NoError(t, json.Unmarshal(resp.Data, &gen))
	mnemonic := gen["mnemonic"]

	resp = do(t, h, "export", map[string]any{"secret": testSecret, "mnemonic": mnemonic})
	require.True(t, resp.Success, resp.Error)
	exported := resp.Data

	require.True(t, do(t, h, "vault.reset", nil).Success)
	require.True(t, do(t, h, "register", map[string]any{"secret": testSecret}).Success)

	resp = do(t, h, "import", map[string]any{
		"payload": json.RawMessage(exported), "mnemonic": mnemonic, "secret": testSecret,
	})
	require.True(t, resp.Success, resp.Error)

	var out map[string]int
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, 1, out["imported"])

	resp = do(t, h, "credentials.unlock", map[string]any{"secret": testSecret})
	require.True(t, resp.Success, resp.Error)
	var entries []vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].Password)
}

func TestLogout_ClearsRevealsAndSession(t *testing.T) {
	h := registered(t)

	resp := do(t, h, "credential.save", map[string]any{
		"url": "https://a.com", "username": "bob", "password": "p1", "secret": testSecret,
	})
	require.True(t, resp.Success)
	var saved vault.Credential
	require.NoError(t, json.Unmarshal(resp.Data, &saved))

	require.True(t, do(t, h, "credential.password", map[string]any{"id": saved.ID}).Success)
	require.True(t, do(t, h, "logout", nil).Success)

	resp = do(t, h, "credentials.revealed", nil)
	require.True(t, resp.Success)
	var ids []string
	require.NoError(t, json.Unmarshal(resp.Data, &ids))
	assert.Empty(t, ids)

	resp = do(t, h, "credentials.list", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "not logged in", resp.Error)
}
