// Package handler is the messaging surface consumed by the UI collaborator:
// request/response envelopes keyed by operation name, dispatched through a
// flat command table that carries each operation's required-field contract.
// Handlers never leak typed internal errors across this boundary; every
// outcome is a {success, error} envelope.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/cryptox"
	"github.com/dmitrijs2005/lockbox/internal/gateway"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/dmitrijs2005/lockbox/internal/session"
	"github.com/dmitrijs2005/lockbox/internal/vault"
)

// Request is an inbound envelope.
type Request struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the outbound envelope. Error is a user-presentable message;
// internal error detail stays in the logs.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type fields map[string]json.RawMessage

type handlerFunc func(ctx context.Context, f fields) (any, error)

// command binds an operation to its required payload fields.
type command struct {
	required []string
	fn       handlerFunc
}

// Handler wires the mediator, the verification gateway and the session
// manager behind the envelope protocol.
type Handler struct {
	vault    *vault.Service
	gate     *gateway.Gateway
	sessions *session.Manager
	log      logging.Logger
	commands map[string]command
}

func New(v *vault.Service, g *gateway.Gateway, s *session.Manager, log logging.Logger) *Handler {
	h := &Handler{vault: v, gate: g, sessions: s, log: log}
	h.commands = map[string]command{
		"register":    {required: []string{"secret"}, fn: h.register},
		"login":       {required: []string{"secret"}, fn: h.login},
		"logout":      {fn: h.logout},
		"session.get": {fn: h.sessionGet},

		"credentials.list":   {fn: h.credentialsList},
		"credentials.unlock": {required: []string{"secret"}, fn: h.credentialsUnlock},
		"credentials.search": {required: []string{"query"}, fn: h.credentialsSearch},

		"credential.save":     {required: []string{"url", "username", "password", "secret"}, fn: h.credentialSave},
		"credential.update":   {required: []string{"id", "url", "username", "password", "secret"}, fn: h.credentialUpdate},
		"credential.delete":   {required: []string{"id", "secret"}, fn: h.credentialDelete},
		"credential.password": {required: []string{"id"}, fn: h.credentialPassword},
		"credential.hide":     {required: []string{"id"}, fn: h.credentialHide},

		"credentials.revealed": {fn: h.credentialsRevealed},

		"verify":        {required: []string{"secret"}, fn: h.verify},
		"verify.cancel": {fn: h.verifyCancel},

		"mnemonic.generate": {fn: h.mnemonicGenerate},
		"password.generate": {fn: h.passwordGenerate},
		"export":            {required: []string{"secret", "mnemonic"}, fn: h.export},
		"import":            {required: []string{"payload", "mnemonic", "secret"}, fn: h.import_},

		"vault.reset": {fn: h.vaultReset},
	}
	return h
}

// Handle dispatches a request through the command table. It never panics
// outward and never returns a raw internal error string for typed failures.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	cmd, ok := h.commands[req.Op]
	if !ok {
		return failure(fmt.Sprintf("unknown operation %q", req.Op))
	}

	f := fields{}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &f); err != nil {
			return failure("malformed payload")
		}
	}
	for _, name := range cmd.required {
		if raw, ok := f[name]; !ok || string(raw) == "null" {
			return failure(fmt.Sprintf("missing field %q", name))
		}
	}

	data, err := cmd.fn(ctx, f)
	if err != nil {
		return h.mapError(ctx, req.Op, err)
	}

	resp := Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.log.Error(ctx, "marshalling response", "op", req.Op, "error", err)
			return failure("internal error")
		}
		resp.Data = raw
	}
	return resp
}

func failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

// mapError translates typed errors into user-presentable envelope messages.
// Key derivation and decryption failures are deliberately indistinguishable
// from a wrong master secret.
func (h *Handler) mapError(ctx context.Context, op string, err error) Response {
	switch {
	case errors.Is(err, common.ErrLockedOut):
		return failure(err.Error())
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrKeyDerivation),
		errors.Is(err, common.ErrDecryption):
		if errors.Is(err, common.ErrUnauthorized) && err.Error() != common.ErrUnauthorized.Error() {
			// keep the "N attempts remaining" detail from the gateway
			return failure(err.Error())
		}
		return failure("invalid master secret")
	case errors.Is(err, common.ErrNoSession):
		return failure("not logged in")
	case errors.Is(err, common.ErrNoVault):
		return failure("vault not initialized")
	case errors.Is(err, common.ErrVaultExists):
		return failure("vault already initialized")
	case errors.Is(err, common.ErrNotFound):
		return failure("credential not found")
	case errors.Is(err, common.ErrInvalidFormat):
		return failure("corrupted or invalid data")
	case errors.Is(err, common.ErrInvalidMnemonic):
		return failure("invalid recovery phrase")
	case errors.Is(err, common.ErrSessionExists):
		return failure("already logged in")
	default:
		h.log.Error(ctx, "operation failed", "op", op, "error", err)
		return failure("internal error")
	}
}

func (f fields) str(name string) string {
	var s string
	if raw, ok := f[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func (f fields) strs(name string) []string {
	var s []string
	if raw, ok := f[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// stepUp runs fn behind the verification gateway: a live lockout rejects
// before any verification, otherwise the supplied secret is submitted and
// fn runs only on a successful check.
func (h *Handler) stepUp(ctx context.Context, secret string, fn func() (any, error)) (any, error) {
	if d, remaining := h.gate.Begin(); d == gateway.DecisionLocked {
		return nil, fmt.Errorf("%w: retry in %s", common.ErrLockedOut, remaining.Round(time.Second))
	}
	if err := h.gate.Submit(ctx, secret); err != nil {
		return nil, err
	}
	return fn()
}

func (h *Handler) register(ctx context.Context, f fields) (any, error) {
	return h.vault.Register(ctx, f.str("secret"))
}

func (h *Handler) login(ctx context.Context, f fields) (any, error) {
	return h.vault.Login(ctx, f.str("secret"))
}

func (h *Handler) logout(ctx context.Context, f fields) (any, error) {
	for _, id := range h.gate.Revealed() {
		h.gate.Hide(id)
	}
	h.gate.Cancel()
	return nil, h.vault.Logout(ctx)
}

func (h *Handler) sessionGet(ctx context.Context, f fields) (any, error) {
	return h.sessions.Get(), nil
}

func (h *Handler) credentialsList(ctx context.Context, f fields) (any, error) {
	res, err := h.vault.Credentials()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) credentialsUnlock(ctx context.Context, f fields) (any, error) {
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		return h.vault.CredentialsWithSecret(ctx, f.str("secret"))
	})
}

func (h *Handler) credentialsSearch(ctx context.Context, f fields) (any, error) {
	if secret := f.str("secret"); secret != "" {
		return h.stepUp(ctx, secret, func() (any, error) {
			return h.vault.SearchWithSecret(ctx, f.str("query"), secret)
		})
	}
	return h.vault.Search(f.str("query"))
}

func (h *Handler) credentialSave(ctx context.Context, f fields) (any, error) {
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		return h.vault.SaveCredential(ctx, f.str("url"), f.str("username"), f.str("password"), f.str("secret"))
	})
}

func (h *Handler) credentialUpdate(ctx context.Context, f fields) (any, error) {
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		cred := vault.Credential{
			ID:       f.str("id"),
			URL:      f.str("url"),
			Username: f.str("username"),
			Password: f.str("password"),
		}
		return nil, h.vault.UpdateCredential(ctx, cred, f.str("secret"))
	})
}

func (h *Handler) credentialDelete(ctx context.Context, f fields) (any, error) {
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		h.gate.Hide(f.str("id"))
		return nil, h.vault.DeleteCredential(ctx, f.str("id"), f.str("secret"))
	})
}

// credentialPassword reveals a single plaintext password. Inside the grace
// window it is served from the cache without re-prompting; otherwise the
// payload must carry the master secret.
func (h *Handler) credentialPassword(ctx context.Context, f fields) (any, error) {
	id := f.str("id")

	d, remaining := h.gate.Begin()
	switch d {
	case gateway.DecisionLocked:
		return nil, fmt.Errorf("%w: retry in %s", common.ErrLockedOut, remaining.Round(time.Second))
	case gateway.DecisionProceed:
		pw, err := h.vault.CachedPassword(id)
		if err == nil {
			h.gate.Reveal(id)
			return map[string]string{"password": pw}, nil
		}
		if !errors.Is(err, common.ErrUnauthorized) {
			return nil, err
		}
		// cache went stale inside the grace window; fall through to the
		// secret-gated path
	}

	secret := f.str("secret")
	if secret == "" {
		h.gate.Cancel()
		return nil, fmt.Errorf("%w: verification required", common.ErrUnauthorized)
	}
	if err := h.gate.Submit(ctx, secret); err != nil {
		return nil, err
	}

	pw, err := h.vault.Password(ctx, id, secret)
	if err != nil {
		return nil, err
	}
	h.gate.Reveal(id)
	return map[string]string{"password": pw}, nil
}

func (h *Handler) credentialHide(ctx context.Context, f fields) (any, error) {
	h.gate.Hide(f.str("id"))
	return nil, nil
}

func (h *Handler) credentialsRevealed(ctx context.Context, f fields) (any, error) {
	return h.gate.Revealed(), nil
}

func (h *Handler) verify(ctx context.Context, f fields) (any, error) {
	if d, remaining := h.gate.Begin(); d == gateway.DecisionLocked {
		return nil, fmt.Errorf("%w: retry in %s", common.ErrLockedOut, remaining.Round(time.Second))
	}
	return nil, h.gate.Submit(ctx, f.str("secret"))
}

func (h *Handler) verifyCancel(ctx context.Context, f fields) (any, error) {
	h.gate.Cancel()
	return nil, nil
}

func (h *Handler) mnemonicGenerate(ctx context.Context, f fields) (any, error) {
	phrase, err := cryptox.GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	return map[string][]string{"mnemonic": phrase}, nil
}

func (h *Handler) passwordGenerate(ctx context.Context, f fields) (any, error) {
	length := 16
	if raw, ok := f["length"]; ok {
		_ = json.Unmarshal(raw, &length)
	}
	pw, err := cryptox.GeneratePassword(length)
	if err != nil {
		return nil, err
	}
	return map[string]string{"password": pw}, nil
}

func (h *Handler) export(ctx context.Context, f fields) (any, error) {
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		return h.vault.Export(ctx, f.str("secret"), f.strs("mnemonic"))
	})
}

func (h *Handler) import_(ctx context.Context, f fields) (any, error) {
	payload, err := vault.ParseExport(f["payload"])
	if err != nil {
		return nil, err
	}
	return h.stepUp(ctx, f.str("secret"), func() (any, error) {
		n, err := h.vault.Import(ctx, payload, f.strs("mnemonic"), f.str("secret"))
		if err != nil {
			return nil, err
		}
		return map[string]int{"imported": n}, nil
	})
}

func (h *Handler) vaultReset(ctx context.Context, f fields) (any, error) {
	for _, id := range h.gate.Revealed() {
		h.gate.Hide(id)
	}
	return nil, h.vault.Reset(ctx)
}
