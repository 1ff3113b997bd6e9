package cli

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/lockbox/internal/session"
)

func (a *App) Register(ctx context.Context) error {
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}
	confirm, err := GetPassword("Repeat master secret", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	if secret != confirm {
		printlnFn("Secrets do not match")
		return nil
	}

	data, ok := a.call(ctx, "register", map[string]any{"secret": secret})
	if !ok {
		return nil
	}

	var view session.View
	if err := json.Unmarshal(data, &view); err == nil {
		printlnFn("Vault created for", view.User.Email)
	}
	return nil
}

func (a *App) Login(ctx context.Context) error {
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}
	if _, ok := a.call(ctx, "login", map[string]any{"secret": secret}); !ok {
		return nil
	}
	printlnFn("Logged in")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if _, ok := a.call(ctx, "logout", nil); !ok {
		return nil
	}
	printlnFn("Logged out")
	return nil
}

// Reset wipes the vault file entirely. Irreversible, so it asks twice.
func (a *App) Reset(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "This deletes the whole vault. Type 'yes' to continue", a.out)
	if err != nil || answer != "yes" {
		printlnFn("Cancelled")
		return nil
	}
	if _, ok := a.call(ctx, "vault.reset", nil); !ok {
		return nil
	}
	printlnFn("Vault reset")
	return nil
}
