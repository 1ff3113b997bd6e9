package cli

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/lockbox/internal/vault"
)

// promptCredential collects the fields of one credential. An empty password
// generates one.
func (a *App) promptCredential(ctx context.Context) (url, username, password string, ok bool) {
	var err error
	if url, err = GetSimpleText(a.reader, "Enter URL", a.out); err != nil {
		printlnFn("Error:", err.Error())
		return "", "", "", false
	}
	if username, err = GetSimpleText(a.reader, "Enter username", a.out); err != nil {
		printlnFn("Error:", err.Error())
		return "", "", "", false
	}
	if password, err = GetPassword("Enter password (empty to generate)", a.out); err != nil {
		printlnFn("Error:", err.Error())
		return "", "", "", false
	}
	if password == "" {
		data, callOK := a.call(ctx, "password.generate", nil)
		if !callOK {
			return "", "", "", false
		}
		var out map[string]string
		if err := json.Unmarshal(data, &out); err != nil {
			printlnFn("Error:", err.Error())
			return "", "", "", false
		}
		password = out["password"]
		printlnFn("Generated password:", password)
	}
	return url, username, password, true
}

func (a *App) Add(ctx context.Context) error {
	url, username, password, ok := a.promptCredential(ctx)
	if !ok {
		return nil
	}
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}

	data, ok := a.call(ctx, "credential.save", map[string]any{
		"url": url, "username": username, "password": password, "secret": secret,
	})
	if !ok {
		return nil
	}

	var saved vault.Credential
	if err := json.Unmarshal(data, &saved); err == nil {
		printlnFn("Saved as", saved.ID)
	}
	return nil
}

func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: update <id>")
		return nil
	}
	url, username, password, ok := a.promptCredential(ctx)
	if !ok {
		return nil
	}
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}

	if _, ok := a.call(ctx, "credential.update", map[string]any{
		"id": args[0], "url": url, "username": username, "password": password, "secret": secret,
	}); !ok {
		return nil
	}
	printlnFn("Updated")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: delete <id>")
		return nil
	}
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}
	if _, ok := a.call(ctx, "credential.delete", map[string]any{"id": args[0], "secret": secret}); !ok {
		return nil
	}
	printlnFn("Deleted")
	return nil
}

// Gen prints a random password without storing anything.
func (a *App) Gen(ctx context.Context) error {
	data, ok := a.call(ctx, "password.generate", nil)
	if !ok {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	printlnFn(out["password"])
	return nil
}
