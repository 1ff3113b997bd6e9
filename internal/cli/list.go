package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lockbox/internal/vault"
)

func formatCredential(c vault.Credential) string {
	return fmt.Sprintf("%s  %-30s %-20s %s", c.ID, c.URL, c.Username, c.Password)
}

func (a *App) printResult(res vault.CacheResult) {
	if res.Status == vault.CacheEmpty || len(res.Entries) == 0 {
		printlnFn("No credentials")
		return
	}
	for _, c := range res.Entries {
		printlnFn(formatCredential(c))
	}
}

// List prints the collection with passwords masked. If the plaintext cache
// is cold, the master secret is prompted once to warm it.
func (a *App) List(ctx context.Context) error {
	data, ok := a.call(ctx, "credentials.list", nil)
	if !ok {
		return nil
	}

	var res vault.CacheResult
	if err := json.Unmarshal(data, &res); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}

	if res.Status == vault.CacheNeedsSecret {
		secret, ok := a.promptSecret()
		if !ok {
			return nil
		}
		data, ok := a.call(ctx, "credentials.unlock", map[string]any{"secret": secret})
		if !ok {
			return nil
		}
		var entries []vault.Credential
		if err := json.Unmarshal(data, &entries); err != nil {
			printlnFn("Error:", err.Error())
			return nil
		}
		for i := range entries {
			entries[i].Password = vault.PasswordMask
		}
		res = vault.CacheResult{Status: vault.CacheFresh, Entries: entries}
	}

	a.printResult(res)
	return nil
}

// Search matches the query against URLs and usernames, never passwords.
func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: search <query>")
		return nil
	}
	query := strings.Join(args, " ")

	data, ok := a.call(ctx, "credentials.search", map[string]any{"query": query})
	if !ok {
		return nil
	}

	var res vault.CacheResult
	if err := json.Unmarshal(data, &res); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	if res.Status == vault.CacheNeedsSecret {
		printlnFn("Vault is locked, run 'list' first")
		return nil
	}
	a.printResult(res)
	return nil
}
