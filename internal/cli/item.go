package cli

import (
	"context"
	"encoding/json"
	"strings"
)

// Show reveals the plaintext password for one credential. Inside the
// verification grace window no secret is needed; otherwise the user is
// prompted and the attempt counts against the lockout budget.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: show <id>")
		return nil
	}
	id := args[0]

	resp := a.rawCall(ctx, "credential.password", map[string]any{"id": id})
	if !resp.Success && strings.Contains(resp.Error, "verification required") {
		secret, ok := a.promptSecret()
		if !ok {
			return nil
		}
		resp = a.rawCall(ctx, "credential.password", map[string]any{"id": id, "secret": secret})
	}
	if !resp.Success {
		printlnFn("Error:", resp.Error)
		return nil
	}

	var out map[string]string
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	printlnFn("Password:", out["password"])
	printlnFn("(hides automatically; 'hide " + id + "' to hide now)")
	return nil
}

func (a *App) Hide(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: hide <id>")
		return nil
	}
	if _, ok := a.call(ctx, "credential.hide", map[string]any{"id": args[0]}); !ok {
		return nil
	}
	printlnFn("Hidden")
	return nil
}
