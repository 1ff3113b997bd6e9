package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/lockbox/internal/handler"
	"github.com/dmitrijs2005/lockbox/internal/session"
)

// App is the interactive client. All vault access goes through the request
// handler; the session manager is only consulted for the prompt status line.
type App struct {
	handler  *handler.Handler
	sessions *session.Manager
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(h *handler.Handler, sessions *session.Manager) *App {
	return &App{
		handler:  h,
		sessions: sessions,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	printlnFn("Lockbox (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

func (a *App) isLoggedIn() bool {
	return a.sessions.State() == session.StateActive
}

func (a *App) getStatus() string {
	view := a.sessions.Get()
	if view == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", view.User.Email)
}

// rawCall sends one request through the handler and returns the envelope
// untouched, for commands that need to react to specific failures.
func (a *App) rawCall(ctx context.Context, op string, payload any) handler.Response {
	req := handler.Request{Op: op}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return handler.Response{Success: false, Error: err.Error()}
		}
		req.Payload = raw
	}
	return a.handler.Handle(ctx, req)
}

// call sends one request through the handler. On failure the error message
// is printed and ok is false; commands treat that as "already reported".
func (a *App) call(ctx context.Context, op string, payload any) (json.RawMessage, bool) {
	resp := a.rawCall(ctx, op, payload)
	if !resp.Success {
		printlnFn("Error:", resp.Error)
		return nil, false
	}
	return resp.Data, true
}

func (a *App) promptSecret() (string, bool) {
	secret, err := GetPassword("Enter master secret", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return "", false
	}
	return secret, true
}
