package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Hide(ctx context.Context, args []string) error
	Add(ctx context.Context) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Gen(ctx context.Context) error
	Export(ctx context.Context) error
	Import(ctx context.Context) error
	Reset(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the Lockbox CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("lockbox %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ist, add, update <id>, delete <id>, show <id>, hide <id>, search <query>, gen, export, import, logout, reset, exit")
			} else {
				printlnFn("Available commands: register, login, reset, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "add":
			_ = a.Add(ctx)

		case "update":
			_ = a.Update(ctx, args)

		case "delete":
			_ = a.Delete(ctx, args)

		case "show":
			_ = a.Show(ctx, args)

		case "hide":
			_ = a.Hide(ctx, args)

		case "search":
			_ = a.Search(ctx, args)

		case "gen":
			_ = a.Gen(ctx)

		case "export":
			_ = a.Export(ctx)

		case "import":
			_ = a.Import(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
