// Package cli provides the interactive Lockbox command-line client.
//
// It wires the request handler and session manager into an interactive REPL.
// Typical flow: log in (or register a new vault), manage credentials, and
// reveal passwords behind the step-up verification gateway.
//
// Key features:
//   - Register / Login / Logout against the local vault
//   - Add / Update / Delete credentials
//   - List / Show / Search entries (passwords masked by default)
//   - Export / Import the vault under a 16-word recovery phrase
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
