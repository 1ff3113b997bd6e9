// Package identity abstracts the host identity service: it issues, validates
// and revokes login tokens. The vault core treats revocation failures as
// non-fatal; a local logout always proceeds.
package identity

import "context"

// UserInfo is the identity attached to a session.
type UserInfo struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

// Provider is the token surface the session manager depends on.
type Provider interface {
	// GetToken obtains a login token, optionally via an interactive flow.
	GetToken(ctx context.Context, interactive bool) (string, error)

	// ValidateToken checks a token and returns the identity it encodes.
	ValidateToken(ctx context.Context, token string) (*UserInfo, error)

	// RevokeToken invalidates a token. Errors are advisory: callers must
	// still complete their local logout.
	RevokeToken(ctx context.Context, token string) error
}
