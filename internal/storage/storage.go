// Package storage implements the vault's persistence collaborator: a small
// key/value contract for the serialized encrypted blob and the user profile,
// with sqlite and bbolt backends.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Profile is the persisted, non-secret account record: identity fields plus
// the dedicated auth salt and the one-way verifier used for master-secret
// checks. The master secret itself is never stored.
type Profile struct {
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	AuthSalt  []byte    `json:"auth_salt"`
	Verifier  []byte    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract the mediator depends on.
//
// LoadBlob returning ("", nil) means "no vault yet" and is distinct from a
// deserialization failure on a non-empty value; the same convention applies
// to LoadProfile returning (nil, nil).
type Store interface {
	SaveBlob(ctx context.Context, serialized string) error
	LoadBlob(ctx context.Context) (string, error)
	SaveProfile(ctx context.Context, p *Profile) error
	LoadProfile(ctx context.Context) (*Profile, error)
	ClearAll(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Open constructs a Store for the configured backend and path.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	case BackendBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
