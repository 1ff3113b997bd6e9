// Package vault implements the credential store mediator: it owns the
// in-memory plaintext cache, verifies the master secret for every gated
// operation, and applies cryptox to persist and load the encrypted
// collection through the storage collaborator.
package vault

import "time"

// PasswordMask replaces passwords in all cache-served reads.
const PasswordMask = "********"

// Credential is a single stored website credential. ID is generated once and
// immutable; updates replace the whole record.
type Credential struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Credential) masked() Credential {
	c.Password = PasswordMask
	return c
}

// CacheStatus distinguishes "vault is empty" from "cache is stale, supply
// the master secret". Conflating both with an empty list would leave the
// caller guessing.
type CacheStatus string

const (
	// CacheEmpty: the cache is fresh and the vault holds no credentials.
	CacheEmpty CacheStatus = "empty"
	// CacheFresh: the cache is within its TTL; Entries carries masked data.
	CacheFresh CacheStatus = "fresh"
	// CacheNeedsSecret: the cache expired or was never filled; a
	// secret-gated load is required.
	CacheNeedsSecret CacheStatus = "needs_secret"
)

// CacheResult is the outcome of a cache-served read.
type CacheResult struct {
	Status  CacheStatus  `json:"status"`
	Entries []Credential `json:"entries"`
}
