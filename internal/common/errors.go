// Package common defines shared constants and sentinel errors used across
// Lockbox components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/storage-level errors.
	ErrNotFound    = errors.New("not found")
	ErrNoVault     = errors.New("vault not initialized")
	ErrVaultExists = errors.New("vault already initialized")

	// Auth errors. ErrKeyDerivation and ErrDecryption are presented to the
	// user exactly like ErrUnauthorized: the system never reveals whether
	// the secret or the stored data was at fault.
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoSession     = errors.New("no active session")
	ErrKeyDerivation = errors.New("key derivation failed")
	ErrDecryption    = errors.New("decryption failed")

	// Validation / format errors (malformed stored or imported data).
	ErrInvalidFormat   = errors.New("invalid format")
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

	// Verification gateway errors.
	ErrLockedOut = errors.New("verification locked out")

	// Session lifecycle errors.
	ErrSessionExists = errors.New("session already active")
	ErrInvalidToken  = errors.New("invalid token")
)
