// Package cryptox implements the vault's cryptographic primitives:
// authenticated encryption of the credential collection, password-based key
// derivation, and the mnemonic scheme used for export/import.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"runtime"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the length of the random salt bound to every derived key.
	SaltSize = 32
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12

	keySize = 32
)

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return b, nil
}

// GenerateSalt returns a fresh 32-byte random salt.
func GenerateSalt() ([]byte, error) {
	return randBytes(SaltSize)
}

// GenerateNonce returns a fresh 12-byte random nonce.
func GenerateNonce() ([]byte, error) {
	return randBytes(NonceSize)
}

// DeriveKey stretches secret into a 32-byte AES key bound to salt using
// argon2id. The same (secret, salt) pair always yields the same key.
func DeriveKey(secret string, salt []byte) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty secret: %w", common.ErrKeyDerivation)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes: %w", SaltSize, common.ErrKeyDerivation)
	}
	return argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, keySize), nil
}

// MakeVerifier returns a one-way digest of a derived key, suitable for
// constant-time master-secret verification. The raw key never leaves the
// caller.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Wipe overwrites b with zeros. Best-effort hygiene for keys and plaintext
// buffers that have reached their last use; runtime.KeepAlive prevents the
// loop from being optimized away.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealWithKey encrypts plaintext under key with a fresh nonce and wraps the
// result, together with salt, into an EncryptedBlob.
func sealWithKey(plaintext, key, salt []byte) (*EncryptedBlob, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return &EncryptedBlob{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}

// openWithKey decrypts blob under key. Any authentication or format failure
// is reported as common.ErrDecryption: the caller must not be able to tell
// a wrong secret from tampered data.
func openWithKey(blob *EncryptedBlob, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if len(blob.Nonce) != NonceSize {
		return nil, common.ErrDecryption
	}
	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}

// EncryptWithSecret encrypts plaintext under a key derived from secret and a
// fresh random salt. Every call produces a different blob, even for identical
// inputs.
func EncryptWithSecret(plaintext []byte, secret string) (*EncryptedBlob, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	return sealWithKey(plaintext, key, salt)
}

// DecryptWithSecret re-derives the key from blob.Salt and secret, decrypts
// and verifies the authentication tag. Returns common.ErrDecryption on any
// failure.
func DecryptWithSecret(blob *EncryptedBlob, secret string) ([]byte, error) {
	if blob == nil {
		return nil, common.ErrDecryption
	}
	key, err := DeriveKey(secret, blob.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	defer Wipe(key)

	return openWithKey(blob, key)
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*-_=+"

// GeneratePassword returns a random password of the given length drawn from
// a fixed alphabet. Lengths below 8 are rounded up to 8.
func GeneratePassword(length int) (string, error) {
	if length < 8 {
		length = 8
	}
	raw, err := randBytes(length)
	if err != nil {
		return "", err
	}
	defer Wipe(raw)

	out := make([]byte, length)
	for i, b := range raw {
		out[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(out), nil
}
