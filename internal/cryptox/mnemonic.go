package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/crypto/hkdf"
)

// MnemonicLength is the number of words in a recovery phrase. With a
// 2048-word dictionary each word carries 11 bits, for 176 bits of entropy.
const MnemonicLength = 16

const (
	mnemonicSaltLabel = "lockbox-mnemonic-v1"
	mnemonicInfoLabel = "vault export key"
)

var wordIndexOnce sync.Once
var wordIndex map[string]struct{}

func dictionary() []string {
	return wordlists.English
}

func dictionaryIndex() map[string]struct{} {
	wordIndexOnce.Do(func() {
		words := dictionary()
		wordIndex = make(map[string]struct{}, len(words))
		for _, w := range words {
			wordIndex[w] = struct{}{}
		}
	})
	return wordIndex
}

// GenerateMnemonic draws 16 independent uniform indices into the 2048-word
// dictionary. Two random bytes per draw are reduced modulo 2048; since
// 65536 is a multiple of 2048 the reduction introduces no bias. Word reuse
// across positions is allowed.
func GenerateMnemonic() ([]string, error) {
	words := dictionary()
	phrase := make([]string, MnemonicLength)

	buf := make([]byte, 2)
	for i := range phrase {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("reading random bytes: %w", err)
		}
		idx := int(binary.BigEndian.Uint16(buf)) % len(words)
		phrase[i] = words[idx]
	}
	return phrase, nil
}

// canonicalMnemonic lowercases and trims every word. This is the single
// normalization applied before dictionary lookup and key derivation.
func canonicalMnemonic(phrase []string) []string {
	out := make([]string, len(phrase))
	for i, w := range phrase {
		out[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return out
}

// ValidateMnemonic reports whether phrase has exactly 16 entries, each of
// which is a dictionary word. No partial matching.
func ValidateMnemonic(phrase []string) bool {
	if len(phrase) != MnemonicLength {
		return false
	}
	idx := dictionaryIndex()
	for _, w := range canonicalMnemonic(phrase) {
		if _, ok := idx[w]; !ok {
			return false
		}
	}
	return true
}

// MnemonicKey deterministically derives the export/import key from a phrase:
// the canonical phrase is joined with single spaces and stretched through
// HKDF-SHA256 under fixed labels. The same phrase always yields the same
// key, which is what makes exports portable across processes.
func MnemonicKey(phrase []string) ([]byte, error) {
	if !ValidateMnemonic(phrase) {
		return nil, common.ErrInvalidMnemonic
	}

	joined := []byte(strings.Join(canonicalMnemonic(phrase), " "))
	defer Wipe(joined)

	r := hkdf.New(sha256.New, joined, []byte(mnemonicSaltLabel), []byte(mnemonicInfoLabel))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyDerivation, err)
	}
	return key, nil
}

// EncryptWithMnemonic seals plaintext under the key derived from phrase.
// The blob still carries a fresh random salt so the on-disk format stays
// identical to secret-encrypted blobs; the salt plays no role in mnemonic
// key derivation.
func EncryptWithMnemonic(plaintext []byte, phrase []string) (*EncryptedBlob, error) {
	key, err := MnemonicKey(phrase)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	return sealWithKey(plaintext, key, salt)
}

// DecryptWithMnemonic opens a blob sealed by EncryptWithMnemonic. A wrong
// phrase fails exactly like tampered data, with common.ErrDecryption.
func DecryptWithMnemonic(blob *EncryptedBlob, phrase []string) ([]byte, error) {
	if blob == nil {
		return nil, common.ErrDecryption
	}
	key, err := MnemonicKey(phrase)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	return openWithKey(blob, key)
}
