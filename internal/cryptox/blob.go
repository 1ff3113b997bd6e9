package cryptox

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/lockbox/internal/common"
)

// EncryptedBlob is the at-rest representation of the encrypted credential
// collection: AES-GCM ciphertext (tag included) plus the nonce and the salt
// the key was derived with. Both nonce and salt are freshly random on every
// encryption.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Salt       []byte `json:"salt"`
}

// Serialize renders the blob as a transportable string. Byte fields are
// base64-encoded by encoding/json.
func (b *EncryptedBlob) Serialize() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("serializing blob: %w", err)
	}
	return string(data), nil
}

// DeserializeBlob parses a string produced by Serialize. Malformed input is
// reported as common.ErrInvalidFormat, distinctly from decryption failures,
// so callers can tell "corrupted file" from "wrong secret" at this stage
// only.
func DeserializeBlob(s string) (*EncryptedBlob, error) {
	var b EncryptedBlob
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if len(b.Ciphertext) == 0 || len(b.Nonce) != NonceSize || len(b.Salt) != SaltSize {
		return nil, fmt.Errorf("%w: bad field lengths", common.ErrInvalidFormat)
	}
	return &b, nil
}
