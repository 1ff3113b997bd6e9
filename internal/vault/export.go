package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/cryptox"
)

const (
	// ExportType marks a Lockbox export envelope.
	ExportType = "lockbox-vault-export"
	// ExportVersion is the current envelope version.
	ExportVersion = 1
)

// ExportPayload is the portable backup envelope: the credential collection
// encrypted under the 16-word mnemonic, never under the master secret.
type ExportPayload struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Type       string    `json:"type"`
	Data       string    `json:"data"`
}

// Export decrypts the collection under the master secret and re-encrypts it
// under the mnemonic key for transport.
func (s *Service) Export(ctx context.Context, secret string, mnemonic []string) (*ExportPayload, error) {
	if !cryptox.ValidateMnemonic(mnemonic) {
		return nil, common.ErrInvalidMnemonic
	}
	if err := s.VerifyMasterSecret(secret); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshalling collection: %w", err)
	}
	defer cryptox.Wipe(plaintext)

	blob, err := cryptox.EncryptWithMnemonic(plaintext, mnemonic)
	if err != nil {
		return nil, err
	}
	data, err := blob.Serialize()
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "vault exported", "entries", len(entries))
	return &ExportPayload{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Type:       ExportType,
		Data:       data,
	}, nil
}

// ParseExport decodes raw bytes into an export envelope. A mismatched
// marker or version is a hard format error, raised before any decryption
// is attempted.
func ParseExport(raw []byte) (*ExportPayload, error) {
	var p ExportPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if p.Type != ExportType {
		return nil, fmt.Errorf("%w: unexpected export type %q", common.ErrInvalidFormat, p.Type)
	}
	if p.Version != ExportVersion {
		return nil, fmt.Errorf("%w: unsupported export version %d", common.ErrInvalidFormat, p.Version)
	}
	return &p, nil
}

// Import decrypts an export envelope with the matching mnemonic and replaces
// the persisted collection, re-encrypted under the current master secret.
// Returns the number of imported credentials.
func (s *Service) Import(ctx context.Context, payload *ExportPayload, mnemonic []string, secret string) (int, error) {
	if payload == nil || payload.Type != ExportType || payload.Version != ExportVersion {
		return 0, common.ErrInvalidFormat
	}
	if err := s.VerifyMasterSecret(secret); err != nil {
		return 0, err
	}

	blob, err := cryptox.DeserializeBlob(payload.Data)
	if err != nil {
		return 0, err
	}
	plaintext, err := cryptox.DecryptWithMnemonic(blob, mnemonic)
	if err != nil {
		return 0, err
	}
	defer cryptox.Wipe(plaintext)

	var entries []Credential
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if entries == nil {
		entries = []Credential{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistCollectionLocked(ctx, entries, secret); err != nil {
		return 0, err
	}
	s.refreshCacheLocked(entries)

	s.log.Info(ctx, "vault imported", "entries", len(entries))
	return len(entries), nil
}
