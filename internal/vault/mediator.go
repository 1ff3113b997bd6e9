package vault

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/cryptox"
	"github.com/dmitrijs2005/lockbox/internal/identity"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/dmitrijs2005/lockbox/internal/session"
	"github.com/dmitrijs2005/lockbox/internal/storage"
	"github.com/google/uuid"
)

// DefaultCacheTTL bounds how long decrypted credentials stay usable in
// memory after the last secret-gated load.
const DefaultCacheTTL = 5 * time.Minute

// Service mediates every read and write of the credential collection.
// A single mutex serializes the full read–modify–reencrypt–persist cycle of
// mutating operations, so two mutations can never interleave.
type Service struct {
	mu       sync.Mutex
	store    storage.Store
	sessions *session.Manager
	provider identity.Provider
	log      logging.Logger

	cacheTTL time.Duration
	cache    []Credential
	cacheAt  time.Time
}

// New builds a mediator. ttl <= 0 selects DefaultCacheTTL.
func New(store storage.Store, sessions *session.Manager, provider identity.Provider, log logging.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store:    store,
		sessions: sessions,
		provider: provider,
		log:      log,
		cacheTTL: ttl,
	}
}

// Register performs first-run vault creation: obtains an identity token,
// persists the profile (auth salt + verifier) and an empty encrypted
// collection, and opens a session. Fails with common.ErrVaultExists when a
// profile is already present.
func (s *Service) Register(ctx context.Context, secret string) (*session.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.LoadProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if existing != nil {
		return nil, common.ErrVaultExists
	}

	token, err := s.provider.GetToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}
	user, err := s.provider.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}

	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key, err := cryptox.DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	verifier := cryptox.MakeVerifier(key)
	cryptox.Wipe(key)

	profile := &storage.Profile{
		Email:     user.Email,
		UserID:    user.ID,
		AuthSalt:  salt,
		Verifier:  verifier,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	if err := s.persistCollectionLocked(ctx, []Credential{}, secret); err != nil {
		return nil, err
	}

	view, err := s.sessions.Create(token, *user, verifier, salt)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "vault created", "user", user.Email)
	return view, nil
}

// Login verifies the master secret against the persisted profile and opens
// a session. A missing profile means the vault was never created.
func (s *Service) Login(ctx context.Context, secret string) (*session.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.store.LoadProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, common.ErrNoVault
	}

	key, err := cryptox.DeriveKey(secret, profile.AuthSalt)
	if err != nil {
		return nil, common.ErrUnauthorized
	}
	candidate := cryptox.MakeVerifier(key)
	cryptox.Wipe(key)

	if subtle.ConstantTimeCompare(profile.Verifier, candidate) != 1 {
		return nil, common.ErrUnauthorized
	}

	token, err := s.provider.GetToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}
	user := identity.UserInfo{Email: profile.Email, ID: profile.UserID}

	view, err := s.sessions.Create(token, user, profile.Verifier, profile.AuthSalt)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "logged in", "user", user.Email)
	return view, nil
}

// Logout ends the session and force-clears the plaintext cache.
func (s *Service) Logout(ctx context.Context) error {
	s.ClearCache()
	return s.sessions.Logout(ctx)
}

// VerifyMasterSecret is the gateway's verification primitive. It requires an
// active session and counts as activity on success.
func (s *Service) VerifyMasterSecret(secret string) error {
	if !s.sessions.IsValid() {
		return common.ErrNoSession
	}
	if !s.sessions.ValidateMasterSecret(secret) {
		return common.ErrUnauthorized
	}
	s.sessions.UpdateActivity()
	return nil
}

// ClearCache discards the plaintext cache. Invoked on logout, lockout and
// session expiry.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.cacheAt = time.Time{}
}

func (s *Service) cacheFreshLocked() bool {
	return !s.cacheAt.IsZero() && time.Since(s.cacheAt) < s.cacheTTL
}

func (s *Service) refreshCacheLocked(entries []Credential) {
	s.cache = append([]Credential(nil), entries...)
	s.cacheAt = time.Now()
}

// Credentials returns the cache-served, masked view of the collection.
// Without a fresh cache the mediator cannot decrypt anything, so it answers
// CacheNeedsSecret instead of fabricating an empty list.
func (s *Service) Credentials() (CacheResult, error) {
	if !s.sessions.IsValid() {
		return CacheResult{}, common.ErrNoSession
	}
	s.sessions.UpdateActivity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cacheFreshLocked() {
		return CacheResult{Status: CacheNeedsSecret}, nil
	}
	if len(s.cache) == 0 {
		return CacheResult{Status: CacheEmpty, Entries: []Credential{}}, nil
	}

	masked := make([]Credential, len(s.cache))
	for i, c := range s.cache {
		masked[i] = c.masked()
	}
	return CacheResult{Status: CacheFresh, Entries: masked}, nil
}

// CredentialsWithSecret verifies the secret, decrypts the persisted blob,
// refreshes the cache and returns unmasked entries.
func (s *Service) CredentialsWithSecret(ctx context.Context, secret string) ([]Credential, error) {
	if err := s.VerifyMasterSecret(secret); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return nil, err
	}
	s.refreshCacheLocked(entries)
	return entries, nil
}

// SaveCredential appends a new credential and re-encrypts the whole
// collection. Mutations are always whole-collection re-encryption with a
// fresh salt and nonce; there is no incremental ciphertext update.
func (s *Service) SaveCredential(ctx context.Context, url, username, password, secret string) (*Credential, error) {
	if err := s.VerifyMasterSecret(secret); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cred := Credential{
		ID:        uuid.NewString(),
		URL:       url,
		Username:  username,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entries = append(entries, cred)

	if err := s.persistCollectionLocked(ctx, entries, secret); err != nil {
		return nil, err
	}
	s.refreshCacheLocked(entries)

	s.log.Info(ctx, "credential saved", "id", cred.ID, "url", cred.URL)
	return &cred, nil
}

// UpdateCredential replaces the stored record with the given one. The ID
// and CreatedAt of the original are preserved.
func (s *Service) UpdateCredential(ctx context.Context, cred Credential, secret string) error {
	if err := s.VerifyMasterSecret(secret); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return err
	}

	found := false
	for i := range entries {
		if entries[i].ID == cred.ID {
			cred.CreatedAt = entries[i].CreatedAt
			cred.UpdatedAt = time.Now()
			entries[i] = cred
			found = true
			break
		}
	}
	if !found {
		return common.ErrNotFound
	}

	if err := s.persistCollectionLocked(ctx, entries, secret); err != nil {
		return err
	}
	s.refreshCacheLocked(entries)

	s.log.Info(ctx, "credential updated", "id", cred.ID)
	return nil
}

// DeleteCredential removes a record by id and re-encrypts the rest.
func (s *Service) DeleteCredential(ctx context.Context, id, secret string) error {
	if err := s.VerifyMasterSecret(secret); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, c := range entries {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return common.ErrNotFound
	}

	if err := s.persistCollectionLocked(ctx, kept, secret); err != nil {
		return err
	}
	s.refreshCacheLocked(kept)

	s.log.Info(ctx, "credential deleted", "id", id)
	return nil
}

// Password returns the single plaintext password for id after verifying the
// secret. The freshly decrypted collection also refreshes the cache.
func (s *Service) Password(ctx context.Context, id, secret string) (string, error) {
	if err := s.VerifyMasterSecret(secret); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadCollectionLocked(ctx, secret)
	if err != nil {
		return "", err
	}
	s.refreshCacheLocked(entries)

	for _, c := range entries {
		if c.ID == id {
			return c.Password, nil
		}
	}
	return "", common.ErrNotFound
}

// CachedPassword serves a plaintext password from the fresh cache, for
// reveals inside the step-up grace window. A stale cache answers
// common.ErrUnauthorized so the caller re-prompts for the secret.
func (s *Service) CachedPassword(id string) (string, error) {
	if !s.sessions.IsValid() {
		return "", common.ErrNoSession
	}
	s.sessions.UpdateActivity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cacheFreshLocked() {
		return "", common.ErrUnauthorized
	}
	for _, c := range s.cache {
		if c.ID == id {
			return c.Password, nil
		}
	}
	return "", common.ErrNotFound
}

// matches reports a case-insensitive substring match against URL and
// username. Passwords are never searched.
func matches(c Credential, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.URL), q) ||
		strings.Contains(strings.ToLower(c.Username), q)
}

// Search filters the cache-served masked view.
func (s *Service) Search(query string) (CacheResult, error) {
	res, err := s.Credentials()
	if err != nil || res.Status != CacheFresh {
		return res, err
	}

	filtered := make([]Credential, 0, len(res.Entries))
	for _, c := range res.Entries {
		if matches(c, query) {
			filtered = append(filtered, c)
		}
	}
	res.Entries = filtered
	if len(filtered) == 0 {
		res.Status = CacheEmpty
	}
	return res, nil
}

// SearchWithSecret filters the decrypted collection with the same matching
// semantics as Search, returning unmasked entries.
func (s *Service) SearchWithSecret(ctx context.Context, query, secret string) ([]Credential, error) {
	entries, err := s.CredentialsWithSecret(ctx, secret)
	if err != nil {
		return nil, err
	}

	filtered := make([]Credential, 0, len(entries))
	for _, c := range entries {
		if matches(c, query) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Reset wipes all persisted vault state and ends the session.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	if err := s.store.ClearAll(ctx); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clearing storage: %w", err)
	}
	s.cache = nil
	s.cacheAt = time.Time{}
	s.mu.Unlock()

	s.log.Warn(ctx, "vault wiped")
	return s.sessions.Logout(ctx)
}

// loadCollectionLocked loads and decrypts the persisted collection. An
// absent blob means "no vault content yet" and yields an empty collection,
// distinct from a deserialization failure on a non-empty value.
func (s *Service) loadCollectionLocked(ctx context.Context, secret string) ([]Credential, error) {
	serialized, err := s.store.LoadBlob(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading blob: %w", err)
	}
	if serialized == "" {
		return []Credential{}, nil
	}

	blob, err := cryptox.DeserializeBlob(serialized)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptox.DecryptWithSecret(blob, secret)
	if err != nil {
		return nil, err
	}
	defer cryptox.Wipe(plaintext)

	var entries []Credential
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if entries == nil {
		entries = []Credential{}
	}
	return entries, nil
}

// persistCollectionLocked re-encrypts the whole collection under secret with
// a fresh salt and nonce and stores the serialized blob.
func (s *Service) persistCollectionLocked(ctx context.Context, entries []Credential, secret string) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshalling collection: %w", err)
	}
	defer cryptox.Wipe(plaintext)

	blob, err := cryptox.EncryptWithSecret(plaintext, secret)
	if err != nil {
		return err
	}
	serialized, err := blob.Serialize()
	if err != nil {
		return err
	}
	if err := s.store.SaveBlob(ctx, serialized); err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}
	return nil
}
