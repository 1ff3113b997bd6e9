package storage

import (
	"context"
	"sync"
)

// MemoryStore is a volatile Store used in tests and as a scratch backend.
type MemoryStore struct {
	mu      sync.Mutex
	blob    string
	profile *Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveBlob(ctx context.Context, serialized string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = serialized
	return nil
}

func (s *MemoryStore) LoadBlob(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blob, nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profile = &cp
	return nil
}

func (s *MemoryStore) LoadProfile(ctx context.Context) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	cp := *s.profile
	return &cp, nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = ""
	s.profile = nil
	return nil
}

func (s *MemoryStore) Close() error { return nil }
