package auth

import (
	"context"
	"sync"
)

// MemoryStore is an in-process CredentialStore. Refreshed tokens are lost on
// restart; pair it with the Redis-backed store in deployments that need the
// refreshed tokens to survive.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored credential record, or nil when empty.
func (s *MemoryStore) Load(ctx context.Context) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, nil
	}
	creds := *s.creds
	return &creds, nil
}

// Save replaces the stored credential record.
func (s *MemoryStore) Save(ctx context.Context, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *creds
	s.creds = &copied
	return nil
}

// Delete clears the stored credential record.
func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
