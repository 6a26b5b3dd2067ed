package auth

import (
	"context"
	"log"
	"sync"
	"time"
)

// FallbackStore wraps a durable CredentialStore (normally Redis) with a local
// in-memory copy so that token refreshes keep working while the durable store
// is down. Writes always land in the local copy; the durable store is only
// touched while the health check reports it reachable.
type FallbackStore struct {
	durable     CredentialStore
	mu          sync.RWMutex
	local       *Credentials
	healthCheck func() bool
}

// NewFallbackStore creates a credential store with a durable backend and a
// local fallback copy.
func NewFallbackStore(durable CredentialStore, healthCheck func() bool) *FallbackStore {
	return &FallbackStore{
		durable:     durable,
		healthCheck: healthCheck,
	}
}

// Save stores the credentials locally and, when healthy, durably.
func (s *FallbackStore) Save(ctx context.Context, creds *Credentials) error {
	copied := *creds
	s.mu.Lock()
	s.local = &copied
	s.mu.Unlock()

	if s.healthCheck() {
		if err := s.durable.Save(ctx, creds); err != nil {
			log.Printf("Warning: failed to save credentials to durable store: %v", err)
			// Continue with just the local copy.
		}
	}

	return nil
}

// Load retrieves credentials from the durable store when healthy, refreshing
// the local copy on the way through; otherwise it serves the local copy.
func (s *FallbackStore) Load(ctx context.Context) (*Credentials, error) {
	if s.healthCheck() {
		creds, err := s.durable.Load(ctx)
		if err == nil {
			if creds != nil {
				copied := *creds
				s.mu.Lock()
				s.local = &copied
				s.mu.Unlock()
			}
			return creds, nil
		}
		log.Printf("Warning: failed to load credentials from durable store: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.local == nil {
		return nil, nil
	}
	copied := *s.local
	return &copied, nil
}

// Delete removes the credentials from both copies.
func (s *FallbackStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	s.local = nil
	s.mu.Unlock()

	if s.healthCheck() {
		if err := s.durable.Delete(ctx); err != nil {
			log.Printf("Warning: failed to delete credentials from durable store: %v", err)
		}
	}

	return nil
}

// StartReplication begins background replication of the local copy into the
// durable store, so a refresh performed during an outage is persisted once
// the store comes back.
func (s *FallbackStore) StartReplication(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.healthCheck() {
					continue
				}

				s.mu.RLock()
				var creds *Credentials
				if s.local != nil {
					copied := *s.local
					creds = &copied
				}
				s.mu.RUnlock()

				if creds == nil {
					continue
				}

				if err := s.durable.Save(ctx, creds); err != nil {
					log.Printf("Credential replication error: %v", err)
				}
			}
		}
	}()
}
