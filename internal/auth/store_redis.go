package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements CredentialStore on Redis so that tokens refreshed at
// runtime survive process restarts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key() string {
	return fmt.Sprintf("%s:quickbooks:credentials", s.prefix)
}

// Save stores the credential record. The key expires well after the refresh
// token does, so a dead deployment does not leave secrets around forever.
func (s *RedisStore) Save(ctx context.Context, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// QuickBooks refresh tokens live ~100 days.
	ttl := 120 * 24 * time.Hour

	if err := s.client.Set(ctx, s.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// Load retrieves the credential record, or (nil, nil) when none is stored.
func (s *RedisStore) Load(ctx context.Context) (*Credentials, error) {
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

// Delete removes the credential record.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	return nil
}
