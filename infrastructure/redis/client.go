package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options holds the connection settings for the credential store backend.
type Options struct {
	Addresses    []string
	Password     string
	DB           int
	EnableTLS    bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultOptions returns connection settings suitable for a small deployment.
func DefaultOptions(addresses []string) Options {
	return Options{
		Addresses:    addresses,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// NewClient connects to Redis and verifies the connection with a ping.
// A single address yields a plain client; multiple addresses a cluster client.
func NewClient(ctx context.Context, opts Options) (redis.UniversalClient, error) {
	if len(opts.Addresses) == 0 {
		return nil, fmt.Errorf("no redis addresses configured")
	}

	universal := &redis.UniversalOptions{
		Addrs:        opts.Addresses,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	}
	if opts.EnableTLS {
		universal.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewUniversalClient(universal)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
