package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// HealthChecker tracks whether Redis is reachable. The credential store
// consults IsHealthy before deciding to read from Redis or fall back to
// its local copy, so checks are wrapped in a circuit breaker to avoid
// hammering a dead instance.
type HealthChecker struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker

	mu      sync.RWMutex
	healthy bool

	interval time.Duration
}

// NewHealthChecker performs an initial check and returns the checker.
// Call Start to keep the status current.
func NewHealthChecker(client redis.UniversalClient, interval time.Duration) *HealthChecker {
	settings := gobreaker.Settings{
		Name:    "redis-health",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("redis circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	checker := &HealthChecker{
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		interval: interval,
	}
	checker.Check(context.Background())
	return checker
}

// IsHealthy reports the result of the most recent check.
func (h *HealthChecker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

// Check pings Redis through the circuit breaker and records the outcome.
func (h *HealthChecker) Check(ctx context.Context) bool {
	_, err := h.breaker.Execute(func() (interface{}, error) {
		return h.client.Ping(ctx).Result()
	})

	healthy := err == nil

	h.mu.Lock()
	changed := h.healthy != healthy
	h.healthy = healthy
	h.mu.Unlock()

	if changed {
		if healthy {
			log.Println("redis connection restored")
		} else {
			log.Printf("redis connection lost: %v", err)
		}
	}
	return healthy
}

// Start runs periodic checks until ctx is cancelled.
func (h *HealthChecker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				h.Check(checkCtx)
				cancel()
			}
		}
	}()
}
