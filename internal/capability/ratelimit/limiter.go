// Package ratelimit generalizes the teacher's AIMD-style adaptive model
// rate limiter (features/model/middleware/ratelimit.go) into a SAFE_WRITE
// cost-budget governor: a distributed, cluster-aware spend counter backed
// by Redis when available, falling back to a process-local counter
// otherwise. A golang.org/x/time limiter throttles request rate in both
// modes.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/mindscape-ai/core/internal/capability"
)

// Budget implements capability.Budget. With a Redis client configured it
// coordinates spend across processes via an atomic INCRBYFLOAT spend
// counter keyed per session+profile; without one it falls back to a
// process-local tracker guarded by a mutex.
type Budget struct {
	redis   *redis.Client
	ceiling float64

	mu    sync.Mutex
	spent map[string]float64 // used only in the process-local fallback

	// burstLimiter throttles request *rate* (not cost) as a secondary
	// guard, mirroring the teacher's AIMD token-bucket shape.
	burstLimiter *rate.Limiter
}

// New constructs a Budget. redisClient may be nil to use the process-local
// fallback; ceiling is the per-session SAFE_WRITE spend cap in the same
// currency unit as ProfileConfig.CostCeilingPer1k.
func New(redisClient *redis.Client, ceiling float64, requestsPerMinute float64) *Budget {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Budget{
		redis:        redisClient,
		ceiling:      ceiling,
		spent:        make(map[string]float64),
		burstLimiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), int(requestsPerMinute)),
	}
}

func key(sessionID string, profile capability.Profile) string {
	return fmt.Sprintf("mindscape:safe_write_spend:%s:%s", sessionID, profile)
}

// Remaining returns the budget left for sessionID under profile.
func (b *Budget) Remaining(ctx context.Context, sessionID string, profile capability.Profile) (float64, error) {
	if !b.burstLimiter.Allow() {
		return 0, fmt.Errorf("ratelimit: request burst limit exceeded")
	}
	spent, err := b.currentSpend(ctx, sessionID, profile)
	if err != nil {
		return 0, err
	}
	remaining := b.ceiling - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Debit records amount spent against sessionID's budget for profile.
func (b *Budget) Debit(ctx context.Context, sessionID string, profile capability.Profile, amount float64) error {
	if b.redis != nil {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.redis.IncrByFloat(cctx, key(sessionID, profile), amount).Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spent[key(sessionID, profile)] += amount
	return nil
}

func (b *Budget) currentSpend(ctx context.Context, sessionID string, profile capability.Profile) (float64, error) {
	if b.redis != nil {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		v, err := b.redis.Get(cctx, key(sessionID, profile)).Float64()
		if err == redis.Nil {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("ratelimit: read spend: %w", err)
		}
		return v, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent[key(sessionID, profile)], nil
}
