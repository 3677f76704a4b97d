package biz

import (
	"context"
	"time"

	"CoverLane/internal/model"
)

// RateLimitRepo stores per-identity admission state.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
// Implementations are in data layer (data.MemoryRateLimitRepo, data.RedisRateLimitRepo).
type RateLimitRepo interface {
	// Window counters (fixed and sliding window). The counter of the window
	// starting at windowStart must survive at least 2*window so the sliding
	// strategy can read it as the previous window.
	IncrementWindow(ctx context.Context, identity string, windowStart time.Time, window time.Duration) (int64, error)
	GetWindowCount(ctx context.Context, identity string, windowStart time.Time) (int64, error)

	// UpdateBucket atomically refills the identity's bucket and tries to take
	// one token. It returns the bucket state after the attempt.
	UpdateBucket(ctx context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error)

	// CleanupExpired drops records whose reset time is before now and returns
	// how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}
