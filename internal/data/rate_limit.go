package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"CoverLane/internal/conf"
	"CoverLane/internal/model"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// bucketWatchRetries bounds optimistic-lock retries on a contended bucket.
const bucketWatchRetries = 5

// RateLimitStore is the storage contract of the rate limiter.
// biz.RateLimitRepo is bound to it; see that interface for method semantics.
type RateLimitStore interface {
	IncrementWindow(ctx context.Context, identity string, windowStart time.Time, window time.Duration) (int64, error)
	GetWindowCount(ctx context.Context, identity string, windowStart time.Time) (int64, error)
	UpdateBucket(ctx context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// NewRateLimitRepo selects the rate-limit backend from configuration.
// The Redis backend falls back to memory when Redis is not configured.
func NewRateLimitRepo(c *conf.Limiter, rdb *redis.Client, logger log.Logger) (RateLimitStore, error) {
	helper := log.NewHelper(logger)

	maxKeys := 0
	if c != nil {
		maxKeys = int(c.MaxKeys)
	}

	if c != nil && c.Backend == conf.BackendRedis {
		if rdb != nil {
			helper.Infow("msg", "rate limiter using Redis backend", "strategy", c.Strategy)
			return NewRedisRateLimitRepo(rdb, logger), nil
		}
		helper.Warnw("msg", "Redis backend requested but Redis is not configured, using memory", "degraded", true)
	}
	repo, err := NewMemoryRateLimitRepo(maxKeys, logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// RedisRateLimitRepo keeps rate-limit records in Redis so several instances
// share one budget per identity.
type RedisRateLimitRepo struct {
	rdb    *redis.Client
	logger *pkglog.LogHelper
}

// NewRedisRateLimitRepo creates a new Redis rate limit repository.
func NewRedisRateLimitRepo(rdb *redis.Client, logger log.Logger) *RedisRateLimitRepo {
	return &RedisRateLimitRepo{
		rdb:    rdb,
		logger: pkglog.NewLogHelper(logger),
	}
}

func windowCounterKey(identity string, windowStart time.Time) string {
	return BuildCacheKey(CacheKeyRate, identity, strconv.FormatInt(windowStart.UnixMilli(), 10))
}

// IncrementWindow increments the counter of the window starting at windowStart.
// INCR and PEXPIRE run in one MULTI/EXEC so a counter never outlives 2*window.
func (r *RedisRateLimitRepo) IncrementWindow(ctx context.Context, identity string, windowStart time.Time, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := windowCounterKey(identity, windowStart)

	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, 2*window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment window counter: %w", err)
	}

	return incr.Val(), nil
}

// GetWindowCount returns the counter of the window starting at windowStart, 0 if absent.
func (r *RedisRateLimitRepo) GetWindowCount(ctx context.Context, identity string, windowStart time.Time) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Get(ctx, windowCounterKey(identity, windowStart)).Int64()
	if errors.Is(err, redis.Nil) {
		// Key doesn't exist, return 0
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get window count: %w", err)
	}
	return count, nil
}

// UpdateBucket refills and consumes from the identity's bucket under WATCH,
// retrying when another instance modified the bucket concurrently.
func (r *RedisRateLimitRepo) UpdateBucket(ctx context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error) {
	if r.rdb == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}

	key := BuildCacheKey(CacheKeyBucket, identity)

	var (
		rec   *model.RateLimitRecord
		taken bool
	)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			rec = model.NewBucket(identity, capacity, now)
		case err != nil:
			return err
		default:
			rec = &model.RateLimitRecord{}
			if err := json.Unmarshal(raw, rec); err != nil {
				r.logger.Warnw("msg", "corrupt token bucket replaced", "identity", identity, "error", err)
				rec = model.NewBucket(identity, capacity, now)
			}
		}

		taken = rec.Take(capacity, refillPerMs, now)

		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		// a bucket that has refilled completely is equivalent to a missing one
		ttl := rec.ResetTime.Sub(now)
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < bucketWatchRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return rec, taken, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, false, fmt.Errorf("failed to update token bucket: %w", err)
		}
		r.logger.Redis("token bucket contended, retrying", "identity", identity, "attempt", i+1)
	}
	return nil, false, fmt.Errorf("failed to update token bucket: %w", redis.TxFailedErr)
}

// CleanupExpired is a no-op: every Redis record carries its own expiry.
func (r *RedisRateLimitRepo) CleanupExpired(_ context.Context, _ time.Time) (int, error) {
	r.logger.Redis("rate limit records expire natively in Redis, nothing to clean")
	return 0, nil
}
