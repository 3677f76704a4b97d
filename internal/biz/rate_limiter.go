package biz

import (
	"context"
	"fmt"
	"math"
	"time"

	"CoverLane/internal/conf"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// ReasonRateLimitExceeded is the Kratos error reason of a denied request.
const ReasonRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

// RateLimitResult is the admission decision for one request.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// TotalHits is the number of requests counted in the current window
	// (or tokens consumed from a full bucket).
	TotalHits  int64
	ResetTime  time.Time
	RetryAfter time.Duration
	// Degraded is set when storage failed and the request was let through.
	Degraded bool
}

// RateLimiterUseCase implements admission control per caller identity.
// It supports fixed window, sliding window and token bucket strategies over a
// pluggable RateLimitRepo.
type RateLimiterUseCase struct {
	repo     RateLimitRepo
	strategy string
	limit    int64
	window   time.Duration
	now      func() time.Time
	logger   *pkglog.LogHelper
}

// NewRateLimiterUseCase creates a new rate limiter use case.
func NewRateLimiterUseCase(c *conf.Limiter, repo RateLimitRepo, logger log.Logger) *RateLimiterUseCase {
	uc := &RateLimiterUseCase{
		repo:     repo,
		strategy: conf.StrategyTokenBucket,
		window:   time.Minute,
		now:      time.Now,
		logger:   pkglog.NewLogHelper(logger),
	}
	if c != nil {
		if c.Strategy != "" {
			uc.strategy = c.Strategy
		}
		uc.limit = int64(c.Limit)
		if w := c.Window.AsDuration(); w > 0 {
			uc.window = w
		}
	}
	return uc
}

// Limit returns the configured request limit per window.
func (uc *RateLimiterUseCase) Limit() int64 {
	return uc.limit
}

// NewRateLimitExceededError converts a denied result into the 429 Kratos error
// returned at the transport edge.
func NewRateLimitExceededError(res *RateLimitResult) error {
	retry := int64(math.Ceil(res.RetryAfter.Seconds()))
	return errors.New(
		429, // HTTP 429 Too Many Requests
		ReasonRateLimitExceeded,
		fmt.Sprintf("rate limit exceeded: limit=%d retry_after=%ds", res.Limit, retry),
	).WithMetadata(map[string]string{
		"limit":       fmt.Sprintf("%d", res.Limit),
		"retry_after": fmt.Sprintf("%d", retry),
	})
}

// CheckLimit records one request for identity and decides whether it is admitted.
// Storage failures never deny: the request is allowed and the result is marked Degraded.
func (uc *RateLimiterUseCase) CheckLimit(ctx context.Context, identity string) *RateLimitResult {
	if uc.limit <= 0 {
		// No limit configured, allow request
		return &RateLimitResult{Allowed: true, Remaining: math.MaxInt64}
	}

	now := uc.now()

	var (
		res *RateLimitResult
		err error
	)
	switch uc.strategy {
	case conf.StrategyFixedWindow:
		res, err = uc.fixedWindow(ctx, identity, now)
	case conf.StrategySlidingWindow:
		res, err = uc.slidingWindow(ctx, identity, now)
	default:
		res, err = uc.tokenBucket(ctx, identity, now)
	}

	if err != nil {
		uc.logger.Degraded("rate limit storage failed, request allowed",
			"identity", identity,
			"strategy", uc.strategy,
			"error", err)
		return &RateLimitResult{
			Allowed:   true,
			Limit:     uc.limit,
			Remaining: uc.limit,
			ResetTime: now.Add(uc.window),
			Degraded:  true,
		}
	}

	if !res.Allowed {
		uc.logger.RateLimit("rate limit exceeded",
			"identity", identity,
			"strategy", uc.strategy,
			"hits", res.TotalHits,
			"limit", uc.limit,
			"retry_after_ms", res.RetryAfter.Milliseconds())
	}
	return res
}

// fixedWindow counts requests in [windowStart, windowStart+window). Up to
// 2*limit requests can pass across a window boundary.
func (uc *RateLimiterUseCase) fixedWindow(ctx context.Context, identity string, now time.Time) (*RateLimitResult, error) {
	windowStart := now.Truncate(uc.window)
	count, err := uc.repo.IncrementWindow(ctx, identity, windowStart, uc.window)
	if err != nil {
		return nil, err
	}

	reset := windowStart.Add(uc.window)
	res := &RateLimitResult{
		Allowed:   count <= uc.limit,
		Limit:     uc.limit,
		Remaining: max(0, uc.limit-count),
		TotalHits: count,
		ResetTime: reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
	}
	return res, nil
}

// slidingWindow weighs the previous window's count by the share of it that
// still overlaps the trailing window: prev*(1-elapsed/window) + current.
func (uc *RateLimiterUseCase) slidingWindow(ctx context.Context, identity string, now time.Time) (*RateLimitResult, error) {
	windowStart := now.Truncate(uc.window)
	count, err := uc.repo.IncrementWindow(ctx, identity, windowStart, uc.window)
	if err != nil {
		return nil, err
	}
	prev, err := uc.repo.GetWindowCount(ctx, identity, windowStart.Add(-uc.window))
	if err != nil {
		return nil, err
	}

	elapsed := now.Sub(windowStart)
	weight := 1 - float64(elapsed)/float64(uc.window)
	estimate := float64(prev)*weight + float64(count)

	reset := windowStart.Add(uc.window)
	res := &RateLimitResult{
		Allowed:   estimate <= float64(uc.limit),
		Limit:     uc.limit,
		Remaining: max(0, uc.limit-int64(math.Ceil(estimate))),
		TotalHits: count,
		ResetTime: reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
		if count < uc.limit && prev > 0 {
			// the estimate falls under the limit once enough of prev has slid out
			free := 1 - float64(uc.limit-count)/float64(prev)
			at := windowStart.Add(time.Duration(free * float64(uc.window)))
			if d := at.Sub(now); d > 0 && d < res.RetryAfter {
				res.RetryAfter = d
			}
		}
	}
	return res, nil
}

// tokenBucket holds up to limit tokens refilled continuously at limit/window.
func (uc *RateLimiterUseCase) tokenBucket(ctx context.Context, identity string, now time.Time) (*RateLimitResult, error) {
	capacity := float64(uc.limit)
	refillPerMs := capacity / float64(uc.window.Milliseconds())

	rec, allowed, err := uc.repo.UpdateBucket(ctx, identity, capacity, refillPerMs, now)
	if err != nil {
		return nil, err
	}

	remaining := int64(math.Floor(rec.Tokens))
	res := &RateLimitResult{
		Allowed:   allowed,
		Limit:     uc.limit,
		Remaining: remaining,
		TotalHits: uc.limit - remaining,
		ResetTime: rec.ResetTime,
	}
	if !allowed {
		res.RetryAfter = time.Duration(math.Ceil((1-rec.Tokens)/refillPerMs)) * time.Millisecond
	}
	return res, nil
}

// CleanupExpired removes stale rate-limit records. Called by the maintenance cron job.
func (uc *RateLimiterUseCase) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := uc.repo.CleanupExpired(ctx, uc.now())
	if err != nil {
		uc.logger.Warnw("msg", "rate limit cleanup failed", "error", err)
		return 0, err
	}
	return removed, nil
}
