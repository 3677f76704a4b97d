package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"CoverLane/internal/conf"
	"CoverLane/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// MockRateLimitRepo is a mock implementation of RateLimitRepo for testing.
type MockRateLimitRepo struct {
	mock.Mock
}

func (m *MockRateLimitRepo) IncrementWindow(ctx context.Context, identity string, windowStart time.Time, window time.Duration) (int64, error) {
	args := m.Called(ctx, identity, windowStart, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateLimitRepo) GetWindowCount(ctx context.Context, identity string, windowStart time.Time) (int64, error) {
	args := m.Called(ctx, identity, windowStart)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateLimitRepo) UpdateBucket(ctx context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error) {
	args := m.Called(ctx, identity, capacity, refillPerMs, now)
	rec, _ := args.Get(0).(*model.RateLimitRecord)
	return rec, args.Bool(1), args.Error(2)
}

func (m *MockRateLimitRepo) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// memRateLimitRepo is a minimal map-backed repo for behavioural tests.
type memRateLimitRepo struct {
	mu      sync.Mutex
	windows map[string]int64
	buckets map[string]*model.RateLimitRecord
}

func newMemRateLimitRepo() *memRateLimitRepo {
	return &memRateLimitRepo{
		windows: make(map[string]int64),
		buckets: make(map[string]*model.RateLimitRecord),
	}
}

func windowKey(identity string, start time.Time) string {
	return fmt.Sprintf("%s:%d", identity, start.UnixMilli())
}

func (r *memRateLimitRepo) IncrementWindow(_ context.Context, identity string, windowStart time.Time, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := windowKey(identity, windowStart)
	r.windows[k]++
	return r.windows[k], nil
}

func (r *memRateLimitRepo) GetWindowCount(_ context.Context, identity string, windowStart time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows[windowKey(identity, windowStart)], nil
}

func (r *memRateLimitRepo) UpdateBucket(_ context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.buckets[identity]
	if !ok {
		rec = model.NewBucket(identity, capacity, now)
		r.buckets[identity] = rec
	}
	taken := rec.Take(capacity, refillPerMs, now)
	out := *rec
	return &out, taken, nil
}

func (r *memRateLimitRepo) CleanupExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)

// Helper function to create a test RateLimiterUseCase
func newTestRateLimiter(repo RateLimitRepo, strategy string, limit int32, window time.Duration) (*RateLimiterUseCase, *time.Time) {
	logger := log.NewStdLogger(os.Stdout)
	uc := NewRateLimiterUseCase(&conf.Limiter{
		Strategy: strategy,
		Limit:    limit,
		Window:   durationpb.New(window),
	}, repo, logger)
	now := testNow
	uc.now = func() time.Time { return now }
	return uc, &now
}

func TestCheckLimit_NoLimit(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc, _ := newTestRateLimiter(mockRepo, conf.StrategyFixedWindow, 0, time.Minute)

	res := uc.CheckLimit(context.Background(), "ip:1.2.3.4")
	assert.True(t, res.Allowed)
	mockRepo.AssertExpectations(t) // No calls expected
}

func TestCheckLimit_FixedWindow(t *testing.T) {
	uc, now := newTestRateLimiter(newMemRateLimitRepo(), conf.StrategyFixedWindow, 10, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res := uc.CheckLimit(ctx, "user-a")
		require.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, int64(10-i), res.Remaining)
	}

	res := uc.CheckLimit(ctx, "user-a")
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, int64(11), res.TotalHits)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC), res.ResetTime)
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	// other identities are independent
	assert.True(t, uc.CheckLimit(ctx, "user-b").Allowed)

	// after the window rolls over the counter starts again
	*now = now.Add(31 * time.Second)
	res = uc.CheckLimit(ctx, "user-a")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(9), res.Remaining)
}

func TestCheckLimit_SlidingWindowWeighsPreviousWindow(t *testing.T) {
	repo := newMemRateLimitRepo()
	uc, now := newTestRateLimiter(repo, conf.StrategySlidingWindow, 10, time.Minute)
	ctx := context.Background()

	// fill the previous window [12:00, 12:01)
	for i := 0; i < 10; i++ {
		require.True(t, uc.CheckLimit(ctx, "u").Allowed)
	}

	// 15s into the next window, 75% of the previous window still counts: 7.5 + 1
	*now = time.Date(2025, 3, 1, 12, 1, 15, 0, time.UTC)
	res := uc.CheckLimit(ctx, "u")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.TotalHits)
	assert.Equal(t, int64(1), res.Remaining) // 10 - ceil(8.5)

	res = uc.CheckLimit(ctx, "u")
	assert.True(t, res.Allowed) // 9.5
	res = uc.CheckLimit(ctx, "u")
	assert.False(t, res.Allowed) // 10.5
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, 45*time.Second)

	// at 45s only 25% of the previous window remains: 2.5 + 4
	*now = time.Date(2025, 3, 1, 12, 1, 45, 0, time.UTC)
	assert.True(t, uc.CheckLimit(ctx, "u").Allowed)
}

func TestCheckLimit_TokenBucket(t *testing.T) {
	uc, now := newTestRateLimiter(newMemRateLimitRepo(), conf.StrategyTokenBucket, 5, 5*time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, uc.CheckLimit(ctx, "k").Allowed)
	}

	res := uc.CheckLimit(ctx, "k")
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	// refill is 1 token/s
	assert.Equal(t, time.Second, res.RetryAfter)

	*now = now.Add(time.Second)
	res = uc.CheckLimit(ctx, "k")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)

	// refill is capped at capacity
	*now = now.Add(time.Hour)
	res = uc.CheckLimit(ctx, "k")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(4), res.Remaining)
	assert.Equal(t, now.Add(time.Second), res.ResetTime)
}

func TestCheckLimit_RepoErrorFailsOpen(t *testing.T) {
	strategies := []string{conf.StrategyFixedWindow, conf.StrategySlidingWindow, conf.StrategyTokenBucket}

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			mockRepo := new(MockRateLimitRepo)
			uc, _ := newTestRateLimiter(mockRepo, strategy, 10, time.Minute)
			ctx := context.Background()
			boom := errors.New("redis connection failed")

			mockRepo.On("IncrementWindow", ctx, "u", mock.Anything, time.Minute).Return(int64(0), boom).Maybe()
			mockRepo.On("UpdateBucket", ctx, "u", 10.0, mock.Anything, testNow).Return(nil, false, boom).Maybe()

			res := uc.CheckLimit(ctx, "u")
			assert.True(t, res.Allowed)
			assert.True(t, res.Degraded)
			assert.Equal(t, int64(10), res.Limit)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestCheckLimit_PreviousWindowReadErrorFailsOpen(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc, _ := newTestRateLimiter(mockRepo, conf.StrategySlidingWindow, 10, time.Minute)
	ctx := context.Background()

	start := testNow.Truncate(time.Minute)
	mockRepo.On("IncrementWindow", ctx, "u", start, time.Minute).Return(int64(3), nil)
	mockRepo.On("GetWindowCount", ctx, "u", start.Add(-time.Minute)).Return(int64(0), errors.New("timeout"))

	res := uc.CheckLimit(ctx, "u")
	assert.True(t, res.Allowed)
	assert.True(t, res.Degraded)
	mockRepo.AssertExpectations(t)
}

func TestNewRateLimitExceededError(t *testing.T) {
	err := NewRateLimitExceededError(&RateLimitResult{Limit: 10, RetryAfter: 1500 * time.Millisecond})

	se := kerrors.FromError(err)
	assert.Equal(t, int32(429), se.Code)
	assert.Equal(t, ReasonRateLimitExceeded, se.Reason)
	assert.Equal(t, "2", se.Metadata["retry_after"])
}

func TestRateLimiter_CleanupExpired(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc, _ := newTestRateLimiter(mockRepo, conf.StrategyTokenBucket, 10, time.Minute)
	ctx := context.Background()

	mockRepo.On("CleanupExpired", ctx, testNow).Return(3, nil).Once()
	n, err := uc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mockRepo.On("CleanupExpired", ctx, testNow).Return(0, errors.New("down")).Once()
	_, err = uc.CleanupExpired(ctx)
	assert.Error(t, err)
	mockRepo.AssertExpectations(t)
}
