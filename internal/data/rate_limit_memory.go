package data

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"CoverLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxRateLimitKeys bounds the in-memory identity table.
const DefaultMaxRateLimitKeys = 10000

type memRecord struct {
	rec *model.RateLimitRecord
	// expiresAt is when the record stops carrying information.
	expiresAt time.Time
}

// MemoryRateLimitRepo keeps rate-limit records in process. The table is an
// LRU bounded by maxKeys so a flood of distinct identities cannot grow it
// without limit; the least recently seen identity is forgotten first.
type MemoryRateLimitRepo struct {
	mu      sync.Mutex
	records *lru.Cache[string, *memRecord]
	logger  *log.Helper
}

// NewMemoryRateLimitRepo creates an in-memory repository holding at most maxKeys records.
func NewMemoryRateLimitRepo(maxKeys int, logger log.Logger) (*MemoryRateLimitRepo, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxRateLimitKeys
	}
	records, err := lru.New[string, *memRecord](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit table: %w", err)
	}
	return &MemoryRateLimitRepo{
		records: records,
		logger:  log.NewHelper(logger),
	}, nil
}

func memWindowKey(identity string, windowStart time.Time) string {
	return "w:" + identity + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

func memBucketKey(identity string) string {
	return "b:" + identity
}

// IncrementWindow increments the counter of the window starting at windowStart.
func (r *MemoryRateLimitRepo) IncrementWindow(_ context.Context, identity string, windowStart time.Time, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memWindowKey(identity, windowStart)
	entry, ok := r.records.Get(key)
	if !ok {
		entry = &memRecord{
			rec: &model.RateLimitRecord{
				Identity:  identity,
				ResetTime: windowStart.Add(window),
			},
			// kept for one more window so the sliding strategy can read it
			expiresAt: windowStart.Add(2 * window),
		}
		r.records.Add(key, entry)
	}
	entry.rec.Count++
	return entry.rec.Count, nil
}

// GetWindowCount returns the counter of the window starting at windowStart, 0 if absent.
func (r *MemoryRateLimitRepo) GetWindowCount(_ context.Context, identity string, windowStart time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.records.Peek(memWindowKey(identity, windowStart))
	if !ok {
		return 0, nil
	}
	return entry.rec.Count, nil
}

// UpdateBucket refills and consumes from the identity's bucket.
func (r *MemoryRateLimitRepo) UpdateBucket(_ context.Context, identity string, capacity, refillPerMs float64, now time.Time) (*model.RateLimitRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memBucketKey(identity)
	entry, ok := r.records.Get(key)
	if !ok {
		entry = &memRecord{rec: model.NewBucket(identity, capacity, now)}
		r.records.Add(key, entry)
	}

	taken := entry.rec.Take(capacity, refillPerMs, now)
	entry.expiresAt = entry.rec.ResetTime

	out := *entry.rec
	return &out, taken, nil
}

// CleanupExpired drops every record that no longer affects a decision.
// The table lock is held for one scan only.
func (r *MemoryRateLimitRepo) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, key := range r.records.Keys() {
		entry, ok := r.records.Peek(key)
		if ok && !now.Before(entry.expiresAt) {
			r.records.Remove(key)
			removed++
		}
	}

	r.logger.Debugw("msg", "rate limit records cleaned", "removed", removed, "remaining", r.records.Len())
	return removed, nil
}
