package biz

import (
	"context"

	"CoverLane/pkg/cache"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

// resultCacheName labels the result cache in stats logs.
const resultCacheName = "generation_results"

// MaintenanceTask holds the periodic housekeeping jobs run by the cron scheduler.
type MaintenanceTask struct {
	cache   *cache.ResultCache[*MultiPlatformResult]
	limiter *RateLimiterUseCase
	logger  *pkglog.LogHelper
}

// NewMaintenanceTask creates the maintenance jobs.
func NewMaintenanceTask(rc *cache.ResultCache[*MultiPlatformResult], limiter *RateLimiterUseCase, logger log.Logger) *MaintenanceTask {
	return &MaintenanceTask{
		cache:   rc,
		limiter: limiter,
		logger:  pkglog.NewLogHelper(logger),
	}
}

// SweepCache removes expired result cache entries.
func (t *MaintenanceTask) SweepCache(_ context.Context) int {
	removed := t.cache.Sweep()
	if removed > 0 {
		t.logger.Scheduler("result cache sweep completed", "removed", removed)
	}
	return removed
}

// CleanupRateLimits removes stale rate-limit records.
func (t *MaintenanceTask) CleanupRateLimits(ctx context.Context) error {
	removed, err := t.limiter.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	t.logger.Scheduler("rate limit cleanup completed", "removed", removed)
	return nil
}

// ReportCacheStats logs the result cache counters.
func (t *MaintenanceTask) ReportCacheStats() cache.Stats {
	s := t.cache.Stats()
	t.logger.CacheStats(resultCacheName, s.Entries, s.MaxSize, s.Hits, s.Misses, s.Evictions, s.MemoryUsage)
	return s
}
