package server

import (
	"context"
	"fmt"
	"time"

	"CoverLane/internal/biz"
	"CoverLane/internal/conf"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// jobTimeout bounds one run of a maintenance job.
const jobTimeout = 5 * time.Minute

// MaintenanceServer runs the housekeeping jobs on cron schedules. It is a
// Kratos transport server so the app starts and stops it with the listeners.
type MaintenanceServer struct {
	cron   *cron.Cron
	jobs   int
	logger *pkglog.LogHelper
}

// NewMaintenanceServer registers every job whose schedule is set.
func NewMaintenanceServer(c *conf.Maintenance, task *biz.MaintenanceTask, logger log.Logger) (*MaintenanceServer, error) {
	s := &MaintenanceServer{
		cron:   cron.New(),
		logger: pkglog.NewLogHelper(logger),
	}
	if c == nil {
		return s, nil
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"cache_sweep", c.CacheSweep, func(ctx context.Context) error {
			task.SweepCache(ctx)
			return nil
		}},
		{"limiter_cleanup", c.LimiterCleanup, task.CleanupRateLimits},
		{"cache_stats", c.CacheStats, func(context.Context) error {
			task.ReportCacheStats()
			return nil
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", job.spec, job.name, err)
		}
		s.jobs++
		s.logger.Scheduler("maintenance job registered", "job", job.name, "schedule", job.spec)
	}
	return s, nil
}

func (s *MaintenanceServer) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Errorw("msg", "maintenance job failed", "job", name, "error", err)
			return
		}
		s.logger.Debugw("msg", "maintenance job finished", "job", name, "duration_ms", time.Since(started).Milliseconds())
	}
}

// Jobs returns the number of registered jobs.
func (s *MaintenanceServer) Jobs() int {
	return s.jobs
}

// Start implements transport.Server.
func (s *MaintenanceServer) Start(_ context.Context) error {
	s.cron.Start()
	s.logger.Startup("maintenance scheduler started", "jobs", s.jobs)
	return nil
}

// Stop implements transport.Server. It waits for running jobs or ctx.
func (s *MaintenanceServer) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Scheduler("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
