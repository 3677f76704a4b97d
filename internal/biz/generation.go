package biz

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"CoverLane/internal/conf"
	"CoverLane/internal/data"
	"CoverLane/internal/model"
	"CoverLane/pkg/article"
	"CoverLane/pkg/cache"
	pkglog "CoverLane/pkg/log"
	"CoverLane/pkg/platform"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// coverKeyPrefix namespaces generation results in both cache tiers.
const coverKeyPrefix = "cover"

// HistoryRepo persists finished generation runs.
// Implementation is in data layer (data.GenerationHistoryRepo).
type HistoryRepo interface {
	Save(ctx context.Context, rec *model.GenerationRecord) error
	ListRecent(ctx context.Context, limit int) ([]*model.GenerationRecord, error)
}

// ResultMirror is the optional shared (L2) copy of cached results.
// data.CacheClient satisfies it.
type ResultMirror interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// GenerateFunc runs one multi-platform generation.
type GenerateFunc func(ctx context.Context, req *GenerationRequest, opts RunOptions) (*MultiPlatformResult, error)

// KeyFunc derives the cache key of a request.
type KeyFunc func(req *GenerationRequest) (string, error)

// coverKeyParams is the part of a request that determines its output.
type coverKeyParams struct {
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle"`
	Text          string         `json:"text"`
	Platforms     []string       `json:"platforms"`
	Template      string         `json:"template"`
	Customization *Customization `json:"customization"`
}

// CoverCacheKey returns the KeyFunc used for generation results.
func CoverCacheKey(maxKeyLength int) KeyFunc {
	return func(req *GenerationRequest) (string, error) {
		return cache.DeriveKey(coverKeyPrefix, coverKeyParams{
			Title:         req.Title,
			Subtitle:      req.Subtitle,
			Text:          req.Text,
			Platforms:     req.Platforms,
			Template:      req.Template,
			Customization: req.Customization,
		}, cache.WithMaxKeyLength(maxKeyLength))
	}
}

// NewResultCache creates the in-process result cache from configuration.
func NewResultCache(c *conf.Cache) *cache.ResultCache[*MultiPlatformResult] {
	opts := cache.Options{}
	if c != nil {
		opts.MaxSize = int(c.MaxSize)
		opts.DefaultTTL = c.DefaultTtl.AsDuration()
	}
	return cache.New[*MultiPlatformResult](opts)
}

// NewResultMirror returns the Redis mirror when enabled and Redis is configured, nil otherwise.
func NewResultMirror(c *conf.Cache, d *data.Data, logger log.Logger) ResultMirror {
	if c == nil || !c.Mirror {
		return nil
	}
	if d == nil || d.GetRedisClient() == nil {
		log.NewHelper(logger).Warn("cache mirror enabled but Redis is not configured, mirror disabled")
		return nil
	}
	return d.GetCache()
}

// WithResultCache wraps next with a read-through cache: the in-process cache
// first, then the optional mirror. Only fully successful results are stored,
// so a transient render failure is retried on the next request.
// Mirror failures are logged as degraded and treated as misses.
func WithResultCache(c *cache.ResultCache[*MultiPlatformResult], mirror ResultMirror, keyFn KeyFunc, next GenerateFunc, logger log.Logger) GenerateFunc {
	helper := pkglog.NewLogHelper(logger)

	return func(ctx context.Context, req *GenerationRequest, opts RunOptions) (*MultiPlatformResult, error) {
		key, err := keyFn(req)
		if err != nil {
			helper.Warnw("msg", "cache key derivation failed, bypassing cache", "error", err)
			return next(ctx, req, opts)
		}

		if res, ok := c.Get(key); ok {
			return markCached(res), nil
		}

		if mirror != nil {
			var res MultiPlatformResult
			err := mirror.Get(ctx, key, &res)
			switch {
			case err == nil:
				c.Set(key, &res)
				helper.Redis("result served from cache mirror", "key", key)
				return markCached(&res), nil
			case !stderrors.Is(err, data.ErrCacheNotFound):
				helper.Degraded("cache mirror read failed, treated as miss", "key", key, "error", err)
			}
		}

		res, err := next(ctx, req, opts)
		if err != nil {
			return nil, err
		}

		if res.FailureCount == 0 && len(res.Errors) == 0 {
			c.Set(key, res)
			if mirror != nil {
				if err := mirror.Set(ctx, key, res, c.DefaultTTL()); err != nil {
					helper.Degraded("cache mirror write failed", "key", key, "error", err)
				}
			}
		}
		return res, nil
	}
}

func markCached(res *MultiPlatformResult) *MultiPlatformResult {
	out := *res
	out.Cached = true
	return &out
}

// ValidationReport is the outcome of a standalone validation request.
type ValidationReport struct {
	Platform string                     `json:"platform"`
	Valid    bool                       `json:"valid"`
	Content  platform.ValidationResult  `json:"content"`
	Image    *platform.ValidationResult `json:"image,omitempty"`
}

// GenerationUsecase is the entry point of cover generation: it normalizes the
// request, serves it from cache or runs the orchestrator, and records history.
type GenerationUsecase struct {
	registry PlatformRegistry
	cache    *cache.ResultCache[*MultiPlatformResult]
	generate GenerateFunc
	keyFn    KeyFunc
	history  HistoryRepo
	defaults RunOptions
	logger   *pkglog.LogHelper
}

// NewGenerationUsecase creates a new GenerationUsecase.
func NewGenerationUsecase(
	gc *conf.Generation,
	cc *conf.Cache,
	orchestrator *Orchestrator,
	registry PlatformRegistry,
	rc *cache.ResultCache[*MultiPlatformResult],
	mirror ResultMirror,
	history HistoryRepo,
	logger log.Logger,
) *GenerationUsecase {
	defaults := RunOptions{Parallel: true, MaxConcurrency: DefaultMaxConcurrency}
	if gc != nil {
		defaults = RunOptions{
			Parallel:       gc.Parallel,
			MaxConcurrency: int(gc.MaxConcurrency),
			FailFast:       gc.FailFast,
		}
	}

	maxKeyLength := cache.DefaultMaxKeyLength
	if cc != nil && cc.MaxKeyLength > 0 {
		maxKeyLength = int(cc.MaxKeyLength)
	}
	keyFn := CoverCacheKey(maxKeyLength)

	return &GenerationUsecase{
		registry: registry,
		cache:    rc,
		generate: WithResultCache(rc, mirror, keyFn, orchestrator.Run, logger),
		keyFn:    keyFn,
		history:  history,
		defaults: defaults,
		logger:   pkglog.NewLogHelper(logger),
	}
}

// DefaultOptions returns the configured run options.
func (uc *GenerationUsecase) DefaultOptions() RunOptions {
	return uc.defaults
}

// Generate produces covers for every platform in req. opts nil means the
// configured defaults.
func (uc *GenerationUsecase) Generate(ctx context.Context, req *GenerationRequest, opts *RunOptions) (*MultiPlatformResult, error) {
	if req == nil {
		return nil, errors.BadRequest(ReasonInvalidRequest, "request body is required")
	}

	norm, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	runOpts := uc.defaults
	if opts != nil {
		runOpts = *opts
	}

	started := time.Now()
	res, err := uc.generate(ctx, norm, runOpts)
	elapsed := time.Since(started).Milliseconds()

	if err != nil && errors.IsBadRequest(err) {
		return nil, err
	}
	uc.record(ctx, norm, res, err, elapsed)
	if err != nil {
		return nil, err
	}

	uc.logger.Success("generation finished",
		"platforms", len(norm.Platforms),
		"success", res.SuccessCount,
		"failure", res.FailureCount,
		"cached", res.Cached,
		"duration_ms", elapsed)
	return res, nil
}

// normalizeRequest flattens HTML text and trims platform ids without
// touching the caller's request.
func normalizeRequest(req *GenerationRequest) (*GenerationRequest, error) {
	out := *req
	text, err := article.PlainText(req.Text)
	if err != nil {
		return nil, errors.BadRequest(ReasonInvalidRequest, "text could not be parsed: "+err.Error())
	}
	out.Text = text
	out.Title = strings.TrimSpace(req.Title)
	out.Platforms = make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		out.Platforms[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return &out, nil
}

// record stores the run in history. Failures are logged and never surface.
func (uc *GenerationUsecase) record(ctx context.Context, req *GenerationRequest, res *MultiPlatformResult, runErr error, elapsed int64) {
	if uc.history == nil {
		return
	}

	reqCtx := pkglog.GetRequestContext(ctx)
	rec := &model.GenerationRecord{
		RequestID:  reqCtx.RequestID,
		Identity:   reqCtx.Identity,
		Title:      truncateRunes(req.Title, 255),
		Platforms:  truncateRunes(strings.Join(req.Platforms, ","), 255),
		Template:   req.Template,
		Total:      len(req.Platforms),
		DurationMs: elapsed,
		CreatedAt:  time.Now(),
	}
	if key, err := uc.keyFn(req); err == nil {
		rec.CacheKey = truncateRunes(key, 255)
	}

	switch {
	case runErr != nil:
		rec.Status = model.GenerationStatusFailed
		rec.FailureCount = rec.Total
		rec.Errors = runErr.Error()
	default:
		rec.SuccessCount = res.SuccessCount
		rec.FailureCount = len(res.Errors)
		rec.Cached = res.Cached
		switch {
		case len(res.Errors) == 0:
			rec.Status = model.GenerationStatusSuccess
		case res.SuccessCount == 0:
			rec.Status = model.GenerationStatusFailed
		default:
			rec.Status = model.GenerationStatusPartial
		}
		if len(res.Errors) > 0 {
			if b, err := json.Marshal(res.Errors); err == nil {
				rec.Errors = string(b)
			}
		}
	}

	if err := uc.history.Save(ctx, rec); err != nil {
		uc.logger.Degraded("generation history write failed", "error", err)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ListHistory returns the most recent runs, newest first. limit is clamped to 1..100.
func (uc *GenerationUsecase) ListHistory(ctx context.Context, limit int) ([]*model.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if uc.history == nil {
		return []*model.GenerationRecord{}, nil
	}
	records, err := uc.history.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.InternalServer("HISTORY_UNAVAILABLE", "failed to list generation history").WithCause(err)
	}
	return records, nil
}

// Platforms lists the supported platforms.
func (uc *GenerationUsecase) Platforms() []platform.Spec {
	return uc.registry.List()
}

// Validate checks title/content and, when given, image metadata against one platform.
func (uc *GenerationUsecase) Validate(platformID, title, content string, image *platform.ImageMetadata) (*ValidationReport, error) {
	spec, ok := uc.registry.GetPlatform(strings.ToLower(strings.TrimSpace(platformID)))
	if !ok {
		return nil, errors.NotFound("PLATFORM_NOT_FOUND", "unsupported platform: "+platformID)
	}

	report := &ValidationReport{
		Platform: spec.ID,
		Content:  platform.ValidateContent(spec, title, content),
	}
	report.Valid = report.Content.Valid
	if image != nil {
		res := platform.ValidateImage(spec, *image)
		report.Image = &res
		report.Valid = report.Valid && res.Valid
	}
	return report, nil
}

// CacheStats returns a snapshot of the result cache counters.
func (uc *GenerationUsecase) CacheStats() cache.Stats {
	return uc.cache.Stats()
}

// CacheKeys lists cached result keys matching pattern (a regular expression,
// empty for all).
func (uc *GenerationUsecase) CacheKeys(pattern string) ([]string, error) {
	keys, err := uc.cache.Keys(pattern)
	if err != nil {
		return nil, errors.BadRequest(ReasonInvalidRequest, "invalid key pattern: "+err.Error())
	}
	return keys, nil
}

// ClearCache drops every cached result and returns how many were removed.
// The Redis mirror is left to expire on its own.
func (uc *GenerationUsecase) ClearCache() int {
	n := uc.cache.Stats().Entries
	uc.cache.Clear()
	uc.logger.Infow("msg", "result cache cleared", "entries", n)
	return n
}

// InvalidateCache removes one cached result.
func (uc *GenerationUsecase) InvalidateCache(key string) bool {
	return uc.cache.Delete(key)
}
