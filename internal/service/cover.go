package service

import (
	"context"

	"CoverLane/internal/biz"
	"CoverLane/internal/model"
	"CoverLane/pkg/cache"
	"CoverLane/pkg/platform"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

// Cache status reply header values.
const (
	HeaderCache = "X-Cache"
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
)

// GenerateOptions overrides the configured run options. Nil fields keep the default.
type GenerateOptions struct {
	Parallel       *bool `json:"parallel,omitempty"`
	MaxConcurrency int   `json:"max_concurrency,omitempty"`
	FailFast       *bool `json:"fail_fast,omitempty"`
}

// GenerateCoversRequest is the body of POST /api/v1/covers.
type GenerateCoversRequest struct {
	biz.GenerationRequest
	Options *GenerateOptions `json:"options,omitempty"`
}

// ListPlatformsRequest is empty.
type ListPlatformsRequest struct{}

// ListPlatformsReply lists supported platforms.
type ListPlatformsReply struct {
	Platforms []platform.Spec `json:"platforms"`
}

// ValidateRequest checks content (and optionally image metadata) against
// one platform or several.
type ValidateRequest struct {
	Platform  string                  `json:"platform,omitempty"`
	Platforms []string                `json:"platforms,omitempty"`
	Title     string                  `json:"title"`
	Content   string                  `json:"content"`
	Image     *platform.ImageMetadata `json:"image,omitempty"`
}

// ValidateReply carries one report per requested platform.
type ValidateReply struct {
	Valid   bool                    `json:"valid"`
	Reports []*biz.ValidationReport `json:"reports"`
}

// CacheStatsRequest is empty.
type CacheStatsRequest struct{}

// CacheKeysRequest filters keys by a regular expression.
type CacheKeysRequest struct {
	Pattern string `json:"pattern,omitempty"`
}

// CacheKeysReply lists live cache keys.
type CacheKeysReply struct {
	Keys []string `json:"keys"`
}

// ClearCacheRequest drops one key, or every key when Key is empty.
type ClearCacheRequest struct {
	Key string `json:"key,omitempty"`
}

// ClearCacheReply reports how many entries were removed.
type ClearCacheReply struct {
	Removed int `json:"removed"`
}

// ListGenerationsRequest pages recent history.
type ListGenerationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ListGenerationsReply lists recent generation runs, newest first.
type ListGenerationsReply struct {
	Generations []*model.GenerationRecord `json:"generations"`
}

// CoverService implements the cover generation API.
type CoverService struct {
	uc     *biz.GenerationUsecase
	logger *log.Helper
}

// NewCoverService creates a new CoverService instance.
func NewCoverService(uc *biz.GenerationUsecase, logger log.Logger) *CoverService {
	return &CoverService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// GenerateCovers generates one cover per requested platform.
func (s *CoverService) GenerateCovers(ctx context.Context, req *GenerateCoversRequest) (*biz.MultiPlatformResult, error) {
	s.logger.Debugw("msg", "GenerateCovers called", "platforms", req.Platforms, "template", req.Template)

	opts := s.runOptions(req.Options)
	res, err := s.uc.Generate(ctx, &req.GenerationRequest, &opts)
	if err != nil {
		s.logger.Warnw("msg", "generation failed", "error", err)
		return nil, err
	}

	if tr, ok := transport.FromServerContext(ctx); ok {
		status := CacheMiss
		if res.Cached {
			status = CacheHit
		}
		tr.ReplyHeader().Set(HeaderCache, status)
	}
	return res, nil
}

func (s *CoverService) runOptions(o *GenerateOptions) biz.RunOptions {
	opts := s.uc.DefaultOptions()
	if o == nil {
		return opts
	}
	if o.Parallel != nil {
		opts.Parallel = *o.Parallel
	}
	if o.MaxConcurrency > 0 {
		opts.MaxConcurrency = o.MaxConcurrency
	}
	if o.FailFast != nil {
		opts.FailFast = *o.FailFast
	}
	return opts
}

// ListPlatforms returns the platform registry.
func (s *CoverService) ListPlatforms(_ context.Context, _ *ListPlatformsRequest) (*ListPlatformsReply, error) {
	return &ListPlatformsReply{Platforms: s.uc.Platforms()}, nil
}

// Validate checks content against each requested platform.
func (s *CoverService) Validate(_ context.Context, req *ValidateRequest) (*ValidateReply, error) {
	ids := req.Platforms
	if req.Platform != "" {
		ids = append([]string{req.Platform}, ids...)
	}
	if len(ids) == 0 {
		return nil, errors.BadRequest(biz.ReasonInvalidRequest, "platform is required")
	}

	reply := &ValidateReply{Valid: true, Reports: make([]*biz.ValidationReport, 0, len(ids))}
	for _, id := range ids {
		report, err := s.uc.Validate(id, req.Title, req.Content, req.Image)
		if err != nil {
			return nil, err
		}
		reply.Valid = reply.Valid && report.Valid
		reply.Reports = append(reply.Reports, report)
	}
	return reply, nil
}

// CacheStats returns the result cache counters.
func (s *CoverService) CacheStats(_ context.Context, _ *CacheStatsRequest) (*cache.Stats, error) {
	stats := s.uc.CacheStats()
	return &stats, nil
}

// CacheKeys lists live result cache keys.
func (s *CoverService) CacheKeys(_ context.Context, req *CacheKeysRequest) (*CacheKeysReply, error) {
	keys, err := s.uc.CacheKeys(req.Pattern)
	if err != nil {
		return nil, err
	}
	return &CacheKeysReply{Keys: keys}, nil
}

// ClearCache removes one cached result or all of them.
func (s *CoverService) ClearCache(_ context.Context, req *ClearCacheRequest) (*ClearCacheReply, error) {
	if req.Key != "" {
		if s.uc.InvalidateCache(req.Key) {
			return &ClearCacheReply{Removed: 1}, nil
		}
		return &ClearCacheReply{}, nil
	}
	return &ClearCacheReply{Removed: s.uc.ClearCache()}, nil
}

// ListGenerations returns recent generation history.
func (s *CoverService) ListGenerations(ctx context.Context, req *ListGenerationsRequest) (*ListGenerationsReply, error) {
	records, err := s.uc.ListHistory(ctx, req.Limit)
	if err != nil {
		s.logger.Errorw("msg", "failed to list generations", "error", err)
		return nil, err
	}
	return &ListGenerationsReply{Generations: records}, nil
}
