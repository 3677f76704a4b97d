package service

import (
	"context"

	"CoverLane/internal/biz"
	"CoverLane/pkg/cache"

	"github.com/go-kratos/kratos/v2/transport/http"
)

// Operation names, used by middleware selectors and request logs.
const (
	OperationCoverServiceGenerateCovers  = "/coverlane.v1.CoverService/GenerateCovers"
	OperationCoverServiceListPlatforms   = "/coverlane.v1.CoverService/ListPlatforms"
	OperationCoverServiceValidate        = "/coverlane.v1.CoverService/Validate"
	OperationCoverServiceCacheStats      = "/coverlane.v1.CoverService/CacheStats"
	OperationCoverServiceCacheKeys       = "/coverlane.v1.CoverService/CacheKeys"
	OperationCoverServiceClearCache      = "/coverlane.v1.CoverService/ClearCache"
	OperationCoverServiceListGenerations = "/coverlane.v1.CoverService/ListGenerations"
)

// CoverServiceHTTPServer is the HTTP surface of CoverService.
type CoverServiceHTTPServer interface {
	GenerateCovers(context.Context, *GenerateCoversRequest) (*biz.MultiPlatformResult, error)
	ListPlatforms(context.Context, *ListPlatformsRequest) (*ListPlatformsReply, error)
	Validate(context.Context, *ValidateRequest) (*ValidateReply, error)
	CacheStats(context.Context, *CacheStatsRequest) (*cache.Stats, error)
	CacheKeys(context.Context, *CacheKeysRequest) (*CacheKeysReply, error)
	ClearCache(context.Context, *ClearCacheRequest) (*ClearCacheReply, error)
	ListGenerations(context.Context, *ListGenerationsRequest) (*ListGenerationsReply, error)
}

// RegisterCoverServiceHTTPServer mounts the API routes on s.
func RegisterCoverServiceHTTPServer(s *http.Server, srv CoverServiceHTTPServer) {
	r := s.Route("/")
	r.POST("/api/v1/covers", coverServiceGenerateCoversHandler(srv))
	r.GET("/api/v1/platforms", coverServiceListPlatformsHandler(srv))
	r.POST("/api/v1/validate", coverServiceValidateHandler(srv))
	r.GET("/api/v1/cache/stats", coverServiceCacheStatsHandler(srv))
	r.GET("/api/v1/cache/keys", coverServiceCacheKeysHandler(srv))
	r.DELETE("/api/v1/cache", coverServiceClearCacheHandler(srv))
	r.GET("/api/v1/generations", coverServiceListGenerationsHandler(srv))
}

func coverServiceGenerateCoversHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GenerateCoversRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCoverServiceGenerateCovers)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GenerateCovers(ctx, req.(*GenerateCoversRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*biz.MultiPlatformResult))
	}
}

func coverServiceListPlatformsHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListPlatformsRequest
		http.SetOperation(ctx, OperationCoverServiceListPlatforms)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListPlatforms(ctx, req.(*ListPlatformsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ListPlatformsReply))
	}
}

func coverServiceValidateHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ValidateRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCoverServiceValidate)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Validate(ctx, req.(*ValidateRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ValidateReply))
	}
}

func coverServiceCacheStatsHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CacheStatsRequest
		http.SetOperation(ctx, OperationCoverServiceCacheStats)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CacheStats(ctx, req.(*CacheStatsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*cache.Stats))
	}
}

func coverServiceCacheKeysHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CacheKeysRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCoverServiceCacheKeys)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CacheKeys(ctx, req.(*CacheKeysRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*CacheKeysReply))
	}
}

func coverServiceClearCacheHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ClearCacheRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCoverServiceClearCache)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ClearCache(ctx, req.(*ClearCacheRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ClearCacheReply))
	}
}

func coverServiceListGenerationsHandler(srv CoverServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListGenerationsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCoverServiceListGenerations)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListGenerations(ctx, req.(*ListGenerationsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ListGenerationsReply))
	}
}
