package server

import (
	"context"

	"CoverLane/internal/biz"
	"CoverLane/internal/conf"
	"CoverLane/internal/server/middleware"
	"CoverLane/internal/service"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// rateLimited lists the operations subject to admission control.
var rateLimited = map[string]struct{}{
	service.OperationCoverServiceGenerateCovers: {},
	service.OperationCoverServiceValidate:       {},
}

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, coverService *service.CoverService, limiter *biz.RateLimiterUseCase, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Auth(logHelper),
			middleware.Logging(logHelper),
			selector.Server(middleware.RateLimit(limiter, logHelper)).
				Match(func(_ context.Context, operation string) bool {
					_, ok := rateLimited[operation]
					return ok
				}).
				Build(),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	service.RegisterCoverServiceHTTPServer(srv, coverService)

	return srv
}
