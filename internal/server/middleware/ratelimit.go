package middleware

import (
	"context"
	"math"
	"strconv"

	"CoverLane/internal/biz"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// Rate limit reply headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// anonymousIdentity buckets requests that reached the limiter without an identity.
const anonymousIdentity = "anonymous"

// RateLimit admits or rejects a request by caller identity. Admitted and
// rejected replies both carry the X-RateLimit-* headers; a rejection returns
// 429 with Retry-After in whole seconds.
func RateLimit(limiter *biz.RateLimiterUseCase, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			identity := pkglog.GetIdentity(ctx)
			if identity == "" {
				identity = anonymousIdentity
			}

			res := limiter.CheckLimit(ctx, identity)

			if tr, ok := transport.FromServerContext(ctx); ok && res.Limit > 0 {
				h := tr.ReplyHeader()
				h.Set(HeaderRateLimitLimit, strconv.FormatInt(res.Limit, 10))
				h.Set(HeaderRateLimitRemaining, strconv.FormatInt(res.Remaining, 10))
				h.Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetTime.Unix(), 10))
				if !res.Allowed {
					h.Set(HeaderRetryAfter, strconv.FormatInt(retryAfterSeconds(res), 10))
				}
			}

			if !res.Allowed {
				logger.RateLimit("request rejected",
					"identity", identity,
					"limit", res.Limit,
					"retry_after_ms", res.RetryAfter.Milliseconds(),
					"request_id", pkglog.GetRequestID(ctx))
				return nil, biz.NewRateLimitExceededError(res)
			}
			return handler(ctx, req)
		}
	}
}

func retryAfterSeconds(res *biz.RateLimitResult) int64 {
	secs := int64(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
