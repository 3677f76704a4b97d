package middleware

import (
	"context"
	"time"

	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// Logging returns a middleware that logs every request. It reuses or
// generates the request id, echoes it in the reply and injects the request
// context so downstream logs carry it.
//
// Log example:
//
//	🟢 POST /api/v1/covers - 200 (542ms) | RequestID: mgrn0zfqda
//	🐌 [mgrn0zfqda] Slow request detected | POST /api/v1/covers | 13438ms
func Logging(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				operation string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
				method = tr.Kind().String()
				path = operation
				requestID = tr.RequestHeader().Get(HeaderRequestID)

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
				}
				if requestID == "" {
					requestID = pkglog.GenerateRequestID()
				}
				tr.ReplyHeader().Set(HeaderRequestID, requestID)
			}
			if requestID == "" {
				requestID = pkglog.GenerateRequestID()
			}

			// identity set by Auth
			identity := pkglog.GetIdentity(ctx)
			ctx = pkglog.WithRequestContext(ctx, requestID, identity, operation)

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()
			logger.RequestWithContext(ctx, method, path, extractHTTPStatus(err), duration,
				"ip", ip,
				"user_agent", userAgent,
			)

			return reply, err
		}
	}
}

// extractHTTPStatus maps a handler error to the HTTP status Kratos will write.
func extractHTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	return int(errors.FromError(err).Code)
}
