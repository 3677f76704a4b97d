// Package middleware provides HTTP middleware for identity extraction, logging and admission control.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Auth resolves the caller identity used for rate limiting and history.
// A caller presenting an API key (Authorization: Bearer or X-API-Key) is
// identified by a digest of the key, anyone else by client IP.
//
// Log example:
//
//	🔐 Identified caller key:3f1c9a0b2d4e5f60 (sk-12345***)
func Auth(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()

					identity := "ip:" + extractClientIP(httpReq)
					if apiKey := extractAPIKey(httpReq); apiKey != "" {
						identity = KeyIdentity(apiKey)
						logger.Auth("Identified caller "+identity+" ("+maskAPIKey(apiKey)+")",
							"identity", identity)
					}
					if ua := httpReq.Header.Get("User-Agent"); ua != "" {
						logger.API("   User-Agent: \""+ua+"\"", "user_agent", ua)
					}

					ctx = pkglog.WithIdentity(ctx, identity)
				}
			}
			return handler(ctx, req)
		}
	}
}

func extractAPIKey(req *http.Request) string {
	if auth := req.Header.Get("Authorization"); auth != "" {
		if key := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); key != "" {
			return key
		}
	}
	return strings.TrimSpace(req.Header.Get("X-API-Key"))
}

// KeyIdentity derives a stable identity from an API key without retaining the key.
func KeyIdentity(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "key:" + hex.EncodeToString(sum[:8])
}

// extractClientIP returns the client address.
// Priority: X-Real-IP > X-Forwarded-For (first hop) > RemoteAddr host.
func extractClientIP(req *http.Request) string {
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}

// maskAPIKey shows the first 8 characters of a key.
// Example: "sk-1234567890abcdef" -> "sk-12345***"
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "***"
}
