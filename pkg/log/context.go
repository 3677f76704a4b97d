package log

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// contextKey 是用于存储 RequestContext 的私有 key 类型
type contextKey string

const requestContextKey contextKey = "coverlane_request_context"

// RequestContext carries per-request tracing data through context.Context.
type RequestContext struct {
	RequestID string    // 10 位短 ID，如 mgrn0zfqda
	Identity  string    // caller identity used for admission control
	Operation string    // transport operation or URL path
	StartTime time.Time // request start
}

var (
	randSource  = rand.NewSource(time.Now().UnixNano())
	randMutex   sync.Mutex
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateRequestID 生成10位随机请求ID（base36）
func GenerateRequestID() string {
	randMutex.Lock()
	defer randMutex.Unlock()

	b := make([]byte, 10)
	for i := range b {
		b[i] = base36Chars[randSource.Int63()%36]
	}
	return string(b)
}

// WithRequestContext stores a RequestContext in ctx.
func WithRequestContext(ctx context.Context, requestID, identity, operation string) context.Context {
	return context.WithValue(ctx, requestContextKey, &RequestContext{
		RequestID: requestID,
		Identity:  identity,
		Operation: operation,
		StartTime: time.Now(),
	})
}

// WithIdentity returns a copy of ctx whose RequestContext carries identity.
// The RequestContext already stored in ctx is never mutated.
func WithIdentity(ctx context.Context, identity string) context.Context {
	cur := GetRequestContext(ctx)
	next := *cur
	next.Identity = identity
	if next.StartTime.IsZero() {
		next.StartTime = time.Now()
	}
	return context.WithValue(ctx, requestContextKey, &next)
}

// GetRequestContext 从 Context 中提取 RequestContext
// 如果不存在，返回 RequestID 为 "unknown" 的默认值
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{RequestID: "unknown"}
}

// GetRequestID 从 Context 中提取 Request ID
func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}

// GetIdentity 从 Context 中提取调用方身份
func GetIdentity(ctx context.Context) string {
	return GetRequestContext(ctx).Identity
}

// GetElapsedTime 获取请求已执行时间（毫秒）
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
