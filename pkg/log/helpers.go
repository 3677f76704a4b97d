package log

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// slowRequestThresholdMs 慢请求阈值（毫秒）。生成请求会调用外部渲染服务，阈值比普通 API 宽松。
const slowRequestThresholdMs = 15000

// LogHelper 扩展 Kratos log.Helper，提供便捷的日志方法
// 通过在日志调用时自动添加 "type" 字段，触发 EmojiConsoleEncoder 的表情符号映射
type LogHelper struct {
	*log.Helper
}

// NewLogHelper 创建增强的日志辅助器
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

func withType(msg, logType string, kvs []interface{}) []interface{} {
	all := make([]interface{}, 0, len(kvs)+4)
	all = append(all, "msg", msg)
	all = append(all, kvs...)
	return append(all, "type", logType)
}

// API 记录 API 相关日志（🔗）
func (h *LogHelper) API(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "api", kvs)...)
}

// Auth 记录身份识别日志（🔓）
func (h *LogHelper) Auth(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "auth", kvs)...)
}

// RateLimit 记录限流拒绝日志（🚦）
func (h *LogHelper) RateLimit(msg string, kvs ...interface{}) {
	h.Warnw(withType(msg, "rate_limit", kvs)...)
}

// Degraded logs an auxiliary subsystem failure that was absorbed (fail open / fail soft).
// It always carries degraded=true so these lines can be told apart from real denials and misses.
func (h *LogHelper) Degraded(msg string, kvs ...interface{}) {
	all := withType(msg, "degraded", kvs)
	h.Warnw(append(all, "degraded", true)...)
}

// Render 记录渲染调用日志（🎨）
func (h *LogHelper) Render(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "render", kvs)...)
}

// Storage 记录对象存储日志（🪣）
func (h *LogHelper) Storage(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "storage", kvs)...)
}

// Database 记录数据库操作日志（💾）
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "database", kvs)...)
}

// Redis 记录 Redis 操作日志（📦）
func (h *LogHelper) Redis(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "redis", kvs)...)
}

// Concurrency 记录并发调度日志（⚡）
func (h *LogHelper) Concurrency(msg string, kvs ...interface{}) {
	h.Debugw(withType(msg, "concurrency", kvs)...)
}

// Scheduler 记录定时任务日志（🎯）
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "scheduler", kvs)...)
}

// Startup 记录启动日志（🚀）
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "startup", kvs)...)
}

// Success 记录成功操作日志（✅）
func (h *LogHelper) Success(msg string, kvs ...interface{}) {
	h.Infow(withType(msg, "success", kvs)...)
}

// RequestWithContext 记录带 Context 的 HTTP 请求日志，并自动检测慢请求
func (h *LogHelper) RequestWithContext(ctx context.Context, method, url string, status int, durationMs int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("%s %s - %d (%dms) | RequestID: %s", method, url, status, durationMs, reqCtx.RequestID)
	all := withType(msg, "request", kvs)
	all = append(all,
		"request_id", reqCtx.RequestID,
		"identity", reqCtx.Identity,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	h.Infow(all...)

	if durationMs > slowRequestThresholdMs {
		h.Warnw(
			"msg", fmt.Sprintf("[%s] Slow request detected | %s %s | %dms", reqCtx.RequestID, method, url, durationMs),
			"request_id", reqCtx.RequestID,
			"duration_ms", durationMs,
			"threshold_ms", slowRequestThresholdMs,
			"type", "slow_request",
		)
	}
}

// CacheStats 记录缓存统计信息（🧹）
func (h *LogHelper) CacheStats(cacheName string, entries, maxSize int, hits, misses, evictions int64, memoryBytes int64) {
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.Infow(
		"msg", fmt.Sprintf("Cache stats - %s | Size: %d/%d, Hit Rate: %.2f%%, Evictions: %d",
			cacheName, entries, maxSize, hitRate, evictions),
		"cache_name", cacheName,
		"entries", entries,
		"max_size", maxSize,
		"hits", hits,
		"misses", misses,
		"evictions", evictions,
		"memory_bytes", memoryBytes,
		"hit_rate", fmt.Sprintf("%.2f%%", hitRate),
		"type", "cache_stats",
	)
}
