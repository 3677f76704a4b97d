package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// createTestLogger 创建写入内存缓冲区的日志记录器
func createTestLogger() (*LogHelper, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(buf), zapcore.DebugLevel)
	return NewLogHelper(NewKratosAdapter(zap.New(core))), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		lines = append(lines, entry)
	}
	return lines
}

func TestLogHelper_TypedMethods(t *testing.T) {
	tests := []struct {
		name     string
		log      func(h *LogHelper)
		wantType string
		level    string
	}{
		{"api", func(h *LogHelper) { h.API("request received", "path", "/api/v1/covers") }, "api", "info"},
		{"auth", func(h *LogHelper) { h.Auth("identity resolved") }, "auth", "debug"},
		{"rate_limit", func(h *LogHelper) { h.RateLimit("denied") }, "rate_limit", "warn"},
		{"render", func(h *LogHelper) { h.Render("rendered") }, "render", "info"},
		{"storage", func(h *LogHelper) { h.Storage("uploaded") }, "storage", "debug"},
		{"database", func(h *LogHelper) { h.Database("saved") }, "database", "debug"},
		{"redis", func(h *LogHelper) { h.Redis("retry") }, "redis", "debug"},
		{"concurrency", func(h *LogHelper) { h.Concurrency("fan out") }, "concurrency", "debug"},
		{"scheduler", func(h *LogHelper) { h.Scheduler("job done") }, "scheduler", "info"},
		{"startup", func(h *LogHelper) { h.Startup("starting") }, "startup", "info"},
		{"success", func(h *LogHelper) { h.Success("done") }, "success", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper, buf := createTestLogger()
			tt.log(helper)

			lines := decodeLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.wantType, lines[0]["type"])
			assert.Equal(t, tt.level, lines[0]["level"])
			assert.NotEmpty(t, lines[0]["msg"])
		})
	}
}

func TestLogHelper_Degraded(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Degraded("redis unavailable, allowing request", "identity", "ip:10.0.0.1")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "degraded", lines[0]["type"])
	assert.Equal(t, true, lines[0]["degraded"])
	assert.Equal(t, "ip:10.0.0.1", lines[0]["identity"])
}

func TestLogHelper_RequestWithContext(t *testing.T) {
	helper, buf := createTestLogger()
	ctx := WithRequestContext(context.Background(), "abc123defg", "ip:10.0.0.1", "/api/v1/covers")

	helper.RequestWithContext(ctx, "POST", "/api/v1/covers", 200, 12)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "request", lines[0]["type"])
	assert.Equal(t, "abc123defg", lines[0]["request_id"])
	assert.Equal(t, float64(200), lines[0]["status"])
	assert.Contains(t, lines[0]["msg"], "POST /api/v1/covers - 200")
}

func TestLogHelper_SlowRequest(t *testing.T) {
	helper, buf := createTestLogger()

	helper.RequestWithContext(context.Background(), "POST", "/api/v1/covers", 200, slowRequestThresholdMs+1)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "slow_request", lines[1]["type"])
	assert.Equal(t, "unknown", lines[1]["request_id"])
}

func TestLogHelper_CacheStats(t *testing.T) {
	helper, buf := createTestLogger()

	helper.CacheStats("covers", 10, 100, 3, 1, 0, 2048)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "cache_stats", lines[0]["type"])
	assert.Equal(t, "75.00%", lines[0]["hit_rate"])

	// no traffic yet
	buf.Reset()
	helper.CacheStats("covers", 0, 100, 0, 0, 0, 0)
	lines = decodeLines(t, buf)
	assert.Equal(t, "0.00%", lines[0]["hit_rate"])
}

func TestKratosAdapter_SanitizesFields(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Infow("msg", "calling renderer", "api_key", "rk-1234567890abcd", "attempt", 2)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "calling renderer", lines[0]["msg"])
	assert.Equal(t, "rk-1*********abcd", lines[0]["api_key"])
	assert.Equal(t, float64(2), lines[0]["attempt"])
}
