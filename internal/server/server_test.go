package server

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"CoverLane/internal/biz"
	"CoverLane/internal/conf"
	"CoverLane/internal/data"
	"CoverLane/internal/model"
	"CoverLane/internal/server/middleware"
	"CoverLane/internal/service"
	"CoverLane/pkg/platform"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/durationpb"
)

type stubRenderer struct{}

func (stubRenderer) RenderCover(_ context.Context, req *model.RenderRequest) (*model.RenderedImage, error) {
	return &model.RenderedImage{
		Data:        []byte("img"),
		ContentType: "image/" + req.Format,
		Metadata:    platform.ImageMetadata{Width: req.Width, Height: req.Height, SizeBytes: 3, Format: req.Format},
	}, nil
}

type testApp struct {
	http *http.Server
	task *biz.MaintenanceTask
}

func newTestApp(t *testing.T, limit int32) *testApp {
	t.Helper()
	logger := log.NewStdLogger(os.Stdout)

	gc := &conf.Generation{Parallel: true, MaxConcurrency: 3, MaxPlatforms: 10, MaxTextLength: 10000}
	cc := &conf.Cache{MaxSize: 100, DefaultTtl: durationpb.New(time.Minute)}
	lc := &conf.Limiter{Strategy: conf.StrategyFixedWindow, Limit: limit, Window: durationpb.New(time.Hour)}

	repo, err := data.NewMemoryRateLimitRepo(100, logger)
	require.NoError(t, err)
	limiter := biz.NewRateLimiterUseCase(lc, repo, logger)

	registry := platform.NewDefaultRegistry()
	rc := biz.NewResultCache(cc)
	orchestrator := biz.NewOrchestrator(gc, registry, stubRenderer{}, data.NewInlineAssetStore(), logger)
	uc := biz.NewGenerationUsecase(gc, cc, orchestrator, registry, rc, nil, data.NewGenerationHistoryRepo(nil, logger), logger)

	return &testApp{
		http: NewHTTPServer(&conf.Server{}, service.NewCoverService(uc, logger), limiter, logger),
		task: biz.NewMaintenanceTask(rc, limiter, logger),
	}
}

func (a *testApp) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *nethttp.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.http.ServeHTTP(rec, req)
	return rec
}

const coversBody = `{"title":"Spring launch","text":"New colors are here.","platforms":["weibo","facebook"]}`

func TestHTTP_GenerateCovers(t *testing.T) {
	app := newTestApp(t, 10)

	rec := app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.CacheMiss, rec.Header().Get(service.HeaderCache))
	assert.Equal(t, "req-1", rec.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "10", rec.Header().Get(middleware.HeaderRateLimitLimit))
	assert.Equal(t, "9", rec.Header().Get(middleware.HeaderRateLimitRemaining))

	var res biz.MultiPlatformResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, "weibo", res.Results[0].Platform)

	rec = app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, service.CacheHit, rec.Header().Get(service.HeaderCache))
}

func TestHTTP_RateLimited(t *testing.T) {
	app := newTestApp(t, 2)
	headers := map[string]string{"Authorization": "Bearer sk-test-key-000001"}

	for i := 0; i < 2; i++ {
		rec := app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, headers)
		require.Equal(t, nethttp.StatusOK, rec.Code)
	}

	rec := app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, headers)
	require.Equal(t, nethttp.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRetryAfter))
	assert.Equal(t, "0", rec.Header().Get(middleware.HeaderRateLimitRemaining))

	var body struct {
		Reason   string            `json:"reason"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, biz.ReasonRateLimitExceeded, body.Reason)
	assert.Equal(t, "2", body.Metadata["limit"])

	// another key has its own budget
	rec = app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, map[string]string{"X-API-Key": "sk-other-key-000002"})
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	// read-only routes are not limited
	rec = app.do(nethttp.MethodGet, "/api/v1/platforms", "", headers)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.HeaderRateLimitLimit))
}

func TestHTTP_BadRequest(t *testing.T) {
	app := newTestApp(t, 10)

	rec := app.do(nethttp.MethodPost, "/api/v1/covers", `{"title":"x","text":"y","platforms":[]}`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = app.do(nethttp.MethodPost, "/api/v1/covers", `{not json`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestHTTP_ReadEndpoints(t *testing.T) {
	app := newTestApp(t, 10)

	rec := app.do(nethttp.MethodGet, "/api/v1/platforms", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var platforms service.ListPlatformsReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &platforms))
	assert.Len(t, platforms.Platforms, 11)

	rec = app.do(nethttp.MethodPost, "/api/v1/validate", `{"platform":"weibo","title":"Hello","content":"short"}`, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var validation service.ValidateReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validation))
	assert.True(t, validation.Valid)

	rec = app.do(nethttp.MethodPost, "/api/v1/validate", `{"platform":"myspace","title":"Hello"}`, nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)

	rec = app.do(nethttp.MethodGet, "/api/v1/generations?limit=5", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"generations":[]}`, rec.Body.String())
}

func TestHTTP_CacheAdmin(t *testing.T) {
	app := newTestApp(t, 10)

	rec := app.do(nethttp.MethodPost, "/api/v1/covers", coversBody, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	rec = app.do(nethttp.MethodGet, "/api/v1/cache/stats", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var stats struct {
		Entries int `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entries)

	rec = app.do(nethttp.MethodGet, "/api/v1/cache/keys?pattern=%5Ecover", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var keys service.CacheKeysReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Len(t, keys.Keys, 1)

	rec = app.do(nethttp.MethodDelete, "/api/v1/cache", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())
}

func TestMaintenanceServer(t *testing.T) {
	app := newTestApp(t, 10)
	logger := log.NewStdLogger(os.Stdout)

	srv, err := NewMaintenanceServer(&conf.Maintenance{
		CacheSweep:     "@every 1m",
		LimiterCleanup: "@every 5m",
	}, app.task, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Jobs())

	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))

	_, err = NewMaintenanceServer(&conf.Maintenance{CacheStats: "not a schedule"}, app.task, logger)
	assert.Error(t, err)

	srv, err = NewMaintenanceServer(nil, app.task, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, srv.Jobs())
}

func TestMaintenanceServer_JobWrapper(t *testing.T) {
	app := newTestApp(t, 10)
	srv, err := NewMaintenanceServer(nil, app.task, log.NewStdLogger(os.Stdout))
	require.NoError(t, err)

	ran := false
	srv.wrap("deadline", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		ran = hasDeadline
		return nil
	})()
	assert.True(t, ran)

	// failures are logged, never panic
	srv.wrap("failing", func(context.Context) error { return assert.AnError })()
}

func TestGRPCServer_Health(t *testing.T) {
	srv := NewGRPCServer(&conf.Server{Grpc: &conf.Server_GRPC{
		Network: "tcp",
		Addr:    "127.0.0.1:0",
		Timeout: durationpb.New(time.Second),
	}}, log.NewStdLogger(os.Stdout))

	endpoint, err := srv.Endpoint()
	require.NoError(t, err)

	go func() { _ = srv.Start(context.Background()) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := ggrpc.NewClient(endpoint.Host, ggrpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}, ggrpc.WaitForReady(true))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
