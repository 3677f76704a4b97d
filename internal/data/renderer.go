package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF for DecodeConfig
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig
	"io"
	"net/http"
	"strings"
	"time"

	"CoverLane/internal/conf"
	"CoverLane/internal/model"
	pkglog "CoverLane/pkg/log"
	"CoverLane/pkg/httpclient"
	"CoverLane/pkg/platform"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/time/rate"
)

const (
	defaultRenderTimeout = 30 * time.Second

	// maxRenderResponse bounds a rendered image read from the collaborator.
	maxRenderResponse = 32 << 20
)

// ErrRendererNotConfigured is returned when no render endpoint is configured.
var ErrRendererNotConfigured = errors.New("render service not configured")

// hostedImage is the JSON reply of a collaborator that stores images itself.
type hostedImage struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

// HTTPRenderer calls the external render service. Outbound calls share one
// token bucket so a burst of multi-platform runs cannot overload it.
type HTTPRenderer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *pkglog.LogHelper
}

// NewHTTPRenderer creates the render client from configuration.
func NewHTTPRenderer(c *conf.Data, logger log.Logger) (*HTTPRenderer, error) {
	helper := pkglog.NewLogHelper(logger)

	r := &HTTPRenderer{
		client:  &http.Client{Timeout: defaultRenderTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  helper,
	}
	if c == nil || c.Render == nil || c.Render.Endpoint == "" {
		helper.Degraded("render endpoint not configured, every generation will fail")
		return r, nil
	}

	timeout := defaultRenderTimeout
	if t := c.Render.Timeout.AsDuration(); t > 0 {
		timeout = t
	}
	client, err := httpclient.New(c.Render.Proxy, timeout)
	if err != nil {
		return nil, fmt.Errorf("render client: %w", err)
	}

	r.endpoint = c.Render.Endpoint
	r.apiKey = c.Render.ApiKey
	r.client = client
	if c.Render.Rps > 0 {
		burst := int(c.Render.Burst)
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(c.Render.Rps), burst)
	}

	helper.Render("render client ready",
		"endpoint", r.endpoint,
		"rps", c.Render.Rps,
		"timeout", timeout.String(),
		"proxied", c.Render.Proxy != "",
	)
	return r, nil
}

// RenderCover renders one cover. An image/* reply is returned as bytes with
// dimensions decoded from its header; a JSON reply describes an image the
// collaborator already hosts.
func (r *HTTPRenderer) RenderCover(ctx context.Context, req *model.RenderRequest) (*model.RenderedImage, error) {
	if r.endpoint == "" {
		return nil, ErrRendererNotConfigured
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("render throttled: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/*, application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	if requestID := pkglog.GetRequestID(ctx); requestID != "unknown" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render service unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderResponse+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read render response: %w", err)
	}
	if len(payload) > maxRenderResponse {
		return nil, fmt.Errorf("render response exceeds %d bytes", maxRenderResponse)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, snippet(payload))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		return decodeHosted(payload, req)
	}
	return decodeImage(payload, contentType, req), nil
}

func decodeHosted(payload []byte, req *model.RenderRequest) (*model.RenderedImage, error) {
	var hosted hostedImage
	if err := json.Unmarshal(payload, &hosted); err != nil {
		return nil, fmt.Errorf("failed to decode render response: %w", err)
	}
	if hosted.URL == "" {
		return nil, errors.New("render response carries no image")
	}
	meta := platform.ImageMetadata{
		Width:     hosted.Width,
		Height:    hosted.Height,
		SizeBytes: hosted.SizeBytes,
		Format:    hosted.Format,
	}
	if meta.Width == 0 || meta.Height == 0 {
		meta.Width, meta.Height = req.Width, req.Height
	}
	if meta.Format == "" {
		meta.Format = req.Format
	}
	return &model.RenderedImage{URL: hosted.URL, Metadata: meta}, nil
}

// decodeImage reads dimensions from the image header. Formats without a
// registered decoder keep the requested dimensions.
func decodeImage(payload []byte, contentType string, req *model.RenderRequest) *model.RenderedImage {
	meta := platform.ImageMetadata{
		Width:     req.Width,
		Height:    req.Height,
		SizeBytes: int64(len(payload)),
		Format:    formatFromContentType(contentType, req.Format),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
		meta.Width, meta.Height, meta.Format = cfg.Width, cfg.Height, format
	}
	if contentType == "" {
		contentType = "image/" + platform.NormalizeFormat(meta.Format)
	}
	return &model.RenderedImage{Data: payload, ContentType: contentType, Metadata: meta}
}

func formatFromContentType(contentType, fallback string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if f, ok := strings.CutPrefix(mediaType, "image/"); ok && f != "" {
		return platform.NormalizeFormat(f)
	}
	return fallback
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
