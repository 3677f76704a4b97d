package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"CoverLane/internal/conf"
	"CoverLane/internal/model"
	"CoverLane/pkg/article"
	pkglog "CoverLane/pkg/log"
	"CoverLane/pkg/platform"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// Orchestrator limits and defaults.
const (
	DefaultMaxConcurrency = 3
	DefaultMaxPlatforms   = 10
	DefaultMaxTextLength  = 10000

	// CustomizationVersion is the only Customization schema version accepted.
	CustomizationVersion = 1

	defaultLineHeight   = 1.2
	defaultTitleSpacing = 16
	// paddingRatio is the default padding as a share of the shorter canvas side.
	paddingRatio = 0.06
)

// Error reasons returned by the orchestrator.
const (
	ReasonInvalidRequest   = "INVALID_REQUEST"
	ReasonGenerationFailed = "GENERATION_FAILED"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Customization is the closed set of caller overrides applied on top of the
// platform defaults. Zero values mean "use the platform default".
type Customization struct {
	Version          int     `json:"version,omitempty"`
	Layout           string  `json:"layout,omitempty"`
	TitleFontSize    int     `json:"title_font_size,omitempty"`
	SubtitleFontSize int     `json:"subtitle_font_size,omitempty"`
	LineHeight       float64 `json:"line_height,omitempty"`
	TitleSpacing     int     `json:"title_spacing,omitempty"`
	Padding          int     `json:"padding,omitempty"`
	TextColor        string  `json:"text_color,omitempty"`
	BackgroundColor  string  `json:"background_color,omitempty"`
}

// Validate checks every field against its allowed range.
func (c *Customization) Validate() error {
	var problems []string
	if c.Version != 0 && c.Version != CustomizationVersion {
		problems = append(problems, fmt.Sprintf("unsupported version %d", c.Version))
	}
	if c.Layout != "" && platform.ParseLayout(c.Layout) != platform.Layout(c.Layout) {
		problems = append(problems, fmt.Sprintf("unknown layout %q", c.Layout))
	}
	if c.TitleFontSize != 0 && (c.TitleFontSize < 8 || c.TitleFontSize > 400) {
		problems = append(problems, "title_font_size must be within 8..400")
	}
	if c.SubtitleFontSize != 0 && (c.SubtitleFontSize < 8 || c.SubtitleFontSize > 400) {
		problems = append(problems, "subtitle_font_size must be within 8..400")
	}
	if c.LineHeight != 0 && (c.LineHeight < 0.8 || c.LineHeight > 3) {
		problems = append(problems, "line_height must be within 0.8..3")
	}
	if c.TitleSpacing < 0 || c.TitleSpacing > 500 {
		problems = append(problems, "title_spacing must be within 0..500")
	}
	if c.Padding < 0 || c.Padding > 1000 {
		problems = append(problems, "padding must be within 0..1000")
	}
	if c.TextColor != "" && !hexColor.MatchString(c.TextColor) {
		problems = append(problems, "text_color must be #RRGGBB")
	}
	if c.BackgroundColor != "" && !hexColor.MatchString(c.BackgroundColor) {
		problems = append(problems, "background_color must be #RRGGBB")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// GenerationRequest asks for one cover per platform.
type GenerationRequest struct {
	Title         string         `json:"title,omitempty"`
	Subtitle      string         `json:"subtitle,omitempty"`
	Text          string         `json:"text"`
	Platforms     []string       `json:"platforms"`
	Template      string         `json:"template,omitempty"`
	Customization *Customization `json:"customization,omitempty"`
}

// RunOptions controls scheduling of one run.
type RunOptions struct {
	Parallel       bool
	MaxConcurrency int
	FailFast       bool
}

// CoverResult is one successfully generated cover.
type CoverResult struct {
	Platform     string                `json:"platform"`
	PlatformName string                `json:"platform_name"`
	ImageURL     string                `json:"image_url"`
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Format       string                `json:"format"`
	SizeBytes    int64                 `json:"size_bytes"`
	Title        string                `json:"title"`
	Text         string                `json:"text"`
	Layout       platform.LayoutConfig `json:"layout"`
	Warnings     []platform.Issue      `json:"warnings,omitempty"`
	DurationMs   int64                 `json:"duration_ms"`
}

// PlatformError is a per-platform failure. It is a value, not an error, so a
// batch can report several of them next to its successes.
type PlatformError struct {
	PlatformID string `json:"platform"`
	Error      string `json:"error"`
}

// MultiPlatformResult aggregates one run. SuccessCount+FailureCount equals the
// number of platforms that passed registry lookup; unknown platforms appear in
// Errors and TotalPlatforms only.
type MultiPlatformResult struct {
	Results        []*CoverResult  `json:"results"`
	Errors         []PlatformError `json:"errors"`
	TotalPlatforms int             `json:"total_platforms"`
	SuccessCount   int             `json:"success_count"`
	FailureCount   int             `json:"failure_count"`
	Cached         bool            `json:"cached"`
}

// RenderRequest and RenderedImage are shared with the data-layer renderer.
type (
	RenderRequest = model.RenderRequest
	RenderedImage = model.RenderedImage
)

// Renderer produces one cover image. Implemented by data.HTTPRenderer.
type Renderer interface {
	RenderCover(ctx context.Context, req *RenderRequest) (*RenderedImage, error)
}

// AssetStore persists rendered images and returns their public URL.
type AssetStore interface {
	Put(ctx context.Context, platformID string, data []byte, contentType string) (string, error)
}

// PlatformRegistry looks up platform specs. Implemented by *platform.Registry.
type PlatformRegistry interface {
	GetPlatform(id string) (*platform.Spec, bool)
	List() []platform.Spec
}

// Orchestrator validates a multi-platform request and fans it out to the
// renderer with bounded concurrency.
type Orchestrator struct {
	registry      PlatformRegistry
	renderer      Renderer
	assets        AssetStore
	maxPlatforms  int
	maxTextLength int
	logger        *pkglog.LogHelper
}

// NewOrchestrator creates a new Orchestrator. assets may be nil, in which case
// the renderer's URL is used as is.
func NewOrchestrator(c *conf.Generation, registry PlatformRegistry, renderer Renderer, assets AssetStore, logger log.Logger) *Orchestrator {
	o := &Orchestrator{
		registry:      registry,
		renderer:      renderer,
		assets:        assets,
		maxPlatforms:  DefaultMaxPlatforms,
		maxTextLength: DefaultMaxTextLength,
		logger:        pkglog.NewLogHelper(logger),
	}
	if c != nil {
		if c.MaxPlatforms > 0 {
			o.maxPlatforms = int(c.MaxPlatforms)
		}
		if c.MaxTextLength > 0 {
			o.maxTextLength = int(c.MaxTextLength)
		}
	}
	return o
}

// ValidateRequest rejects malformed requests as a whole before any work starts.
func (o *Orchestrator) ValidateRequest(req *GenerationRequest) error {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return errors.BadRequest(ReasonInvalidRequest, "text is required")
	}
	if n := utf8.RuneCountInString(req.Text); n > o.maxTextLength {
		return errors.BadRequest(ReasonInvalidRequest,
			fmt.Sprintf("text has %d characters, at most %d allowed", n, o.maxTextLength))
	}
	if len(req.Platforms) == 0 {
		return errors.BadRequest(ReasonInvalidRequest, "at least one platform is required")
	}
	if len(req.Platforms) > o.maxPlatforms {
		return errors.BadRequest(ReasonInvalidRequest,
			fmt.Sprintf("%d platforms requested, at most %d allowed", len(req.Platforms), o.maxPlatforms))
	}
	seen := make(map[string]struct{}, len(req.Platforms))
	for _, p := range req.Platforms {
		if _, dup := seen[p]; dup {
			return errors.BadRequest(ReasonInvalidRequest, fmt.Sprintf("duplicate platform %q", p))
		}
		seen[p] = struct{}{}
	}
	if req.Customization != nil {
		if err := req.Customization.Validate(); err != nil {
			return errors.BadRequest(ReasonInvalidRequest, "invalid customization: "+err.Error())
		}
	}
	return nil
}

type jobOutcome struct {
	result *CoverResult
	err    error
}

// Run generates one cover per requested platform.
//
// Unknown platforms are reported first and never scheduled. The remaining
// jobs run in chunks of MaxConcurrency; a chunk starts only after the previous
// one finished. Without FailFast a failed job is recorded and the batch
// continues; with FailFast the first failure cancels the chunk and Run returns
// it. Results and Errors keep request order whatever the completion order.
func (o *Orchestrator) Run(ctx context.Context, req *GenerationRequest, opts RunOptions) (*MultiPlatformResult, error) {
	if err := o.ValidateRequest(req); err != nil {
		return nil, err
	}

	result := &MultiPlatformResult{
		Results:        []*CoverResult{},
		Errors:         []PlatformError{},
		TotalPlatforms: len(req.Platforms),
	}

	specs := make([]*platform.Spec, 0, len(req.Platforms))
	for _, id := range req.Platforms {
		spec, ok := o.registry.GetPlatform(id)
		if !ok {
			result.Errors = append(result.Errors, PlatformError{
				PlatformID: id,
				Error:      fmt.Sprintf("unsupported platform %q", id),
			})
			result.FailureCount++
			continue
		}
		specs = append(specs, spec)
	}

	chunk := 1
	if opts.Parallel {
		chunk = opts.MaxConcurrency
		if chunk <= 0 {
			chunk = DefaultMaxConcurrency
		}
	}

	outcomes := make([]jobOutcome, len(specs))
	for start := 0; start < len(specs); start += chunk {
		end := min(start+chunk, len(specs))

		if err := ctx.Err(); err != nil {
			for i := start; i < len(specs); i++ {
				outcomes[i].err = err
			}
			o.logger.Warnw("msg", "generation cancelled, remaining platforms skipped",
				"skipped", len(specs)-start, "error", err)
			break
		}

		o.logger.Concurrency("dispatching render chunk",
			"chunk_start", start, "chunk_size", end-start, "total", len(specs))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := o.runJob(gctx, req, specs[i])
				outcomes[i] = jobOutcome{result: res, err: err}
				if err != nil && opts.FailFast {
					return fmt.Errorf("platform %s: %w", specs[i].ID, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			o.logger.Errorw("msg", "generation aborted on first failure", "error", err)
			return nil, errors.InternalServer(ReasonGenerationFailed, err.Error()).WithCause(err)
		}
	}

	for i, out := range outcomes {
		if out.err != nil {
			result.Errors = append(result.Errors, PlatformError{PlatformID: specs[i].ID, Error: out.err.Error()})
			result.FailureCount++
			continue
		}
		result.Results = append(result.Results, out.result)
		result.SuccessCount++
	}

	return result, nil
}

// runJob adapts the request to one platform, renders it and validates the output.
func (o *Orchestrator) runJob(ctx context.Context, req *GenerationRequest, spec *platform.Spec) (*CoverResult, error) {
	started := time.Now()

	text := article.Truncate(req.Text, spec.MaxTextLength)
	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = deriveTitle(req.Text, spec.TitleMax)
	}

	cust := mergeCustomization(req.Customization, spec)
	subtitleFont := 0
	if req.Subtitle != "" {
		subtitleFont = cust.SubtitleFontSize
	}
	layout := platform.ComputeLayout(platform.LayoutInput{
		Width:            spec.Width,
		Height:           spec.Height,
		Padding:          cust.Padding,
		Layout:           platform.Layout(cust.Layout),
		TitleFontSize:    cust.TitleFontSize,
		SubtitleFontSize: subtitleFont,
		LineHeight:       cust.LineHeight,
		TitleSpacing:     cust.TitleSpacing,
	})

	content := platform.ValidateContent(spec, title, text)
	if !content.Valid {
		return nil, fmt.Errorf("content rejected: %s", strings.Join(platform.Messages(content.Errors), "; "))
	}

	format := platform.FormatPNG
	if !spec.SupportsFormat(format) && len(spec.SupportedFormats) > 0 {
		format = spec.SupportedFormats[0]
	}

	img, err := o.renderer.RenderCover(ctx, &RenderRequest{
		Platform:        spec.ID,
		Title:           title,
		Subtitle:        req.Subtitle,
		Text:            text,
		Template:        req.Template,
		Width:           spec.Width,
		Height:          spec.Height,
		Format:          format,
		Layout:          layout,
		TextColor:       cust.TextColor,
		BackgroundColor: cust.BackgroundColor,
	})
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	meta := img.Metadata
	if meta.SizeBytes == 0 {
		meta.SizeBytes = int64(len(img.Data))
	}
	image := platform.ValidateImage(spec, meta)
	if !image.Valid {
		return nil, fmt.Errorf("image rejected: %s", strings.Join(platform.Messages(image.Errors), "; "))
	}

	url := img.URL
	if o.assets != nil && len(img.Data) > 0 {
		url, err = o.assets.Put(ctx, spec.ID, img.Data, img.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
	}

	elapsed := time.Since(started).Milliseconds()
	o.logger.Render("cover rendered",
		"platform", spec.ID,
		"width", meta.Width,
		"height", meta.Height,
		"size_bytes", meta.SizeBytes,
		"duration_ms", elapsed)

	return &CoverResult{
		Platform:     spec.ID,
		PlatformName: spec.Name,
		ImageURL:     url,
		Width:        meta.Width,
		Height:       meta.Height,
		Format:       platform.NormalizeFormat(meta.Format),
		SizeBytes:    meta.SizeBytes,
		Title:        title,
		Text:         text,
		Layout:       layout,
		Warnings:     append(content.Warnings, image.Warnings...),
		DurationMs:   elapsed,
	}, nil
}

// mergeCustomization fills unset fields from the platform defaults.
func mergeCustomization(c *Customization, spec *platform.Spec) Customization {
	var out Customization
	if c != nil {
		out = *c
	}
	if out.Layout == "" {
		out.Layout = string(spec.DefaultLayout)
	}
	if out.TitleFontSize == 0 {
		out.TitleFontSize = spec.TitleFontSize
	}
	if out.SubtitleFontSize == 0 {
		out.SubtitleFontSize = spec.SubtitleFontSize
	}
	if out.LineHeight == 0 {
		out.LineHeight = defaultLineHeight
	}
	if out.TitleSpacing == 0 {
		out.TitleSpacing = defaultTitleSpacing
	}
	if out.Padding == 0 {
		out.Padding = int(float64(min(spec.Width, spec.Height)) * paddingRatio)
	}
	return out
}

// deriveTitle uses the first sentence (or line) of text, cut to maxRunes.
func deriveTitle(text string, maxRunes int) string {
	first := strings.TrimSpace(text)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if sentences := article.Sentences(first); len(sentences) > 0 {
		first = strings.TrimSpace(sentences[0])
	}
	if maxRunes > 0 && utf8.RuneCountInString(first) > maxRunes {
		first = string([]rune(first)[:maxRunes])
	}
	return first
}
