// Package platform holds the static social-platform registry together with the
// pure layout and validation functions computed against it.
package platform

import (
	"sort"
	"strings"
)

// Image formats accepted by at least one platform.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatGIF  = "gif"
)

// Spec describes the cover requirements of one platform.
type Spec struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	// MaxFileSize is in bytes.
	MaxFileSize      int64    `json:"max_file_size"`
	SupportedFormats []string `json:"supported_formats"`

	TitleMin         int `json:"title_min"`
	TitleMax         int `json:"title_max"`
	ContentSoftLimit int `json:"content_soft_limit"`
	// MaxTextLength bounds the article text forwarded to the renderer, in runes.
	MaxTextLength int `json:"max_text_length"`

	DefaultLayout    Layout `json:"default_layout"`
	TitleFontSize    int    `json:"title_font_size"`
	SubtitleFontSize int    `json:"subtitle_font_size"`
	// Hashtags marks platforms where posts without hashtags get an advisory warning.
	Hashtags bool `json:"hashtags"`
}

// SupportsFormat reports whether format (case-insensitive, "jpg" == "jpeg") is accepted.
func (s *Spec) SupportsFormat(format string) bool {
	f := NormalizeFormat(format)
	for _, sf := range s.SupportedFormats {
		if sf == f {
			return true
		}
	}
	return false
}

// NormalizeFormat lowercases a format name and folds aliases.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "image/"))
	if f == "jpg" {
		return FormatJPEG
	}
	return f
}

const mb = 1 << 20

var builtin = []Spec{
	{
		ID: "wechat", Name: "WeChat Official Account", Width: 900, Height: 383,
		MaxFileSize: 5 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatGIF},
		TitleMin: 5, TitleMax: 64, ContentSoftLimit: 20000, MaxTextLength: 2000,
		DefaultLayout: LayoutCenter, TitleFontSize: 44, SubtitleFontSize: 24,
	},
	{
		ID: "xiaohongshu", Name: "Xiaohongshu", Width: 1080, Height: 1440,
		MaxFileSize: 20 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatWebP},
		TitleMin: 2, TitleMax: 20, ContentSoftLimit: 1000, MaxTextLength: 1000,
		DefaultLayout: LayoutTop, TitleFontSize: 72, SubtitleFontSize: 36, Hashtags: true,
	},
	{
		ID: "weibo", Name: "Weibo", Width: 1000, Height: 562,
		MaxFileSize: 20 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatGIF},
		TitleMin: 1, TitleMax: 30, ContentSoftLimit: 2000, MaxTextLength: 2000,
		DefaultLayout: LayoutCenter, TitleFontSize: 48, SubtitleFontSize: 26, Hashtags: true,
	},
	{
		ID: "zhihu", Name: "Zhihu", Width: 1200, Height: 800,
		MaxFileSize: 10 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 5, TitleMax: 50, ContentSoftLimit: 50000, MaxTextLength: 3000,
		DefaultLayout: LayoutLeft, TitleFontSize: 56, SubtitleFontSize: 28,
	},
	{
		ID: "twitter", Name: "X (Twitter)", Width: 1200, Height: 675,
		MaxFileSize: 5 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatWebP, FormatGIF},
		TitleMin: 1, TitleMax: 70, ContentSoftLimit: 280, MaxTextLength: 280,
		DefaultLayout: LayoutCenter, TitleFontSize: 56, SubtitleFontSize: 30, Hashtags: true,
	},
	{
		ID: "linkedin", Name: "LinkedIn", Width: 1200, Height: 627,
		MaxFileSize: 5 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 10, TitleMax: 150, ContentSoftLimit: 3000, MaxTextLength: 3000,
		DefaultLayout: LayoutLeft, TitleFontSize: 52, SubtitleFontSize: 28,
	},
	{
		ID: "facebook", Name: "Facebook", Width: 1200, Height: 630,
		MaxFileSize: 8 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 1, TitleMax: 100, ContentSoftLimit: 5000, MaxTextLength: 5000,
		DefaultLayout: LayoutBottom, TitleFontSize: 52, SubtitleFontSize: 28,
	},
	{
		ID: "instagram", Name: "Instagram", Width: 1080, Height: 1080,
		MaxFileSize: 8 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 1, TitleMax: 60, ContentSoftLimit: 2200, MaxTextLength: 2200,
		DefaultLayout: LayoutCenter, TitleFontSize: 64, SubtitleFontSize: 32, Hashtags: true,
	},
	{
		ID: "medium", Name: "Medium", Width: 1400, Height: 788,
		MaxFileSize: 25 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatGIF},
		TitleMin: 10, TitleMax: 100, ContentSoftLimit: 100000, MaxTextLength: 4000,
		DefaultLayout: LayoutBottom, TitleFontSize: 60, SubtitleFontSize: 30,
	},
	{
		ID: "bilibili", Name: "Bilibili", Width: 1146, Height: 717,
		MaxFileSize: 5 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 2, TitleMax: 80, ContentSoftLimit: 2000, MaxTextLength: 2000,
		DefaultLayout: LayoutCenter, TitleFontSize: 60, SubtitleFontSize: 30,
	},
	{
		ID: "youtube", Name: "YouTube", Width: 1280, Height: 720,
		MaxFileSize: 2 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG, FormatGIF},
		TitleMin: 1, TitleMax: 100, ContentSoftLimit: 5000, MaxTextLength: 5000,
		DefaultLayout: LayoutLeft, TitleFontSize: 72, SubtitleFontSize: 36,
	},
}

// Registry is a read-only platform lookup table.
type Registry struct {
	specs map[string]Spec
	order []string
}

// NewRegistry builds a registry from specs. AspectRatio is derived from the
// dimensions when left zero. Later duplicates replace earlier ones.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if s.AspectRatio == 0 && s.Height > 0 {
			s.AspectRatio = float64(s.Width) / float64(s.Height)
		}
		if _, dup := r.specs[s.ID]; !dup {
			r.order = append(r.order, s.ID)
		}
		r.specs[s.ID] = s
	}
	return r
}

// NewDefaultRegistry returns the registry of built-in platforms.
func NewDefaultRegistry() *Registry {
	return NewRegistry(builtin...)
}

// GetPlatform returns a copy of the spec registered under id.
func (r *Registry) GetPlatform(id string) (*Spec, bool) {
	s, ok := r.specs[id]
	if !ok {
		return nil, false
	}
	s.SupportedFormats = append([]string(nil), s.SupportedFormats...)
	return &s, true
}

// List returns every spec sorted by id.
func (r *Registry) List() []Spec {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	out := make([]Spec, 0, len(ids))
	for _, id := range ids {
		s, _ := r.GetPlatform(id)
		out = append(out, *s)
	}
	return out
}
