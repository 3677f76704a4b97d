package platform

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Validation thresholds.
const (
	// DimensionTolerancePx is the allowed distance from the required width/height.
	DimensionTolerancePx = 10
	// AspectRatioTolerance is the deviation above which the ratio warning is "significant".
	AspectRatioTolerance = 0.05
	// aspectRatioNotice is the deviation above which any ratio warning is emitted.
	aspectRatioNotice = 0.01
	// nearLimitRatio flags content and titles that use 90% or more of a soft limit.
	nearLimitRatio = 0.9
)

// Issue codes. Errors reject the candidate; warnings are advisory.
const (
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeDimensionMismatch    = "DIMENSION_MISMATCH"
	CodeUnsupportedFormat    = "UNSUPPORTED_FORMAT"
	CodeTitleEmpty           = "TITLE_EMPTY"
	CodeTitleTooShort        = "TITLE_TOO_SHORT"
	CodeTitleTooLong         = "TITLE_TOO_LONG"
	CodeTitleNearLimit       = "TITLE_NEAR_LIMIT"
	CodeAspectRatioDeviation = "ASPECT_RATIO_DEVIATION"
	CodeContentNearLimit     = "CONTENT_NEAR_LIMIT"
	CodeContentOverLimit     = "CONTENT_OVER_LIMIT"
	CodeMissingHashtags      = "MISSING_HASHTAGS"
)

// Issue is one validation finding.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects hard errors and soft warnings. Valid is true iff
// there are no errors.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *ValidationResult) fail(code, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

func (r *ValidationResult) warn(code, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

// HasError reports whether an error with code was recorded.
func (r ValidationResult) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether a warning with code was recorded.
func (r ValidationResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Messages flattens issues for logging and error strings.
func Messages(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Message)
	}
	return out
}

// ImageMetadata describes a candidate cover image.
type ImageMetadata struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
	Format    string `json:"format"`
}

// ValidateImage checks meta against the platform's structural constraints.
//
// File size, format and (for strict platforms) dimensions are errors because
// the platform rejects or re-crops such uploads. Aspect-ratio drift is only a
// warning.
func ValidateImage(spec *Spec, meta ImageMetadata) ValidationResult {
	res := ValidationResult{Valid: true}

	if spec.MaxFileSize > 0 && meta.SizeBytes > spec.MaxFileSize {
		res.fail(CodeFileTooLarge, "file size %s exceeds %s limit of %s",
			humanBytes(meta.SizeBytes), spec.Name, humanBytes(spec.MaxFileSize))
	}

	if !spec.SupportsFormat(meta.Format) {
		res.fail(CodeUnsupportedFormat, "format %q is not supported by %s (supported: %s)",
			meta.Format, spec.Name, strings.Join(spec.SupportedFormats, ", "))
	}

	if absInt(meta.Width-spec.Width) > DimensionTolerancePx || absInt(meta.Height-spec.Height) > DimensionTolerancePx {
		res.fail(CodeDimensionMismatch, "dimensions %dx%d are outside %dx%d (±%dpx) required by %s",
			meta.Width, meta.Height, spec.Width, spec.Height, DimensionTolerancePx, spec.Name)
	}

	if meta.Height > 0 && spec.AspectRatio > 0 {
		actual := float64(meta.Width) / float64(meta.Height)
		deviation := math.Abs(actual-spec.AspectRatio) / spec.AspectRatio
		switch {
		case deviation > AspectRatioTolerance:
			res.warn(CodeAspectRatioDeviation, "aspect ratio %.3f deviates %.1f%% from %.3f; %s may crop the image",
				actual, deviation*100, spec.AspectRatio, spec.Name)
		case deviation > aspectRatioNotice:
			res.warn(CodeAspectRatioDeviation, "aspect ratio %.3f is slightly off %.3f (%.1f%%)",
				actual, spec.AspectRatio, deviation*100)
		}
	}

	return res
}

// ValidateContent checks the title length bounds (errors) and content length
// and style heuristics (warnings). Lengths are counted in runes.
func ValidateContent(spec *Spec, title, content string) ValidationResult {
	res := ValidationResult{Valid: true}

	titleLen := utf8.RuneCountInString(strings.TrimSpace(title))
	switch {
	case titleLen == 0:
		res.fail(CodeTitleEmpty, "title is required")
	case spec.TitleMin > 0 && titleLen < spec.TitleMin:
		res.fail(CodeTitleTooShort, "title has %d characters, %s requires at least %d", titleLen, spec.Name, spec.TitleMin)
	case spec.TitleMax > 0 && titleLen > spec.TitleMax:
		res.fail(CodeTitleTooLong, "title has %d characters, %s allows at most %d", titleLen, spec.Name, spec.TitleMax)
	case spec.TitleMax > 0 && float64(titleLen) >= float64(spec.TitleMax)*nearLimitRatio:
		res.warn(CodeTitleNearLimit, "title uses %d of %d characters and may be truncated in feeds", titleLen, spec.TitleMax)
	}

	if spec.ContentSoftLimit > 0 {
		contentLen := utf8.RuneCountInString(content)
		switch {
		case contentLen > spec.ContentSoftLimit:
			res.warn(CodeContentOverLimit, "content has %d characters, over the %d recommended for %s",
				contentLen, spec.ContentSoftLimit, spec.Name)
		case float64(contentLen) >= float64(spec.ContentSoftLimit)*nearLimitRatio:
			res.warn(CodeContentNearLimit, "content has %d characters, close to the %d recommended for %s",
				contentLen, spec.ContentSoftLimit, spec.Name)
		}
	}

	if spec.Hashtags && !strings.Contains(content, "#") && !strings.Contains(title, "#") {
		res.warn(CodeMissingHashtags, "add hashtags to improve reach on %s", spec.Name)
	}

	return res
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func humanBytes(n int64) string {
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%dB", n)
}
