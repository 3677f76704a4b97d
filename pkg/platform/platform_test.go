package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLayout_Center(t *testing.T) {
	cfg := ComputeLayout(LayoutInput{
		Width: 1000, Height: 1000, Padding: 60,
		Layout: LayoutCenter, TitleFontSize: 48, LineHeight: 1.2,
	})

	assert.Equal(t, LayoutCenter, cfg.Layout)
	assert.Equal(t, 500.0, cfg.Title.X)
	assert.Equal(t, 500.0, cfg.Title.Y)
	assert.InDelta(t, 792.0, cfg.Title.MaxWidth, 1e-9)
	assert.Equal(t, AlignCenter, cfg.Title.Align)
	assert.Nil(t, cfg.Subtitle)
}

func TestComputeLayout_SubtitleDirection(t *testing.T) {
	base := LayoutInput{
		Width: 1200, Height: 600, Padding: 40,
		TitleFontSize: 50, SubtitleFontSize: 24, LineHeight: 1.3, TitleSpacing: 10,
	}

	tests := []struct {
		layout    Layout
		titleX    float64
		titleY    float64
		subtitleY float64
		align     Align
	}{
		{LayoutCenter, 600, 300 - 30, 300 + 30, AlignCenter},
		{LayoutTop, 600, 40, 100, AlignCenter},
		{LayoutBottom, 600, 560, 500, AlignCenter},
		{LayoutLeft, 40, 300, 360, AlignLeft},
		{LayoutRight, 1160, 300, 360, AlignRight},
	}

	for _, tt := range tests {
		t.Run(string(tt.layout), func(t *testing.T) {
			in := base
			in.Layout = tt.layout
			cfg := ComputeLayout(in)

			assert.Equal(t, tt.titleX, cfg.Title.X)
			assert.Equal(t, tt.titleY, cfg.Title.Y)
			assert.Equal(t, tt.align, cfg.Title.Align)
			require.NotNil(t, cfg.Subtitle)
			assert.Equal(t, tt.subtitleY, cfg.Subtitle.Y)
			assert.Equal(t, cfg.Title.X, cfg.Subtitle.X)
			assert.Equal(t, 24, cfg.Subtitle.FontSize)
			assert.InDelta(t, (1200.0-80)*0.9, cfg.Subtitle.MaxWidth, 1e-9)
		})
	}
}

func TestComputeLayout_UnknownFallsBackToCenter(t *testing.T) {
	in := LayoutInput{Width: 800, Height: 400, Padding: 20, Layout: "diagonal", TitleFontSize: 40}

	cfg := ComputeLayout(in)
	in.Layout = LayoutCenter
	want := ComputeLayout(in)

	assert.Equal(t, want, cfg)
	assert.Equal(t, LayoutCenter, ParseLayout("diagonal"))
}

func TestComputeLayout_PaddingWiderThanCanvas(t *testing.T) {
	cfg := ComputeLayout(LayoutInput{Width: 100, Height: 100, Padding: 80, TitleFontSize: 10})
	assert.Zero(t, cfg.Title.MaxWidth)
}

func testSpec() *Spec {
	r := NewRegistry(Spec{
		ID: "test", Name: "Test", Width: 300, Height: 300,
		MaxFileSize: 5 * mb, SupportedFormats: []string{FormatPNG, FormatJPEG},
		TitleMin: 3, TitleMax: 20, ContentSoftLimit: 100,
	})
	s, _ := r.GetPlatform("test")
	return s
}

func TestValidateImage_FileTooLarge(t *testing.T) {
	res := ValidateImage(testSpec(), ImageMetadata{Width: 300, Height: 300, SizeBytes: 6 * mb, Format: "png"})

	assert.False(t, res.Valid)
	assert.True(t, res.HasError(CodeFileTooLarge))
}

func TestValidateImage_SmallAspectDeviationIsWarning(t *testing.T) {
	// 309/300 = 1.03: within the ±10px tolerance but 3% off the 1:1 ratio
	res := ValidateImage(testSpec(), ImageMetadata{Width: 309, Height: 300, SizeBytes: mb, Format: "jpg"})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.True(t, res.HasWarning(CodeAspectRatioDeviation))
}

func TestValidateImage_ExactMatchIsClean(t *testing.T) {
	res := ValidateImage(testSpec(), ImageMetadata{Width: 300, Height: 300, SizeBytes: 1024, Format: "image/png"})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateImage_DimensionsOutsideTolerance(t *testing.T) {
	res := ValidateImage(testSpec(), ImageMetadata{Width: 311, Height: 300, SizeBytes: 1024, Format: "png"})
	assert.False(t, res.Valid)
	assert.True(t, res.HasError(CodeDimensionMismatch))
	assert.False(t, res.HasWarning(CodeDimensionMismatch))

	res = ValidateImage(testSpec(), ImageMetadata{Width: 310, Height: 290, SizeBytes: 1024, Format: "png"})
	assert.False(t, res.HasError(CodeDimensionMismatch))
}

func TestValidateImage_DimensionMismatchIsErrorOnEveryPlatform(t *testing.T) {
	r := NewDefaultRegistry()

	spec, ok := r.GetPlatform("xiaohongshu")
	require.True(t, ok)
	// same 3:4 ratio at half size
	res := ValidateImage(spec, ImageMetadata{Width: 540, Height: 720, SizeBytes: mb, Format: "png"})
	assert.False(t, res.Valid)
	assert.True(t, res.HasError(CodeDimensionMismatch))

	for _, s := range r.List() {
		s := s
		res := ValidateImage(&s, ImageMetadata{Width: s.Width / 2, Height: s.Height / 2, SizeBytes: 1024, Format: s.SupportedFormats[0]})
		assert.False(t, res.Valid, s.ID)
		assert.True(t, res.HasError(CodeDimensionMismatch), s.ID)
	}
}

func TestValidateImage_UnsupportedFormat(t *testing.T) {
	res := ValidateImage(testSpec(), ImageMetadata{Width: 300, Height: 300, SizeBytes: 1024, Format: "bmp"})

	assert.False(t, res.Valid)
	assert.True(t, res.HasError(CodeUnsupportedFormat))
}

func TestValidateImage_LargeAspectDeviation(t *testing.T) {
	res := ValidateImage(testSpec(), ImageMetadata{Width: 400, Height: 300, SizeBytes: 1024, Format: "png"})

	assert.False(t, res.Valid)
	assert.True(t, res.HasError(CodeDimensionMismatch))
	assert.True(t, res.HasWarning(CodeAspectRatioDeviation))
	assert.False(t, res.HasError(CodeAspectRatioDeviation))
}

func TestValidateContent_TitleBounds(t *testing.T) {
	spec := testSpec()

	tests := []struct {
		name  string
		title string
		code  string
	}{
		{"empty", "   ", CodeTitleEmpty},
		{"too short", "ab", CodeTitleTooShort},
		{"too long", "this title is far too long for the test platform", CodeTitleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateContent(spec, tt.title, "body")
			assert.False(t, res.Valid)
			assert.True(t, res.HasError(tt.code))
		})
	}

	ok := ValidateContent(spec, "Good title", "body")
	assert.True(t, ok.Valid)
}

func TestValidateContent_RunesNotBytes(t *testing.T) {
	spec := testSpec()
	// 3 CJK runes are 9 bytes
	res := ValidateContent(spec, "你好呀", "内容")
	assert.True(t, res.Valid)
}

func TestValidateContent_SoftWarnings(t *testing.T) {
	spec := testSpec()
	spec.Hashtags = true

	near := ValidateContent(spec, "Title", string(make([]byte, 95)))
	assert.True(t, near.Valid)
	assert.True(t, near.HasWarning(CodeContentNearLimit))
	assert.True(t, near.HasWarning(CodeMissingHashtags))

	over := ValidateContent(spec, "Title", string(make([]byte, 150))+" #go")
	assert.True(t, over.Valid)
	assert.True(t, over.HasWarning(CodeContentOverLimit))
	assert.False(t, over.HasWarning(CodeMissingHashtags))

	longTitle := ValidateContent(spec, "nineteen characters", "#tag")
	assert.True(t, longTitle.Valid)
	assert.True(t, longTitle.HasWarning(CodeTitleNearLimit))
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewDefaultRegistry()

	spec, ok := r.GetPlatform("wechat")
	require.True(t, ok)
	assert.Equal(t, 900, spec.Width)
	assert.InDelta(t, 900.0/383.0, spec.AspectRatio, 1e-9)

	_, ok = r.GetPlatform("myspace")
	assert.False(t, ok)

	list := r.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestRegistry_GetPlatformReturnsCopy(t *testing.T) {
	r := NewDefaultRegistry()

	spec, _ := r.GetPlatform("twitter")
	spec.Width = 1
	spec.SupportedFormats[0] = "tiff"

	again, _ := r.GetPlatform("twitter")
	assert.Equal(t, 1200, again.Width)
	assert.NotEqual(t, "tiff", again.SupportedFormats[0])
}

func TestSpec_SupportsFormat(t *testing.T) {
	spec := testSpec()
	assert.True(t, spec.SupportsFormat("JPG"))
	assert.True(t, spec.SupportsFormat("image/jpeg"))
	assert.False(t, spec.SupportsFormat("gif"))
}
