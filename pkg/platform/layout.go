package platform

// Layout is a text placement keyword.
type Layout string

// Supported layouts. Anything else falls back to LayoutCenter.
const (
	LayoutCenter Layout = "center"
	LayoutTop    Layout = "top"
	LayoutBottom Layout = "bottom"
	LayoutLeft   Layout = "left"
	LayoutRight  Layout = "right"
)

// Align is a horizontal text alignment.
type Align string

// Alignments used by LayoutConfig text boxes.
const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// maxWidthRatio keeps text boxes inside 90% of the padded width.
const maxWidthRatio = 0.9

// ParseLayout maps a keyword to a Layout, defaulting to LayoutCenter.
func ParseLayout(s string) Layout {
	switch l := Layout(s); l {
	case LayoutCenter, LayoutTop, LayoutBottom, LayoutLeft, LayoutRight:
		return l
	}
	return LayoutCenter
}

// TextBox is the geometry of one text role. (X, Y) is the anchor point the
// renderer aligns the first line against.
type TextBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MaxWidth   float64 `json:"max_width"`
	FontSize   int     `json:"font_size"`
	LineHeight float64 `json:"line_height"`
	Align      Align   `json:"align"`
}

// LayoutConfig is the computed text geometry for one canvas. It is a value:
// callers get their own copy and nothing mutates it after ComputeLayout.
type LayoutConfig struct {
	Layout   Layout   `json:"layout"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Title    TextBox  `json:"title"`
	Subtitle *TextBox `json:"subtitle,omitempty"`
}

// LayoutInput holds the parameters of ComputeLayout.
type LayoutInput struct {
	Width            int
	Height           int
	Padding          int
	Layout           Layout
	TitleFontSize    int
	SubtitleFontSize int // zero means no subtitle
	LineHeight       float64
	TitleSpacing     int
}

// ComputeLayout places the title (and optional subtitle) on the canvas.
//
// The subtitle sits TitleFontSize+TitleSpacing away from the title anchor:
// below it for every layout except bottom, where it goes above.
func ComputeLayout(in LayoutInput) LayoutConfig {
	w := float64(in.Width)
	h := float64(in.Height)
	p := float64(in.Padding)

	available := w - 2*p
	if available < 0 {
		available = 0
	}
	maxWidth := available * maxWidthRatio

	hasSubtitle := in.SubtitleFontSize > 0
	offset := float64(in.TitleFontSize + in.TitleSpacing)

	layout := ParseLayout(string(in.Layout))
	title := TextBox{
		MaxWidth:   maxWidth,
		FontSize:   in.TitleFontSize,
		LineHeight: in.LineHeight,
	}
	direction := 1.0

	switch layout {
	case LayoutTop:
		title.X, title.Y, title.Align = w/2, p, AlignCenter
	case LayoutBottom:
		title.X, title.Y, title.Align = w/2, h-p, AlignCenter
		direction = -1
	case LayoutLeft:
		title.X, title.Y, title.Align = p, h/2, AlignLeft
	case LayoutRight:
		title.X, title.Y, title.Align = w-p, h/2, AlignRight
	default:
		title.X, title.Y, title.Align = w/2, h/2, AlignCenter
		if hasSubtitle {
			// keep the title+subtitle block vertically centred
			title.Y -= offset / 2
		}
	}

	cfg := LayoutConfig{
		Layout: layout,
		Width:  in.Width,
		Height: in.Height,
		Title:  title,
	}

	if hasSubtitle {
		cfg.Subtitle = &TextBox{
			X:          title.X,
			Y:          title.Y + direction*offset,
			MaxWidth:   maxWidth,
			FontSize:   in.SubtitleFontSize,
			LineHeight: in.LineHeight,
			Align:      title.Align,
		}
	}

	return cfg
}
