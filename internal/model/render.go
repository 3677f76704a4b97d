package model

import "CoverLane/pkg/platform"

// RenderRequest is the adapted, platform-specific input of the render collaborator.
type RenderRequest struct {
	Platform        string                `json:"platform"`
	Title           string                `json:"title"`
	Subtitle        string                `json:"subtitle,omitempty"`
	Text            string                `json:"text"`
	Template        string                `json:"template,omitempty"`
	Width           int                   `json:"width"`
	Height          int                   `json:"height"`
	Format          string                `json:"format"`
	Layout          platform.LayoutConfig `json:"layout"`
	TextColor       string                `json:"text_color,omitempty"`
	BackgroundColor string                `json:"background_color,omitempty"`
}

// RenderedImage is the render collaborator's output. Data may be empty when
// the collaborator hosts the image itself and returns URL.
type RenderedImage struct {
	Data        []byte
	URL         string
	ContentType string
	Metadata    platform.ImageMetadata
}
