// Package render turns chart descriptions into SVG or PNG images and HTML
// pages into PDF documents.
package render

import (
	"context"
	"fmt"

	"salesforecast/internal/forecast"
)

// Format is an image output format
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	default:
		return "image/svg+xml"
	}
}

// Extension returns the file extension of f, with the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Renderer draws a chart specification
type Renderer interface {
	Format() Format
	Render(ctx context.Context, spec forecast.ChartSpec) ([]byte, error)
}

// PDFPrinter prints an HTML document to PDF
type PDFPrinter interface {
	PrintPDF(ctx context.Context, html []byte) ([]byte, error)
}

// Renderer names accepted in configuration
const (
	RendererSVG      = "svg"
	RendererPNG      = "png"
	RendererChromedp = "chromedp"
)

// New returns the renderer named by kind. The png renderer rasterises in
// process; the chromedp renderer rasterises the SVG output through browser.
func New(kind string, width, height int, browser *Browser) (Renderer, error) {
	svg := NewSVGRenderer(width, height)
	switch kind {
	case RendererSVG, "":
		return svg, nil
	case RendererPNG:
		return NewImageRenderer(width, height), nil
	case RendererChromedp:
		if browser == nil {
			return nil, fmt.Errorf("renderer %q requires a browser", kind)
		}
		return &PNGRenderer{svg: svg, browser: browser}, nil
	default:
		return nil, fmt.Errorf("unknown chart renderer: %q", kind)
	}
}
