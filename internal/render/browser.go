package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"salesforecast/internal/forecast"
)

// Browser owns a headless Chrome process shared by all renders. Each call
// opens its own tab.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBrowser starts the allocator for a headless Chrome. chromeBin may be
// empty to let chromedp locate the binary. The process itself is launched on
// first use.
func NewBrowser(chromeBin string, timeout time.Duration, logger *slog.Logger) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "browser")),
	}
}

// Close stops the browser process
func (b *Browser) Close() {
	b.cancel()
}

// run executes actions in a fresh tab bounded by both ctx and the browser
// timeout.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	start := time.Now()
	err := chromedp.Run(tabCtx, actions...)
	b.logger.DebugContext(ctx, "browser actions finished",
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// setContent replaces the document of the current tab with html
func setContent(html []byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
	})
}

// Screenshot loads html into a width x height viewport and captures the
// first element matching sel as PNG.
func (b *Browser) Screenshot(ctx context.Context, html []byte, sel string, width, height int) ([]byte, error) {
	var buf []byte
	err := b.run(ctx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Navigate("about:blank"),
		setContent(html),
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Screenshot(sel, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// PrintPDF implements PDFPrinter
func (b *Browser) PrintPDF(ctx context.Context, html []byte) ([]byte, error) {
	var pdf []byte
	err := b.run(ctx,
		chromedp.Navigate("about:blank"),
		setContent(html),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// PNGRenderer rasterises the SVG chart in the browser
type PNGRenderer struct {
	svg     *PlotRenderer
	browser *Browser
}

// Format implements Renderer
func (r *PNGRenderer) Format() Format { return FormatPNG }

// Render implements Renderer
func (r *PNGRenderer) Render(ctx context.Context, spec forecast.ChartSpec) ([]byte, error) {
	svg, err := r.svg.Render(ctx, spec)
	if err != nil {
		return nil, err
	}

	var doc bytes.Buffer
	// The SVG is sized in points; pin it to the viewport in pixels
	fmt.Fprintf(&doc, `<!DOCTYPE html><html><head><meta charset="utf-8"><style>html,body{margin:0;padding:0}svg{display:block;width:%dpx;height:%dpx}</style></head><body>`,
		r.svg.Width, r.svg.Height)
	// Drop the XML declaration, it is not valid inside HTML
	if i := bytes.Index(svg, []byte("<svg")); i > 0 {
		svg = svg[i:]
	}
	doc.Write(svg)
	doc.WriteString(`</body></html>`)

	return r.browser.Screenshot(ctx, doc.Bytes(), "svg", r.svg.Width, r.svg.Height)
}
