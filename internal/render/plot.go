package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/colornames"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"salesforecast/internal/forecast"
)

// Canvas sizes are given in pixels and drawn at one point per pixel.
const (
	defaultWidth  = 1200
	defaultHeight = 600
	pixelDPI      = 72
	maxMonthTicks = 12
)

// EmptyChartNotice is drawn when a chart has no points.
const EmptyChartNotice = "sem dados"

var numberPrinter = message.NewPrinter(language.BrazilianPortuguese)

// PlotRenderer draws a chart with gonum/plot and encodes it as SVG or PNG.
type PlotRenderer struct {
	Width  int
	Height int
	format Format
}

// NewSVGRenderer returns a renderer producing standalone SVG documents.
func NewSVGRenderer(width, height int) *PlotRenderer {
	return newPlotRenderer(FormatSVG, width, height)
}

// NewImageRenderer returns a renderer producing PNG images without a browser.
func NewImageRenderer(width, height int) *PlotRenderer {
	return newPlotRenderer(FormatPNG, width, height)
}

func newPlotRenderer(format Format, width, height int) *PlotRenderer {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return &PlotRenderer{Width: width, Height: height, format: format}
}

// Format implements Renderer
func (r *PlotRenderer) Format() Format { return r.format }

// Render implements Renderer
func (r *PlotRenderer) Render(ctx context.Context, spec forecast.ChartSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	theme, err := parseTheme(spec)
	if err != nil {
		return nil, err
	}
	p, err := buildPlot(spec, theme)
	if err != nil {
		return nil, err
	}

	w, h := vg.Points(float64(r.Width)), vg.Points(float64(r.Height))
	var canvas vg.CanvasWriterTo
	switch r.format {
	case FormatPNG:
		canvas = vgimg.PngCanvas{Canvas: vgimg.NewWith(
			vgimg.UseWH(w, h),
			vgimg.UseDPI(pixelDPI),
			vgimg.UseBackgroundColor(theme.background),
		)}
	default:
		canvas = vgsvg.New(w, h)
	}
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.format, err)
	}
	return buf.Bytes(), nil
}

// plotTheme is a ChartSpec's colours resolved to color.Color.
type plotTheme struct {
	background color.Color
	foreground color.Color
	legend     color.Color
	grid       color.Color
	series     []color.Color
}

func parseTheme(spec forecast.ChartSpec) (plotTheme, error) {
	var (
		t   plotTheme
		err error
	)
	fields := []struct {
		dst      *color.Color
		name     string
		value    string
		fallback color.Color
	}{
		{&t.background, "background", spec.Background, color.White},
		{&t.foreground, "foreground", spec.Foreground, color.Black},
		{&t.legend, "legend", spec.Legend, color.Transparent},
		{&t.grid, "grid", spec.Grid, color.Gray{Y: 0xcc}},
	}
	for _, f := range fields {
		if *f.dst, err = ParseColor(f.value, f.fallback); err != nil {
			return t, fmt.Errorf("%s colour: %w", f.name, err)
		}
	}
	for _, s := range spec.Series {
		c, err := ParseColor(s.Style.Color, color.Black)
		if err != nil {
			return t, fmt.Errorf("series %q colour: %w", s.Name, err)
		}
		t.series = append(t.series, c)
	}
	return t, nil
}

// ParseColor reads "#rgb", "#rrggbb", "#rrggbbaa" or an SVG colour name.
// An empty value yields fallback.
func ParseColor(value string, fallback color.Color) (color.Color, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if c, ok := colornames.Map[strings.ToLower(value)]; ok {
		return c, nil
	}

	hex, ok := strings.CutPrefix(value, "#")
	if !ok {
		return nil, fmt.Errorf("invalid colour %q", value)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("invalid colour %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q", value)
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

func buildPlot(spec forecast.ChartSpec, theme plotTheme) (*plot.Plot, error) {
	p := plot.New()
	p.BackgroundColor = theme.background
	p.Title.Text = spec.Title
	p.Title.Padding = vg.Points(12)
	p.Title.TextStyle.Color = theme.foreground
	p.Title.TextStyle.Font.Size = vg.Points(18)
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel

	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.LineStyle.Color = theme.foreground
		axis.Label.TextStyle.Color = theme.foreground
		axis.Label.TextStyle.Font.Size = vg.Points(14)
		axis.Tick.Label.Color = theme.foreground
		axis.Tick.Label.Font.Size = vg.Points(11)
		axis.Tick.LineStyle.Color = theme.foreground
	}

	_, _, _, _, ok := spec.Bounds()
	if !ok {
		p.X.Tick.Marker = plot.ConstantTicks{}
		p.Y.Tick.Marker = plot.ConstantTicks{}
		notice, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: 0, Y: 0}},
			Labels: []string{EmptyChartNotice},
		})
		if err != nil {
			return nil, err
		}
		notice.TextStyle[0].Color = theme.foreground
		notice.TextStyle[0].Font.Size = vg.Points(14)
		notice.TextStyle[0].XAlign = draw.XCenter
		notice.TextStyle[0].YAlign = draw.YCenter
		p.Add(notice)
		return p, nil
	}

	p.X.Tick.Marker = plot.TimeTicks{Ticker: monthTicker{limit: maxMonthTicks}, Format: "01/2006"}
	p.Y.Tick.Marker = plot.TickerFunc(numberTicks)

	grid := plotter.NewGrid()
	for _, style := range []*draw.LineStyle{&grid.Vertical, &grid.Horizontal} {
		style.Color = theme.grid
		style.Dashes = []vg.Length{vg.Points(2), vg.Points(4)}
	}
	p.Add(grid)

	p.Legend.Top = true
	p.Legend.TextStyle.Color = theme.foreground
	p.Legend.TextStyle.Font.Size = vg.Points(12)
	p.Legend.ThumbnailWidth = vg.Points(30)
	p.Legend.Padding = vg.Points(4)
	p.Legend.XOffs = -vg.Points(8)
	p.Legend.YOffs = -vg.Points(8)

	for i, s := range spec.Series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = float64(pt.Date.Unix())
			xys[j].Y = pt.Value
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.LineStyle = draw.LineStyle{Color: theme.series[i], Width: vg.Points(2)}
		if s.Style.Line == forecast.LineDashed {
			line.LineStyle.Dashes = []vg.Length{vg.Points(8), vg.Points(5)}
		}
		p.Add(line)
		thumbs := []plot.Thumbnailer{line}

		if shape := glyphFor(s.Style.Marker); shape != nil {
			points, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("series %q: %w", s.Name, err)
			}
			points.GlyphStyle = draw.GlyphStyle{Color: theme.series[i], Radius: vg.Points(4), Shape: shape}
			p.Add(points)
			thumbs = append(thumbs, points)
		}
		p.Legend.Add(s.Name, thumbs...)
	}

	p.Add(legendBackdrop{color: theme.legend})
	return p, nil
}

func glyphFor(m forecast.Marker) draw.GlyphDrawer {
	switch m {
	case forecast.MarkerCircle:
		return draw.CircleGlyph{}
	case forecast.MarkerCross:
		return draw.CrossGlyph{}
	default:
		return nil
	}
}

// legendBackdrop fills the box behind the legend entries. It is added last so
// the legend sits on top of the series.
type legendBackdrop struct {
	color color.Color
}

func (b legendBackdrop) Plot(c draw.Canvas, p *plot.Plot) {
	if _, _, _, a := b.color.RGBA(); a == 0 {
		return
	}
	size := p.Legend.Rectangle(c).Size()
	if size.X <= 0 {
		return
	}
	pad := vg.Points(6)
	maxX := c.Max.X + p.Legend.XOffs + pad
	maxY := c.Max.Y + p.Legend.YOffs + pad
	c.FillPolygon(b.color, []vg.Point{
		{X: maxX - size.X - 2*pad, Y: maxY - size.Y - 2*pad},
		{X: maxX, Y: maxY - size.Y - 2*pad},
		{X: maxX, Y: maxY},
		{X: maxX - size.X - 2*pad, Y: maxY},
	})
}

// monthTicker marks the first day of each month, thinned to at most limit
// labelled ticks. Axis values are Unix seconds.
type monthTicker struct {
	limit int
}

func (m monthTicker) Ticks(min, max float64) []plot.Tick {
	dates := monthTicks(time.Unix(int64(min), 0).UTC(), time.Unix(int64(max), 0).UTC(), m.limit)
	ticks := make([]plot.Tick, len(dates))
	for i, d := range dates {
		// TimeTicks replaces the label with the formatted date
		ticks[i] = plot.Tick{Value: float64(d.Unix()), Label: "-"}
	}
	return ticks
}

// monthTicks returns first-of-month dates between from and to, thinned to at
// most limit entries.
func monthTicks(from, to time.Time, limit int) []time.Time {
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	if start.Before(from) {
		start = start.AddDate(0, 1, 0)
	}
	var all []time.Time
	for t := start; !t.After(to); t = t.AddDate(0, 1, 0) {
		all = append(all, t)
	}
	if len(all) <= limit {
		return all
	}
	every := (len(all) + limit - 1) / limit
	var out []time.Time
	for i := 0; i < len(all); i += every {
		out = append(out, all[i])
	}
	return out
}

// numberTicks keeps gonum's tick placement and prints labels the way sales
// figures are shown in the pages.
func numberTicks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = formatNumber(ticks[i].Value)
		}
	}
	return ticks
}

// formatNumber prints v rounded to whole units with Brazilian digit grouping.
func formatNumber(v float64) string {
	v = math.Round(v)
	if v == 0 {
		v = 0 // drop negative zero
	}
	return numberPrinter.Sprintf("%.0f", v)
}
