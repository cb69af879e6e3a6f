package render

import (
	"bytes"
	"context"
	"encoding/xml"
	"image/color"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/files"
	"salesforecast/internal/forecast"
	"salesforecast/internal/shared/testutil"
)

func sampleSpec(t *testing.T) forecast.ChartSpec {
	t.Helper()
	result, err := forecast.NewPipeline(forecast.DefaultOptions(), nil).Run(context.Background(), testutil.YearOfSales())
	require.NoError(t, err)
	return result.Chart
}

func TestSVGRendererProducesWellFormedXML(t *testing.T) {
	spec := sampleSpec(t)

	out, err := NewSVGRenderer(800, 400).Render(context.Background(), spec)
	require.NoError(t, err)

	dec := xml.NewDecoder(bytes.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}

	svg := string(out)
	assert.Contains(t, svg, `width="800pt"`)
	assert.Contains(t, svg, spec.Title)
	for _, s := range spec.Series {
		assert.Contains(t, svg, ">"+s.Name+"<", "legend entry")
	}
	assert.Contains(t, svg, `stroke:#3498DB;stroke-width:2"`)
	assert.Contains(t, svg, "stroke:#E74C3C;stroke-width:2;stroke-dasharray:8,5")
	assert.Contains(t, svg, ">07/2022<")
	assert.NotContains(t, svg, EmptyChartNotice)
}

func TestSVGRendererEscapesText(t *testing.T) {
	spec := sampleSpec(t)
	spec.Title = `Vendas <Q1> & "Q2"`

	out, err := NewSVGRenderer(0, 0).Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Vendas &lt;Q1&gt; &amp; &#34;Q2&#34;")
	assert.Contains(t, string(out), `width="1200pt"`)
}

func TestRendererRejectsInvalidColours(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*forecast.ChartSpec)
		want   string
	}{
		{"background", func(s *forecast.ChartSpec) { s.Background = `#000" onload="alert(1)` }, "background colour"},
		{"grid", func(s *forecast.ChartSpec) { s.Grid = "#12345" }, "grid colour"},
		{"series", func(s *forecast.ChartSpec) { s.Series[1].Style.Color = "url(#x)" }, "colour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := sampleSpec(t)
			tt.mutate(&spec)

			_, err := NewSVGRenderer(400, 300).Render(context.Background(), spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#3498db", nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}, c)

	c, err = ParseColor("#fff", nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	c, err = ParseColor("#00000080", nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 0x80}, c)

	c, err = ParseColor("DarkSlateGray", nil)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x2f, G: 0x4f, B: 0x4f, A: 0xff}, c)

	c, err = ParseColor(" ", color.White)
	require.NoError(t, err)
	assert.Equal(t, color.White, c)

	for _, bad := range []string{"3498db", "#zzzzzz", "#12345", "red;"} {
		_, err := ParseColor(bad, nil)
		assert.Error(t, err, bad)
	}
}

func TestSVGRendererEmptySpec(t *testing.T) {
	out, err := NewSVGRenderer(400, 300).Render(context.Background(), forecast.ChartSpec{Title: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(out), EmptyChartNotice)
}

func TestImageRendererProducesPNG(t *testing.T) {
	r := NewImageRenderer(400, 300)
	assert.Equal(t, FormatPNG, r.Format())

	out, err := r.Render(context.Background(), sampleSpec(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	// corner pixel carries the dark theme background
	bg, err := ParseColor(forecast.DarkTheme().Background, nil)
	require.NoError(t, err)
	r0, g0, b0, _ := img.At(0, 0).RGBA()
	r1, g1, b1, _ := bg.RGBA()
	assert.Equal(t, []uint32{r1 >> 8, g1 >> 8, b1 >> 8}, []uint32{r0 >> 8, g0 >> 8, b0 >> 8})
}

func TestRendererHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSVGRenderer(400, 300).Render(ctx, forecast.ChartSpec{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewImageRenderer(400, 300).Render(ctx, forecast.ChartSpec{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNumberTicks(t *testing.T) {
	ticks := numberTicks(1003, 1551)
	require.NotEmpty(t, ticks)
	var labels []string
	for _, tk := range ticks {
		if tk.Label != "" {
			labels = append(labels, tk.Label)
			assert.Equal(t, formatNumber(tk.Value), tk.Label)
		}
	}
	assert.NotEmpty(t, labels)
}

func TestMonthTicks(t *testing.T) {
	from := time.Date(2022, 7, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)
	ticks := monthTicks(from, to, 12)
	require.Len(t, ticks, 3)
	assert.Equal(t, time.August, ticks[0].Month())

	long := monthTicks(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), 12)
	assert.LessOrEqual(t, len(long), 12)

	marks := monthTicker{limit: 12}.Ticks(float64(from.Unix()), float64(to.Unix()))
	require.Len(t, marks, 3)
	assert.False(t, marks[0].IsMinor())
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1.234.568", formatNumber(1234567.6))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "-1.000", formatNumber(-1000))
	assert.Equal(t, "0", formatNumber(-0.2))
}

func TestNewRenderer(t *testing.T) {
	r, err := New(RendererSVG, 100, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, r.Format())

	r, err = New(RendererPNG, 100, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, r.Format())

	_, err = New(RendererChromedp, 100, 100, nil)
	assert.Error(t, err)

	_, err = New("gnuplot", 100, 100, nil)
	assert.Error(t, err)

	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, ".svg", FormatSVG.Extension())
}

func TestChartStoreSave(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := filepath.Join(t.TempDir(), "charts")
	store := NewChartStore(NewSVGRenderer(400, 300), files.NewStore(dir, 0, nil, logger), 2, logger)

	var last *Artifact
	for i := 0; i < 3; i++ {
		a, err := store.Save(context.Background(), sampleSpec(t))
		require.NoError(t, err)
		last = a
	}

	assert.True(t, strings.HasPrefix(last.URL, ChartURLPrefix))
	assert.Equal(t, "image/svg+xml", last.ContentType)
	data, err := os.ReadFile(last.Path)
	require.NoError(t, err)
	assert.Equal(t, last.Data, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func TestBrowserRendersPNGAndPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	bin := findChrome(t)
	logger, _ := testutil.NewTestLogger(t)
	browser := NewBrowser(bin, 30*time.Second, logger)
	defer browser.Close()

	r, err := New(RendererChromedp, 600, 300, browser)
	require.NoError(t, err)
	png, err := r.Render(context.Background(), sampleSpec(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	pdf, err := browser.PrintPDF(context.Background(), []byte("<html><body><h1>Relatório</h1></body></html>"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
