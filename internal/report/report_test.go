package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/forecast"
	"salesforecast/internal/render"
	"salesforecast/internal/shared/testutil"
)

type fakePrinter struct {
	html []byte
	err  error
}

func (p *fakePrinter) PrintPDF(_ context.Context, html []byte) ([]byte, error) {
	p.html = html
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

func testConfig() config.ReportConfig {
	return config.ReportConfig{
		Professor:  "Alysson Gabriel",
		Discipline: "Linguagem de Programação Avançada",
		PDFEnabled: true,
	}
}

func newReports(t *testing.T, cfg config.ReportConfig, printer render.PDFPrinter) *Reports {
	t.Helper()
	r, err := New(cfg, printer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC) }
	return r
}

func runPipeline(t *testing.T) *forecast.Result {
	t.Helper()
	opts := forecast.DefaultOptions()
	opts.Horizon = 3
	result, err := forecast.NewPipeline(opts, nil).Run(context.Background(), testutil.YearOfSales())
	require.NoError(t, err)
	return result
}

func svgArtifact() *render.Artifact {
	return &render.Artifact{
		Name:        "chart_abc.svg",
		URL:         "/static/charts/chart_abc.svg",
		ContentType: render.FormatSVG.ContentType(),
		Data:        []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`),
	}
}

func TestHeaderUsesCurrentYear(t *testing.T) {
	r := newReports(t, testConfig(), nil)

	h := r.Header()
	assert.Equal(t, "Alysson Gabriel", h.Professor)
	assert.Equal(t, "Linguagem de Programação Avançada", h.Discipline)
	assert.Equal(t, 2026, h.Year)
}

func TestRenderIndex(t *testing.T) {
	r := newReports(t, testConfig(), nil)

	var buf bytes.Buffer
	require.NoError(t, r.RenderIndex(&buf, IndexPage{
		Error:       "Nenhum arquivo enviado",
		DateColumn:  "Data",
		ValueColumn: "Vendas",
		Horizon:     6,
	}))

	out := buf.String()
	assert.Contains(t, out, `action="/forecast"`)
	assert.Contains(t, out, `name="file"`)
	assert.Contains(t, out, "Nenhum arquivo enviado")
	assert.Contains(t, out, "Prof. Alysson Gabriel")
	assert.Contains(t, out, "2026")
	assert.Contains(t, out, "próximos 6 meses")
}

func TestRenderIndexEscapesError(t *testing.T) {
	r := newReports(t, testConfig(), nil)

	var buf bytes.Buffer
	require.NoError(t, r.RenderIndex(&buf, IndexPage{Error: "<script>alert(1)</script>"}))
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestRenderResult(t *testing.T) {
	r := newReports(t, testConfig(), &fakePrinter{})
	result := runPipeline(t)

	page := r.ResultPage(result, svgArtifact(), "vendas.csv")
	assert.Equal(t, 3, page.Horizon)
	assert.True(t, page.PDFEnabled)
	assert.Len(t, page.Historical.Rows, 12)
	assert.Len(t, page.Future.Rows, 3)
	assert.Equal(t, 12, page.Summary.Stats.Observations)

	var buf bytes.Buffer
	require.NoError(t, r.RenderResult(&buf, page))

	out := buf.String()
	assert.Contains(t, out, `src="/static/charts/chart_abc.svg?t=`)
	assert.Contains(t, out, `href="/report?file=vendas.csv"`)
	assert.Contains(t, out, "Tendência")
	assert.Contains(t, out, "Previsão")
	assert.Contains(t, out, "2023-07-01")
	assert.Contains(t, out, "2023-09-01")
	assert.Equal(t, 15, strings.Count(out, "<tr><td>"))
}

func TestRenderResultHidesPDFLinkWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.PDFEnabled = false
	r := newReports(t, cfg, &fakePrinter{})

	var buf bytes.Buffer
	require.NoError(t, r.RenderResult(&buf, r.ResultPage(runPipeline(t), svgArtifact(), "vendas.csv")))
	assert.NotContains(t, buf.String(), "/report?file=")
}

func TestReportHTMLInlinesChart(t *testing.T) {
	r := newReports(t, testConfig(), nil)
	chart := svgArtifact()

	html, err := r.ReportHTML(runPipeline(t), chart, "vendas.csv", time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC))
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, `src="data:image/svg+xml;base64,`+base64.StdEncoding.EncodeToString(chart.Data)+`"`)
	assert.Contains(t, out, "Relatório gerado em 18/10/2026 09:05:07")
	assert.Contains(t, out, "Arquivo analisado: vendas.csv")
}

func TestReportHTMLReadsChartFromDisk(t *testing.T) {
	r := newReports(t, testConfig(), nil)
	path := filepath.Join(t.TempDir(), "chart.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg/>"), 0o644))

	chart := &render.Artifact{Path: path, ContentType: render.FormatSVG.ContentType()}
	html, err := r.ReportHTML(runPipeline(t), chart, "vendas.csv", time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(html), base64.StdEncoding.EncodeToString([]byte("<svg/>")))
}

func TestBuildPDF(t *testing.T) {
	printer := &fakePrinter{}
	r := newReports(t, testConfig(), printer)

	pdf, err := r.BuildPDF(context.Background(), runPipeline(t), svgArtifact(), "vendas.csv", time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Contains(t, string(printer.html), "Relatório de Previsão de Vendas Sazonal")
}

func TestBuildPDFUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		printer render.PDFPrinter
	}{
		{"disabled", false, &fakePrinter{}},
		{"no printer", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.PDFEnabled = tt.enabled
			r := newReports(t, cfg, tt.printer)

			_, err := r.BuildPDF(context.Background(), runPipeline(t), svgArtifact(), "vendas.csv", time.Now())
			var appErr *apierrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apierrors.ErrTypeUnavailable, appErr.Type)
		})
	}
}

func TestBuildPDFPrinterFailure(t *testing.T) {
	r := newReports(t, testConfig(), &fakePrinter{err: errors.New("chrome crashed")})

	_, err := r.BuildPDF(context.Background(), runPipeline(t), svgArtifact(), "vendas.csv", time.Now())
	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeRendering, appErr.Type)
	assert.ErrorContains(t, err, "chrome crashed")
}

func TestPDFName(t *testing.T) {
	r := newReports(t, config.ReportConfig{}, nil)
	assert.Equal(t, "relatorio_previsao_sazonal.pdf", r.PDFName())

	r = newReports(t, config.ReportConfig{PDFName: "custom.pdf"}, nil)
	assert.Equal(t, "custom.pdf", r.PDFName())
}
