package report

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"time"

	"salesforecast/internal/config"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex  = "index.html"
	pageResult = "result.html"
	pagePDF    = "report_pdf.html"
)

var headings = map[string]string{
	forecast.ColumnDate:     "Data",
	forecast.ColumnObserved: "Vendas",
	forecast.ColumnTrend:    "Tendência",
	forecast.ColumnForecast: "Previsão",
}

// Header is the banner printed on every page and report
type Header struct {
	Professor  string
	Discipline string
	Year       int
}

// TableView is a table already formatted for display
type TableView struct {
	Columns []string
	Rows    [][]string
}

// IndexPage is the data behind the upload form
type IndexPage struct {
	Header      Header
	Error       string
	DateColumn  string
	ValueColumn string
	Horizon     int
}

// ResultPage is the data behind the forecast result page
type ResultPage struct {
	Header     Header
	Title      string
	FileName   string
	ChartURL   string
	Timestamp  int64
	Horizon    int
	PDFEnabled bool
	Summary    forecast.ModelSummary
	Historical TableView
	Future     TableView
}

type pdfPage struct {
	Header       Header
	Title        string
	FileName     string
	Horizon      int
	ChartDataURI template.URL
	GeneratedAt  string
	Historical   TableView
	Future       TableView
}

// Reports renders the HTML pages and the PDF report
type Reports struct {
	tmpl    *template.Template
	cfg     config.ReportConfig
	printer render.PDFPrinter
	logger  *slog.Logger
	now     func() time.Time
}

// New parses the embedded templates. printer may be nil, in which case PDF
// generation reports the feature as unavailable.
func New(cfg config.ReportConfig, printer render.PDFPrinter, logger *slog.Logger) (*Reports, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"heading": heading,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}

	return &Reports{
		tmpl:    tmpl,
		cfg:     cfg,
		printer: printer,
		logger:  logger.With(slog.String("component", "report")),
		now:     time.Now,
	}, nil
}

func heading(column string) string {
	if h, ok := headings[column]; ok {
		return h
	}
	return column
}

// Header returns the banner for the current year
func (r *Reports) Header() Header {
	return Header{
		Professor:  r.cfg.Professor,
		Discipline: r.cfg.Discipline,
		Year:       r.now().Year(),
	}
}

// PDFEnabled reports whether BuildPDF can produce a document
func (r *Reports) PDFEnabled() bool {
	return r.cfg.PDFEnabled && r.printer != nil
}

// PDFName is the attachment name for downloaded reports
func (r *Reports) PDFName() string {
	if r.cfg.PDFName == "" {
		return "relatorio_previsao_sazonal.pdf"
	}
	return r.cfg.PDFName
}

// Table formats a result table for display
func Table(t forecast.ResultTable) TableView {
	return TableView{Columns: t.Columns, Rows: exporter.TableRows(t)}
}

// RenderIndex writes the upload page
func (r *Reports) RenderIndex(w io.Writer, page IndexPage) error {
	if page.Header == (Header{}) {
		page.Header = r.Header()
	}
	return r.execute(w, pageIndex, page)
}

// ResultPage assembles the result page data for result and its saved chart
func (r *Reports) ResultPage(result *forecast.Result, chart *render.Artifact, fileName string) ResultPage {
	page := ResultPage{
		Header:     r.Header(),
		Title:      result.Chart.Title,
		FileName:   fileName,
		Timestamp:  r.now().Unix(),
		Horizon:    result.Horizon,
		PDFEnabled: r.PDFEnabled(),
		Historical: Table(result.HistoricalTable()),
		Future:     Table(result.FutureTable()),
	}
	if result.Model != nil {
		page.Summary = result.Model.Summary()
	}
	if chart != nil {
		page.ChartURL = chart.URL
	}
	return page
}

// RenderResult writes the result page
func (r *Reports) RenderResult(w io.Writer, page ResultPage) error {
	return r.execute(w, pageResult, page)
}

// ReportHTML renders the printable report with the chart inlined
func (r *Reports) ReportHTML(result *forecast.Result, chart *render.Artifact, fileName string, generatedAt time.Time) ([]byte, error) {
	uri, err := dataURI(chart)
	if err != nil {
		return nil, err
	}

	page := pdfPage{
		Header:       r.Header(),
		Title:        result.Chart.Title,
		FileName:     fileName,
		Horizon:      result.Horizon,
		ChartDataURI: uri,
		GeneratedAt:  exporter.FormatGeneratedAt(generatedAt),
		Historical:   Table(result.HistoricalTable()),
		Future:       Table(result.FutureTable()),
	}

	var buf bytes.Buffer
	if err := r.execute(&buf, pagePDF, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the report and prints it to PDF
func (r *Reports) BuildPDF(ctx context.Context, result *forecast.Result, chart *render.Artifact, fileName string, generatedAt time.Time) ([]byte, error) {
	if !r.PDFEnabled() {
		return nil, apierrors.NewUnavailableError("pdf export")
	}

	html, err := r.ReportHTML(result, chart, fileName, generatedAt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pdf, err := r.printer.PrintPDF(ctx, html)
	if err != nil {
		return nil, apierrors.NewRenderingError("print pdf report", err)
	}

	r.logger.InfoContext(ctx, "pdf report generated",
		slog.String("file", fileName),
		slog.Int("bytes", len(pdf)),
		slog.Duration("duration", time.Since(start)))
	return pdf, nil
}

func (r *Reports) execute(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return apierrors.NewRenderingError("render "+name, err)
	}
	return nil
}

func dataURI(chart *render.Artifact) (template.URL, error) {
	if chart == nil {
		return "", nil
	}
	data := chart.Data
	if len(data) == 0 && chart.Path != "" {
		var err error
		data, err = os.ReadFile(chart.Path)
		if err != nil {
			return "", apierrors.NewRenderingError("read chart", err)
		}
	}
	return template.URL("data:" + chart.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}
