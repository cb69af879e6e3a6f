package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"salesforecast/internal/cache"
	"salesforecast/internal/dataset"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/exporter"
	"salesforecast/internal/files"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/render"
	"salesforecast/internal/report"
)

// DefaultKeepReports is how many archived reports stay in the reports directory
const DefaultKeepReports = 100

// SheetSource reads a spreadsheet range as a table
type SheetSource interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) (forecast.Table, error)
}

// ForecastDeps are the collaborators of ForecastService. Sheets, Reports,
// Archive and Metrics are optional.
type ForecastDeps struct {
	Pipeline   *forecast.Pipeline
	Uploads    *files.Store
	Charts     *render.ChartStore
	Reports    *report.Reports
	Archive    *files.Store
	Sheets     SheetSource
	Metrics    *infrastructure.ForecastMetrics
	MaxHorizon int
	CacheSize  int
	CacheTTL   time.Duration
}

// Run is one forecast together with the dataset it came from
type Run struct {
	File   string
	Result *forecast.Result
	Cached bool
}

// ForecastService coordinates dataset reading, the pipeline, chart
// rendering and report generation.
type ForecastService struct {
	pipeline   *forecast.Pipeline
	uploads    *files.Store
	charts     *render.ChartStore
	reports    *report.Reports
	archive    *files.Store
	sheets     SheetSource
	metrics    *infrastructure.ForecastMetrics
	maxHorizon int

	cache   *cache.LRU[*forecast.Result]
	flight  singleflight.Group
	compute func(ctx context.Context, table forecast.Table, horizon int) (*forecast.Result, error)

	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
}

// NewForecastService creates the service. A CacheSize above zero enables the
// result cache.
func NewForecastService(deps ForecastDeps, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = forecast.NewPipeline(forecast.DefaultOptions(), logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = infrastructure.NoopForecastMetrics()
	}

	s := &ForecastService{
		pipeline:   deps.Pipeline,
		uploads:    deps.Uploads,
		charts:     deps.Charts,
		reports:    deps.Reports,
		archive:    deps.Archive,
		sheets:     deps.Sheets,
		metrics:    deps.Metrics,
		maxHorizon: deps.MaxHorizon,
		tracer:     otel.Tracer(infrastructure.MeterName),
		logger:     logger.With(slog.String("service", "forecast")),
		now:        time.Now,
	}
	s.compute = s.run
	if deps.CacheSize > 0 {
		s.cache = cache.NewLRU[*forecast.Result](deps.CacheSize, deps.CacheTTL)
	}

	s.logger.Info("ForecastService initialized",
		slog.Int("default_horizon", s.DefaultHorizon()),
		slog.Int("max_horizon", s.maxHorizon),
		slog.Bool("cache_enabled", s.cache != nil),
		slog.Bool("sheets_enabled", s.sheets != nil))
	return s
}

// DefaultHorizon is the horizon used when a caller does not supply one
func (s *ForecastService) DefaultHorizon() int {
	return s.pipeline.Options().Horizon
}

// Forecast runs the pipeline over table with the default horizon
func (s *ForecastService) Forecast(ctx context.Context, table forecast.Table) (*forecast.Result, error) {
	run, err := s.ForecastWithHorizon(ctx, table, s.DefaultHorizon())
	if err != nil {
		return nil, err
	}
	return run.Result, nil
}

// ForecastWithHorizon runs the pipeline over table projecting horizon months
func (s *ForecastService) ForecastWithHorizon(ctx context.Context, table forecast.Table, horizon int) (*Run, error) {
	if s.maxHorizon > 0 && horizon > s.maxHorizon {
		return nil, apierrors.NewAppValidationError(fmt.Sprintf("horizon must be at most %d", s.maxHorizon)).
			WithContext("horizon", horizon)
	}

	if s.cache == nil {
		result, err := s.compute(ctx, table, horizon)
		if err != nil {
			return nil, err
		}
		return &Run{Result: result}, nil
	}

	key := Fingerprint(table, horizon)
	if result, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Add(ctx, 1)
		s.logger.DebugContext(ctx, "forecast cache hit", slog.String("key", key[:16]))
		return &Run{Result: result, Cached: true}, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1)

	// The shared run outlives any single caller; each caller stops waiting
	// when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		result, err := s.compute(flightCtx, table, horizon)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &Run{Result: res.Val.(*forecast.Result)}, nil
	}
}

func (s *ForecastService) run(ctx context.Context, table forecast.Table, horizon int) (*forecast.Result, error) {
	start := time.Now()
	result, err := s.pipeline.RunWithHorizon(ctx, table, horizon)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		kind := forecast.KindOf(err)
		s.metrics.ForecastRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failure")))
		s.metrics.ForecastFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
		s.metrics.ForecastDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", "failure")))
		return nil, err
	}

	s.metrics.ForecastRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	s.metrics.ForecastDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", "success")))
	s.metrics.ForecastObservations.Record(ctx, int64(len(result.Series)))
	return result, nil
}

// ForecastUpload stores an uploaded dataset and forecasts it
func (s *ForecastService) ForecastUpload(ctx context.Context, filename string, r io.Reader, horizon int) (*Run, error) {
	if s.uploads == nil {
		return nil, apierrors.NewUnavailableError("file uploads")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, apierrors.ErrMissingFile
	}
	if _, err := dataset.FormatFromName(filename); err != nil {
		return nil, apierrors.ErrUnsupportedMediaType
	}

	name, err := s.uploads.Save(ctx, filename, r)
	if err != nil {
		return nil, storeError(filename, err)
	}
	return s.ForecastFile(ctx, name, horizon)
}

// ForecastFile forecasts a previously uploaded dataset
func (s *ForecastService) ForecastFile(ctx context.Context, name string, horizon int) (*Run, error) {
	if s.uploads == nil {
		return nil, apierrors.NewUnavailableError("file uploads")
	}

	path, err := s.uploads.Path(name)
	if err != nil {
		return nil, storeError(name, err)
	}

	readCtx, span := s.tracer.Start(ctx, "dataset.read", trace.WithAttributes(attribute.String("dataset.file", name)))
	table, err := dataset.ReadFile(readCtx, path)
	span.End()
	if err != nil {
		return nil, datasetError(name, err)
	}

	run, err := s.ForecastWithHorizon(ctx, table, horizon)
	if err != nil {
		return nil, err
	}
	run.File = name
	return run, nil
}

// ForecastSheet reads a Google Sheets range and forecasts it
func (s *ForecastService) ForecastSheet(ctx context.Context, spreadsheetID, rng string, horizon int) (*Run, error) {
	if s.sheets == nil {
		return nil, apierrors.NewUnavailableError("google sheets source")
	}

	readCtx, span := s.tracer.Start(ctx, "dataset.sheets", trace.WithAttributes(attribute.String("sheets.range", rng)))
	table, err := s.sheets.ReadRange(readCtx, spreadsheetID, rng)
	span.End()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, dataset.ErrNoHeader) {
			return nil, datasetError(spreadsheetID, err)
		}
		return nil, apierrors.NewUpstreamError("read spreadsheet", err).WithContext("spreadsheet_id", spreadsheetID)
	}

	run, err := s.ForecastWithHorizon(ctx, table, horizon)
	if err != nil {
		return nil, err
	}
	run.File = spreadsheetID
	return run, nil
}

// RenderChart renders the chart of result and stores it for serving
func (s *ForecastService) RenderChart(ctx context.Context, result *forecast.Result) (*render.Artifact, error) {
	if s.charts == nil {
		return nil, apierrors.NewUnavailableError("chart rendering")
	}

	start := time.Now()
	artifact, err := s.charts.Save(ctx, result.Chart)
	s.metrics.ChartRenderDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("format", string(s.charts.Renderer().Format()))))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apierrors.NewRenderingError("render chart", err)
	}
	return artifact, nil
}

// Export writes both result tables of a stored dataset as CSV or XLSX
func (s *ForecastService) Export(ctx context.Context, name, format string, w io.Writer) error {
	run, err := s.ForecastFile(ctx, name, s.DefaultHorizon())
	if err != nil {
		return err
	}

	generatedAt := s.now()
	switch format {
	case "csv":
		err = exporter.NewCSVWriter(s.logger).ExportResultCSV(w, run.Result, generatedAt)
	case "xlsx":
		err = exporter.ExportResultXLSX(w, run.Result, generatedAt)
	default:
		return apierrors.NewAppValidationError(fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return apierrors.NewRenderingError("export "+format, err)
	}
	s.metrics.ReportsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	return nil
}

// BuildReport re-runs the forecast for a stored dataset and prints the PDF
// report. The chart and the CSV archive copy are produced concurrently.
func (s *ForecastService) BuildReport(ctx context.Context, name string) ([]byte, error) {
	if s.reports == nil || !s.reports.PDFEnabled() {
		return nil, apierrors.NewUnavailableError("pdf export")
	}
	if s.charts == nil {
		return nil, apierrors.NewUnavailableError("chart rendering")
	}

	run, err := s.ForecastFile(ctx, name, s.DefaultHorizon())
	if err != nil {
		return nil, err
	}
	generatedAt := s.now()

	var chart *render.Artifact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		renderer := s.charts.Renderer()
		start := time.Now()
		data, err := renderer.Render(gctx, run.Result.Chart)
		s.metrics.ChartRenderDuration.Record(gctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("format", string(renderer.Format()))))
		if err != nil {
			return apierrors.NewRenderingError("render chart", err)
		}
		chart = &render.Artifact{ContentType: renderer.Format().ContentType(), Data: data}
		return nil
	})
	g.Go(func() error {
		return s.archiveCSV(gctx, name, run.Result, generatedAt)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pdf, err := s.reports.BuildPDF(ctx, run.Result, chart, name, generatedAt)
	if err != nil {
		return nil, err
	}
	s.metrics.ReportsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("format", "pdf")))

	if err := s.archiveFile(ctx, reportName(name, generatedAt, ".pdf"), pdf); err != nil {
		return nil, err
	}
	return pdf, nil
}

// ReportName is the attachment name for downloaded PDF reports
func (s *ForecastService) ReportName() string {
	if s.reports == nil {
		return "relatorio_previsao_sazonal.pdf"
	}
	return s.reports.PDFName()
}

func (s *ForecastService) archiveCSV(ctx context.Context, name string, result *forecast.Result, generatedAt time.Time) error {
	if s.archive == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := exporter.NewCSVWriter(s.logger).ExportResultCSV(&buf, result, generatedAt); err != nil {
		return apierrors.NewRenderingError("export csv", err)
	}
	return s.archiveFile(ctx, reportName(name, generatedAt, ".csv"), buf.Bytes())
}

func (s *ForecastService) archiveFile(ctx context.Context, name string, data []byte) error {
	if s.archive == nil {
		return nil
	}
	stored, err := s.archive.WriteFile(ctx, name, data)
	if err != nil {
		return apierrors.NewStorageError("archive report", err)
	}
	if _, err := s.archive.Prune(DefaultKeepReports, stored); err != nil {
		s.logger.WarnContext(ctx, "report archive prune failed", slog.String("error", err.Error()))
	}
	return nil
}

func reportName(dataset string, generatedAt time.Time, ext string) string {
	stem := strings.TrimSuffix(dataset, filepath.Ext(dataset))
	return fmt.Sprintf("relatorio_%s_%s%s", stem, generatedAt.Format("20060102_150405"), ext)
}

// Fingerprint identifies a table and horizon by the blake2b-256 digest of
// their canonical encoding.
func Fingerprint(table forecast.Table, horizon int) string {
	h, _ := blake2b.New256(nil)
	writeRow := func(row []string) {
		for _, cell := range row {
			io.WriteString(h, cell)
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	writeRow(table.Header)
	for _, row := range table.Rows {
		writeRow(row)
	}
	fmt.Fprintf(h, "decimal=%q;horizon=%d", table.Decimal, horizon)
	return hex.EncodeToString(h.Sum(nil))
}

func storeError(name string, err error) error {
	switch {
	case errors.Is(err, files.ErrNotFound):
		return apierrors.NewNotFoundError("dataset " + name)
	case errors.Is(err, files.ErrTooLarge):
		return apierrors.ErrPayloadTooLarge
	case errors.Is(err, files.ErrExtensionNotAllowed):
		return apierrors.ErrUnsupportedMediaType
	case errors.Is(err, files.ErrInvalidName):
		return apierrors.NewAppValidationError("invalid file name").WithContext("file", name)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apierrors.NewStorageError("store dataset", err)
	}
}

func datasetError(name string, err error) error {
	switch {
	case forecast.KindOf(err) != forecast.KindUnknown:
		return err
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return apierrors.ErrUnsupportedMediaType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apierrors.NewParsingError("could not read dataset", err).WithContext("file", name)
	}
}
