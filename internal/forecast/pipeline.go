package forecast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "salesforecast.forecast"

// Options configures a Pipeline.
type Options struct {
	Columns Columns
	Horizon int
	Labels  Labels
	Theme   Theme
}

// DefaultOptions returns the default column contract, a six month horizon,
// the default labels and the dark theme.
func DefaultOptions() Options {
	return Options{
		Columns: DefaultColumns(),
		Horizon: DefaultHorizon,
		Labels:  DefaultLabels(),
		Theme:   DarkTheme(),
	}
}

// Result is the complete output of one pipeline run.
type Result struct {
	Series     Series        `json:"-"`
	Model      *Model        `json:"-"`
	Projection *Projection   `json:"projection"`
	Chart      ChartSpec     `json:"chart"`
	Horizon    int           `json:"horizon"`
	Duration   time.Duration `json:"-"`
}

// HistoricalTable returns the historical output table.
func (r *Result) HistoricalTable() ResultTable { return r.Projection.HistoricalTable() }

// FutureTable returns the projected output table.
func (r *Result) FutureTable() ResultTable { return r.Projection.FutureTable() }

// Pipeline runs ingest, feature engineering, fitting, projection and chart
// description in sequence. It holds configuration only and is safe for
// concurrent use.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPipeline creates a pipeline. A nil logger discards log output.
func NewPipeline(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Labels == (Labels{}) {
		opts.Labels = DefaultLabels()
	}
	if opts.Theme == (Theme{}) {
		opts.Theme = DarkTheme()
	}
	opts.Columns = opts.Columns.withDefaults()
	return &Pipeline{
		opts:   opts,
		logger: logger.With(slog.String("component", "forecast_pipeline")),
		tracer: otel.Tracer(TracerName),
	}
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options { return p.opts }

// Run executes the pipeline with the configured horizon.
func (p *Pipeline) Run(ctx context.Context, table Table) (*Result, error) {
	return p.RunWithHorizon(ctx, table, p.opts.Horizon)
}

// RunWithHorizon executes the pipeline projecting horizon periods. Either a
// complete Result or an error is returned, never both.
func (p *Pipeline) RunWithHorizon(ctx context.Context, table Table, horizon int) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "forecast.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("forecast.input_rows", len(table.Rows)),
			attribute.Int("forecast.horizon", horizon),
		),
	)
	defer span.End()

	result, err := p.run(ctx, table, horizon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("forecast.error_kind", string(KindOf(err))))
		p.logger.WarnContext(ctx, "forecast failed",
			slog.String("error", err.Error()),
			slog.String("kind", string(KindOf(err))),
			slog.Int("rows", len(table.Rows)))
		return nil, err
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("forecast.observations", len(result.Series)),
		attribute.Float64("forecast.r_squared", result.Model.Stats().RSquared),
	)
	span.SetStatus(codes.Ok, "")
	p.logger.InfoContext(ctx, "forecast completed",
		slog.Int("observations", len(result.Series)),
		slog.Int("horizon", horizon),
		slog.Float64("r_squared", result.Model.Stats().RSquared),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, table Table, horizon int) (*Result, error) {
	if horizon < 0 {
		return nil, ErrInvalidHorizon
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := p.tracer.Start(ctx, "forecast.ingest")
	series, err := Ingest(table, p.opts.Columns)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	_, span = p.tracer.Start(ctx, "forecast.fit")
	rows := Engineer(series)
	model, err := Fit(rows, series.Values())
	span.End()
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	proj, err := Project(model, series, horizon)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	return &Result{
		Series:     series,
		Model:      model,
		Projection: proj,
		Chart:      BuildChart(proj, p.opts.Labels, p.opts.Theme),
		Horizon:    horizon,
	}, nil
}
