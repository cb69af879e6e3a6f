package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"salesforecast/internal/config"
	"salesforecast/internal/dataset"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/render"
	"salesforecast/internal/services"
	handlers "salesforecast/internal/transport/http"
	"salesforecast/internal/validation"
	"salesforecast/pkg/contracts"
)

var errUsage = errors.New("usage")

// options holds the parsed command line
type options struct {
	in          string
	horizon     int
	chart       string
	format      string
	dateColumn  string
	valueColumn string
	verbose     bool
	version     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "forecast: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	defaults := config.Default().Forecast

	var opts options
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "sales history to forecast (.csv or .xlsx)")
	fs.IntVar(&opts.horizon, "horizon", defaults.DefaultHorizon, "months to project past the last observation")
	fs.StringVar(&opts.chart, "chart", "", "write the chart to this path (.svg or .png)")
	fs.StringVar(&opts.format, "format", "table", "output format: table, json or csv")
	fs.StringVar(&opts.dateColumn, "date-column", defaults.DateColumn, "name of the date column")
	fs.StringVar(&opts.valueColumn, "value-column", defaults.ValueColumn, "name of the sales column")
	fs.BoolVar(&opts.verbose, "v", false, "log pipeline steps to stderr")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, errUsage
	}
	if opts.version {
		return opts, nil
	}
	if opts.in == "" {
		fmt.Fprintln(stderr, "forecast: -in is required")
		fs.Usage()
		return opts, errUsage
	}
	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case "table", "json", "csv":
	default:
		return opts, fmt.Errorf("unknown format %q (want table, json or csv)", opts.format)
	}
	if opts.horizon < 0 || opts.horizon > defaults.MaxHorizon {
		return opts, fmt.Errorf("horizon %d outside [0, %d]", opts.horizon, defaults.MaxHorizon)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := infrastructure.NewLogger(stderr, level)

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateDataset(opts.in); err != nil {
		return err
	}
	if opts.chart != "" {
		if err := validator.ValidateOutputFile(opts.chart); err != nil {
			return err
		}
	}

	table, err := dataset.ReadFile(ctx, opts.in)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.in, err)
	}

	svc := services.NewForecastService(services.ForecastDeps{
		Pipeline: forecast.NewPipeline(forecast.Options{
			Columns: forecast.Columns{Date: opts.dateColumn, Value: opts.valueColumn},
			Horizon: opts.horizon,
		}, logger),
		MaxHorizon: config.Default().Forecast.MaxHorizon,
	}, logger)

	forecastRun, err := svc.ForecastWithHorizon(ctx, table, opts.horizon)
	if err != nil {
		return err
	}
	forecastRun.File = filepath.Base(opts.in)

	if opts.chart != "" {
		if err := writeChart(ctx, opts.chart, forecastRun.Result); err != nil {
			return err
		}
		logger.Info("chart written", slog.String("path", opts.chart))
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(handlers.ToForecastResponse(forecastRun))
	case "csv":
		return exporter.NewCSVWriter(logger).ExportResultCSV(stdout, forecastRun.Result, time.Now())
	default:
		return writeTable(stdout, forecastRun.Result)
	}
}

// writeChart renders PNG for a .png path and SVG otherwise
func writeChart(ctx context.Context, path string, result *forecast.Result) error {
	defaults := config.Default().Chart
	var renderer render.Renderer = render.NewSVGRenderer(defaults.Width, defaults.Height)
	if strings.EqualFold(filepath.Ext(path), render.FormatPNG.Extension()) {
		renderer = render.NewImageRenderer(defaults.Width, defaults.Height)
	}
	data, err := renderer.Render(ctx, result.Chart)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// writeTable prints the model summary followed by both output tables
func writeTable(w io.Writer, result *forecast.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	summary := result.Model.Summary()
	fmt.Fprintf(tw, "Modelo\t\n")
	fmt.Fprintf(tw, "intercept\t%.4f\t\n", summary.Intercept)
	for _, c := range summary.Coefficients {
		fmt.Fprintf(tw, "%s\t%.4f\t\n", c.Feature, c.Value)
	}
	fmt.Fprintf(tw, "r_squared\t%.4f\t\n", summary.Stats.RSquared)
	fmt.Fprintf(tw, "rmse\t%.2f\t\n", summary.Stats.RMSE)
	fmt.Fprintf(tw, "\t\n")

	for _, section := range []struct {
		title string
		table forecast.ResultTable
	}{
		{"Histórico", result.HistoricalTable()},
		{"Previsão", result.FutureTable()},
	} {
		fmt.Fprintf(tw, "%s\t\n", section.title)
		fmt.Fprintf(tw, "%s\t\n", strings.Join(section.table.Columns, "\t"))
		for _, row := range exporter.TableRows(section.table) {
			fmt.Fprintf(tw, "%s\t\n", strings.Join(row, "\t"))
		}
		fmt.Fprintf(tw, "\t\n")
	}
	return tw.Flush()
}
