package http

import (
	"context"
	"io"

	"salesforecast/internal/forecast"
	"salesforecast/internal/render"
	"salesforecast/internal/services"
)

// ForecastServiceInterface defines the forecast operations used by the handlers
type ForecastServiceInterface interface {
	DefaultHorizon() int
	ForecastWithHorizon(ctx context.Context, table forecast.Table, horizon int) (*services.Run, error)
	ForecastUpload(ctx context.Context, filename string, r io.Reader, horizon int) (*services.Run, error)
	ForecastSheet(ctx context.Context, spreadsheetID, rng string, horizon int) (*services.Run, error)
	RenderChart(ctx context.Context, result *forecast.Result) (*render.Artifact, error)
	Export(ctx context.Context, name, format string, w io.Writer) error
	BuildReport(ctx context.Context, name string) ([]byte, error)
	ReportName() string
}
