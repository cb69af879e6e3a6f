package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
	"salesforecast/internal/shared/testutil"
	api "salesforecast/pkg/contracts/api/v1"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 8081
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Report.PDFEnabled = false
	cfg.Telemetry.MetricExporter = "none"
	return cfg
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})
	return app
}

func (a *Application) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewWiresApplication(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApplication(t, cfg)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.ForecastService)
	assert.NotNil(t, app.HealthService)
	assert.Nil(t, app.Browser, "svg charts without PDF need no browser")
	assert.Equal(t, ":8081", app.Server.Addr)
	assert.Equal(t, 6, app.ForecastService.DefaultHorizon())

	for _, dir := range []string{app.Paths.UploadsDir, app.Paths.ChartsDir, app.Paths.ReportsDir, app.Paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestNewRejectsUnknownRenderer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chart.Renderer = "canvas"
	logger, _ := testutil.NewTestLogger(t)

	_, err := New(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chart renderer")
}

func TestIndexPage(t *testing.T) {
	app := newTestApplication(t, testConfig(t))

	rec := app.serve(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Body.String(), `action="/forecast"`)
}

func TestForecastServesChart(t *testing.T) {
	app := newTestApplication(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/forecast?horizon=3",
		bytes.NewReader(testutil.CSVBytes(t, testutil.YearOfSales())))
	req.Header.Set("Content-Type", "text/csv")
	rec := app.serve(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Future, 3)
	require.True(t, strings.HasPrefix(resp.ChartURL, "/static/charts/"), resp.ChartURL)

	chart := app.serve(httptest.NewRequest(http.MethodGet, resp.ChartURL, nil))
	require.Equal(t, http.StatusOK, chart.Code)
	assert.Equal(t, "image/svg+xml", chart.Header().Get("Content-Type"))
	assert.Contains(t, chart.Body.String(), "<svg")
}

func TestForecastServesPNGChartWithoutBrowser(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chart.Renderer = "png"
	app := newTestApplication(t, cfg)
	assert.Nil(t, app.Browser)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast",
		bytes.NewReader(testutil.CSVBytes(t, testutil.YearOfSales())))
	req.Header.Set("Content-Type", "text/csv")
	rec := app.serve(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, strings.HasSuffix(resp.ChartURL, ".png"), resp.ChartURL)

	chart := app.serve(httptest.NewRequest(http.MethodGet, resp.ChartURL, nil))
	require.Equal(t, http.StatusOK, chart.Code)
	assert.Equal(t, "image/png", chart.Header().Get("Content-Type"))
}

func TestUnknownRoutes(t *testing.T) {
	app := newTestApplication(t, testConfig(t))

	t.Run("not found", func(t *testing.T) {
		rec := app.serve(httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := app.serve(httptest.NewRequest(http.MethodDelete, "/report", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxUploadBytes = 64
	app := newTestApplication(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast",
		bytes.NewReader(testutil.CSVBytes(t, testutil.YearOfSales())))
	req.Header.Set("Content-Type", "text/csv")
	rec := app.serve(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	app := newTestApplication(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := app.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndVersion(t *testing.T) {
	app := newTestApplication(t, testConfig(t))

	ready := app.serve(httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code, ready.Body.String())

	rec := app.serve(httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, BuildID, info["build_id"])
	features := info["features"].(map[string]interface{})
	assert.Equal(t, "svg", features["renderer"])
	assert.Equal(t, false, features["pdf"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		app := newTestApplication(t, testConfig(t))

		rec := app.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("prometheus", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Telemetry.MetricExporter = "prometheus"
		app := newTestApplication(t, cfg)

		req := httptest.NewRequest(http.MethodPost, "/api/forecast",
			bytes.NewReader(testutil.CSVBytes(t, testutil.YearOfSales())))
		req.Header.Set("Content-Type", "text/csv")
		require.Equal(t, http.StatusOK, app.serve(req).Code)

		rec := app.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "forecast_runs_total")
		assert.Contains(t, string(body), "go_goroutines")
	})
}

func TestStopWithoutStart(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(testConfig(t), logger)
	require.NoError(t, err)

	assert.NoError(t, app.Stop(context.Background()))
}

func TestGenerateBuildID(t *testing.T) {
	assert.Len(t, BuildID, 12)
	assert.Equal(t, BuildID, generateBuildID())
}
