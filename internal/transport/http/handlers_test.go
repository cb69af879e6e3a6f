package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/files"
	"salesforecast/internal/forecast"
	"salesforecast/internal/middleware"
	"salesforecast/internal/render"
	"salesforecast/internal/report"
	"salesforecast/internal/services"
	"salesforecast/internal/shared/testutil"
	api "salesforecast/pkg/contracts/api/v1"
)

const testSpreadsheetID = "1AbCdEfGhIjKlMnOpQrStUvWxYz0123456789"

type mockSheets struct {
	mock.Mock
}

func (m *mockSheets) ReadRange(ctx context.Context, spreadsheetID, rng string) (forecast.Table, error) {
	args := m.Called(ctx, spreadsheetID, rng)
	return args.Get(0).(forecast.Table), args.Error(1)
}

type stubPrinter struct{}

func (stubPrinter) PrintPDF(context.Context, []byte) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

type testServer struct {
	router  chi.Router
	sheets  *mockSheets
	uploads *files.Store
}

func newTestServer(t *testing.T, prometheus http.Handler) *testServer {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	root := t.TempDir()

	uploads := files.NewStore(filepath.Join(root, "uploads"), 1<<20, []string{".csv", ".xlsx"}, logger)
	chartFiles := files.NewStore(filepath.Join(root, "charts"), 0, []string{".svg"}, logger)
	pages, err := report.New(config.ReportConfig{
		Professor:  "Alysson Gabriel",
		Discipline: "Linguagem de Programação Avançada",
		PDFEnabled: true,
	}, stubPrinter{}, logger)
	require.NoError(t, err)

	sheets := new(mockSheets)
	svc := services.NewForecastService(services.ForecastDeps{
		Pipeline:   forecast.NewPipeline(forecast.DefaultOptions(), logger),
		Uploads:    uploads,
		Charts:     render.NewChartStore(render.NewSVGRenderer(600, 300), chartFiles, 10, logger),
		Reports:    pages,
		Sheets:     sheets,
		MaxHorizon: 60,
	}, logger)
	health := services.NewHealthService("1.0.0", "", "", nil, services.Features{Renderer: "svg"}, logger)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	web := NewWebHandler(svc, pages, forecast.DefaultColumns(), logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/", web.Index)
	r.Post("/forecast", web.Forecast)
	r.Get("/report", web.Report)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/forecast", NewForecastHandler(svc, 60, logger, errorHandler).Routes())
		healthHandler := NewHealthHandler(health, logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
	r.Handle("/metrics", NewMetricsHandler(prometheus, errorHandler))

	return &testServer{router: r, sheets: sheets, uploads: uploads}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func salesCSV(t *testing.T) []byte {
	return testutil.CSVBytes(t, testutil.YearOfSales())
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestAPIForecastMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	body, contentType := multipartBody(t, "file", "vendas.csv", salesCSV(t))

	req := httptest.NewRequest(http.MethodPost, "/api/forecast", body)
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "vendas.csv", resp.File)
	assert.Equal(t, 6, resp.Horizon)
	assert.Len(t, resp.Historical, 12)
	assert.Len(t, resp.Future, 6)
	assert.Equal(t, "2023-07-01", resp.Future[0].Date)
	assert.Equal(t, 12, resp.Model.Observations)
	assert.Contains(t, resp.Model.Coefficients, "elapsed_days")
	assert.True(t, strings.HasPrefix(resp.ChartURL, render.ChartURLPrefix))
	assert.NotEmpty(t, resp.TraceID)
	assert.NotNil(t, resp.Chart)
}

func TestAPIForecastCSVBody(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast?horizon=3", bytes.NewReader(salesCSV(t)))
	req.Header.Set("Content-Type", "text/csv")
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Horizon)
	assert.Len(t, resp.Future, 3)
	assert.Equal(t, "2023-09-01", resp.Future[2].Date)
	assert.Empty(t, resp.File)
}

func TestAPIForecastErrors(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantStatus  int
		wantType    string
	}{
		{
			name:        "bad horizon",
			target:      "/api/forecast?horizon=abc",
			contentType: "text/csv",
			body:        "Data,Vendas\n",
			wantStatus:  http.StatusBadRequest,
			wantType:    apierrors.TypeValidation,
		},
		{
			name:        "horizon above limit",
			target:      "/api/forecast?horizon=61",
			contentType: "text/csv",
			body:        "Data,Vendas\n",
			wantStatus:  http.StatusBadRequest,
			wantType:    apierrors.TypeValidation,
		},
		{
			name:        "malformed value",
			target:      "/api/forecast",
			contentType: "text/csv",
			body:        "Data,Vendas\n2023-01-01,abc\n2023-02-01,10\n2023-03-01,12\n",
			wantStatus:  http.StatusBadRequest,
			wantType:    apierrors.TypeForecastInvalidData,
		},
		{
			name:        "missing column",
			target:      "/api/forecast",
			contentType: "text/csv",
			body:        "Data,Total\n2023-01-01,10\n",
			wantStatus:  http.StatusBadRequest,
			wantType:    apierrors.TypeForecastInvalidData,
		},
		{
			name:        "too few rows",
			target:      "/api/forecast",
			contentType: "text/csv",
			body:        "Data,Vendas\n2023-01-01,10\n2023-02-01,12\n",
			wantStatus:  http.StatusUnprocessableEntity,
			wantType:    apierrors.TypeForecastInsufficientData,
		},
		{
			name:        "unsupported media type",
			target:      "/api/forecast",
			contentType: "application/xml",
			body:        "<sales/>",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantType:    apierrors.TypeUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := s.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, problem["type"])
		})
	}
}

func TestAPIForecastMultipartWithoutFile(t *testing.T) {
	s := newTestServer(t, nil)
	body, contentType := multipartBody(t, "other", "vendas.csv", salesCSV(t))

	req := httptest.NewRequest(http.MethodPost, "/api/forecast", body)
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeProblem(t, rec)["error_code"])
}

func TestAPIForecastSheet(t *testing.T) {
	s := newTestServer(t, nil)
	s.sheets.On("ReadRange", mock.Anything, testSpreadsheetID, "Vendas!A:B").Return(testutil.YearOfSales(), nil).Once()

	body := `{"spreadsheet_id":"` + testSpreadsheetID + `","range":"Vendas!A:B","horizon":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/forecast/sheets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp api.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSpreadsheetID, resp.File)
	assert.Len(t, resp.Future, 2)
	s.sheets.AssertExpectations(t)
}

func TestAPIForecastSheetValidation(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`{"spreadsheet_id":"short"}`,
		`{"spreadsheet_id":"` + testSpreadsheetID + `","horizon":-1}`,
		`{"spreadsheet_id":"` + testSpreadsheetID + `","unknown":true}`,
		``,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/forecast/sheets", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := s.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	s.sheets.AssertNotCalled(t, "ReadRange", mock.Anything, mock.Anything, mock.Anything)
}

func TestAPIExport(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.uploads.WriteFile(context.Background(), "vendas.csv", salesCSV(t))
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/forecast/export?file=vendas.csv&format=csv", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="vendas_previsao.csv"`, rec.Header().Get("Content-Disposition"))
		assert.Contains(t, rec.Body.String(), "data_geracao")
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/forecast/export?file=vendas.csv&format=XLSX", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
	})

	t.Run("errors", func(t *testing.T) {
		tests := map[string]int{
			"/api/forecast/export":                                http.StatusBadRequest,
			"/api/forecast/export?file=../etc/passwd":             http.StatusBadRequest,
			"/api/forecast/export?file=vendas.csv&format=pdf":     http.StatusBadRequest,
			"/api/forecast/export?file=nao_existe.csv&format=csv": http.StatusNotFound,
		}
		for target, want := range tests {
			rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, want, rec.Code, target)
			decodeProblem(t, rec)
		}
	})
}

func TestWebIndex(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, rec.Body.String(), "Alysson Gabriel")
}

func TestWebForecast(t *testing.T) {
	s := newTestServer(t, nil)
	body, contentType := multipartBody(t, "file", "vendas.csv", salesCSV(t))

	req := httptest.NewRequest(http.MethodPost, "/forecast", body)
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := rec.Body.String()
	assert.Contains(t, out, render.ChartURLPrefix)
	assert.Contains(t, out, "/report?file=vendas.csv")
	assert.Contains(t, out, "2023-12-01")
}

func TestWebForecastMessages(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		filename   string
		content    []byte
		wantStatus int
		wantText   string
	}{
		{"no file part", "other", "vendas.csv", []byte("x"), http.StatusBadRequest, msgNoFileSent},
		{"empty filename", "file", "", nil, http.StatusBadRequest, msgNoFileSelected},
		{"unsupported extension", "file", "vendas.pdf", []byte("x"), http.StatusUnsupportedMediaType, "Unsupported dataset format"},
		{"too few rows", "file", "vendas.csv", []byte("Data,Vendas\n2023-01-01,1\n2023-02-01,2\n"), http.StatusUnprocessableEntity, "not enough observations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			body, contentType := multipartBody(t, tt.field, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/forecast", body)
			req.Header.Set("Content-Type", contentType)
			rec := s.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.Contains(t, rec.Body.String(), `action="/forecast"`)
		})
	}
}

func TestWebReport(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.uploads.WriteFile(context.Background(), "vendas.csv", salesCSV(t))
	require.NoError(t, err)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/report?file=vendas.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="relatorio_previsao_sazonal.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/report", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_PARAMETER", decodeProblem(t, rec)["error_code"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/report?file=outro.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{"/api/health", "/api/health/ready", "/api/health/live", "/api/version"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), target)
		assert.Equal(t, "1.0.0", body["version"], target)
	}
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "# HELP forecast_runs_total\n")
	})
	s = newTestServer(t, exporter)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forecast_runs_total")
}
