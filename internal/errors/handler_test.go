package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProblemFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"malformed date", fmt.Errorf("ingest: %w", &forecast.CellError{Row: 3, Column: "Data", Raw: "x", Err: forecast.ErrMalformedDate}), http.StatusBadRequest, TypeForecastInvalidData},
		{"missing column", &forecast.ColumnError{Column: "Vendas"}, http.StatusBadRequest, TypeForecastInvalidData},
		{"empty series", forecast.ErrEmptySeries, http.StatusBadRequest, TypeForecastInvalidData},
		{"underdetermined", &forecast.FitError{Rows: 2, Parameters: 3, Err: forecast.ErrUnderdeterminedModel}, http.StatusUnprocessableEntity, TypeForecastInsufficientData},
		{"singular", forecast.ErrSingularFeatureMatrix, http.StatusUnprocessableEntity, TypeForecastInsufficientData},
		{"not fitted", forecast.ErrModelNotFitted, http.StatusInternalServerError, TypeForecastInternal},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"api error", NotFoundError("upload"), http.StatusNotFound, TypeNotFound},
		{"too large", ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"app not found", NewNotFoundError("file"), http.StatusNotFound, TypeNotFound},
		{"app parsing", NewParsingError("bad csv", fmt.Errorf("quote")), http.StatusBadRequest, TypeDatasetUnreadable},
		{"app unavailable", NewUnavailableError("pdf export"), http.StatusServiceUnavailable, TypeServiceDown},
		{"app upstream", NewUpstreamError("sheets", nil), http.StatusBadGateway, TypeUpstreamFailed},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProblemFor(tt.err, "/api/forecast")
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/forecast", p.Instance)
		})
	}
}

func TestProblemForCellErrorExtensions(t *testing.T) {
	err := fmt.Errorf("ingest: %w", &forecast.CellError{Row: 4, Column: "Data", Raw: "31/31/2023", Err: forecast.ErrMalformedDate})

	p := ProblemFor(err, "/forecast")

	assert.Equal(t, 4, p.Extensions["row"])
	assert.Equal(t, "Data", p.Extensions["column"])
	assert.Equal(t, "31/31/2023", p.Extensions["value"])
	assert.Equal(t, "input", p.Extensions["kind"])
}

func TestHandleErrorWritesProblem(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	req := httptest.NewRequest(http.MethodPost, "/api/forecast", nil)
	req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-1"))
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, fmt.Errorf("fit: %w", &forecast.FitError{Rows: 2, Parameters: 3, Err: forecast.ErrUnderdeterminedModel}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeForecastInsufficientData, body["type"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Equal(t, float64(2), body["observations"])
	assert.NotContains(t, body, "stack")

	rec2, ok := logs.Find("request failed")
	require.True(t, ok)
	assert.Equal(t, "error_handler", rec2.Attrs["component"])
}

func TestHandleErrorNil(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, logs.Records())
}

func TestHandlePanic(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	NewErrorHandler(logger, true).HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/boom", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, "kaboom", body["panic"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/nope", decodeProblem(t, rec)["instance"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/forecast", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}

func TestProblemDetailsMarshalKeepsStandardFields(t *testing.T) {
	p := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad", "", "").
		WithExtension("status", 999).
		WithExtension("field", "horizon")

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, float64(400), body["status"], "extensions cannot override standard members")
	assert.Equal(t, "horizon", body["field"])
	assert.NotContains(t, body, "detail")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError("save upload", cause).WithContext("file", "vendas.csv")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[STORAGE] save upload")
	assert.Equal(t, "vendas.csv", err.Context["file"])
}
