package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"salesforecast/internal/dataset"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/middleware"
	"salesforecast/internal/services"
	api "salesforecast/pkg/contracts/api/v1"
)

const multipartMemory = 32 << 20

var exportContentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ForecastHandler serves the JSON forecast API
type ForecastHandler struct {
	service      ForecastServiceInterface
	validator    *middleware.Validator
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	maxHorizon   int
	logger       *slog.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastServiceInterface, maxHorizon int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		validator:    middleware.NewValidator(logger, errorHandler),
		query:        middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		maxHorizon:   maxHorizon,
		logger:       logger.With(slog.String("handler", "forecast")),
	}
}

// Routes returns the forecast routes
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator(h.errorHandler,
		"multipart/form-data", "text/csv", "text/plain", "application/octet-stream")).
		Post("/", h.Forecast)
	r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).
		Post("/sheets", h.ForecastSheet)
	r.Get("/export", h.Export)

	return r
}

// Forecast handles POST /api/forecast. The dataset is either a multipart
// "file" field or a raw CSV body.
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	horizon, ok := h.query.ValidateInt(w, r, "horizon", 0, h.maxHorizon, h.service.DefaultHorizon())
	if !ok {
		return
	}

	var (
		run *services.Run
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		run, err = h.forecastMultipart(r, horizon)
	} else {
		run, err = h.forecastBody(r, horizon)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, run)
}

func (h *ForecastHandler) forecastMultipart(r *http.Request, horizon int) (*services.Run, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apierrors.ErrPayloadTooLarge
		}
		return nil, apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_MULTIPART", "Multipart form could not be parsed", err.Error())
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apierrors.ErrMissingFile
	}
	defer file.Close()

	return h.service.ForecastUpload(r.Context(), header.Filename, file, horizon)
}

func (h *ForecastHandler) forecastBody(r *http.Request, horizon int) (*services.Run, error) {
	table, err := dataset.CSVReader{}.Read(r.Context(), r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apierrors.ErrPayloadTooLarge
		}
		if forecast.KindOf(err) != forecast.KindUnknown {
			return nil, err
		}
		return nil, apierrors.NewParsingError("could not read CSV body", err)
	}
	return h.service.ForecastWithHorizon(r.Context(), table, horizon)
}

// ForecastSheet handles POST /api/forecast/sheets
func (h *ForecastHandler) ForecastSheet(w http.ResponseWriter, r *http.Request) {
	var req api.SheetForecastRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	horizon := h.service.DefaultHorizon()
	if req.Horizon != nil {
		horizon = *req.Horizon
	}

	run, err := h.service.ForecastSheet(r.Context(), req.SpreadsheetID, req.Range, horizon)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, run)
}

// Export handles GET /api/forecast/export?file=&format=csv|xlsx
func (h *ForecastHandler) Export(w http.ResponseWriter, r *http.Request) {
	req := api.ExportRequest{
		File:   strings.TrimSpace(r.URL.Query().Get("file")),
		Format: strings.ToLower(r.URL.Query().Get("format")),
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), req.File, req.Format, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	stem := strings.TrimSuffix(req.File, filepath.Ext(req.File))
	w.Header().Set("Content-Type", exportContentTypes[req.Format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stem+"_previsao."+req.Format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed", slog.String("error", err.Error()))
	}
}

func (h *ForecastHandler) respond(w http.ResponseWriter, r *http.Request, run *services.Run) {
	resp := ToForecastResponse(run)
	resp.TraceID = infrastructure.GetTraceID(r.Context())

	artifact, err := h.service.RenderChart(r.Context(), run.Result)
	if err != nil {
		// The numbers are still useful without a picture.
		h.logger.WarnContext(r.Context(), "chart rendering failed", slog.String("error", err.Error()))
	} else {
		resp.ChartURL = artifact.URL
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// ToForecastResponse maps a run onto the API contract
func ToForecastResponse(run *services.Run) api.ForecastResponse {
	result := run.Result
	resp := api.ForecastResponse{
		File:       run.File,
		Horizon:    result.Horizon,
		Cached:     run.Cached,
		DurationMS: float64(result.Duration) / float64(time.Millisecond),
		Chart:      result.Chart,
		Historical: make([]api.HistoricalPoint, 0, len(result.Projection.Historical)),
		Future:     make([]api.ForecastPoint, 0, len(result.Projection.Future)),
	}

	if result.Model != nil {
		summary := result.Model.Summary()
		resp.Model = api.ModelSummary{
			Intercept:    summary.Intercept,
			Coefficients: make(map[string]float64, len(summary.Coefficients)),
			Observations: summary.Stats.Observations,
			RSquared:     summary.Stats.RSquared,
			RMSE:         summary.Stats.RMSE,
			MAE:          summary.Stats.MAE,
		}
		for _, c := range summary.Coefficients {
			resp.Model.Coefficients[c.Feature] = c.Value
		}
	}

	for _, row := range result.Projection.Historical {
		resp.Historical = append(resp.Historical, api.HistoricalPoint{
			Date:     row.Date.Format(forecast.DateLayout),
			Observed: row.Observed,
			Trend:    row.Predicted,
		})
	}
	for _, row := range result.Projection.Future {
		resp.Future = append(resp.Future, api.ForecastPoint{
			Date:     row.Date.Format(forecast.DateLayout),
			Forecast: row.Predicted,
		})
	}
	return resp
}
