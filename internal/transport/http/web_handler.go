package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/forecast"
	"salesforecast/internal/middleware"
	"salesforecast/internal/report"
	api "salesforecast/pkg/contracts/api/v1"
)

const (
	msgNoFileSent     = "Nenhum arquivo enviado"
	msgNoFileSelected = "Nenhum arquivo selecionado"
)

// WebHandler serves the HTML upload flow and the PDF report download
type WebHandler struct {
	service      ForecastServiceInterface
	pages        *report.Reports
	columns      forecast.Columns
	validator    *middleware.Validator
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewWebHandler creates a new web handler
func NewWebHandler(service ForecastServiceInterface, pages *report.Reports, columns forecast.Columns, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebHandler {
	return &WebHandler{
		service:      service,
		pages:        pages,
		columns:      columns,
		validator:    middleware.NewValidator(logger, errorHandler),
		query:        middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "web")),
	}
}

// Index handles GET /
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "")
}

// Forecast handles POST /forecast with a multipart "file" field and renders
// the result page. Failures re-render the upload form with a message.
func (h *WebHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, msgNoFileSent)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// Browsers send an empty filename when nothing was picked, which
		// lands in the value map rather than the file map.
		msg := msgNoFileSent
		if _, ok := r.MultipartForm.Value["file"]; ok {
			msg = msgNoFileSelected
		}
		h.renderIndex(w, r, http.StatusBadRequest, msg)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.renderIndex(w, r, http.StatusBadRequest, msgNoFileSelected)
		return
	}

	ctx := r.Context()
	run, err := h.service.ForecastUpload(ctx, header.Filename, file, h.service.DefaultHorizon())
	if err != nil {
		h.renderFailure(w, r, err)
		return
	}

	artifact, err := h.service.RenderChart(ctx, run.Result)
	if err != nil {
		h.renderFailure(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.pages.RenderResult(&buf, h.pages.ResultPage(run.Result, artifact, run.File)); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// Report handles GET /report?file= and returns the PDF as an attachment
func (h *WebHandler) Report(w http.ResponseWriter, r *http.Request) {
	name, ok := h.query.RequireParam(w, r, "file")
	if !ok {
		return
	}
	if err := h.validator.ValidateStruct(&api.ReportRequest{File: name}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	pdf, err := h.service.BuildReport(r.Context(), name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.service.ReportName()))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.logger.WarnContext(r.Context(), "report write failed", slog.String("error", err.Error()))
	}
}

func (h *WebHandler) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	problem := apierrors.ProblemFor(err, r.URL.Path)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "upload forecast failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type))

	h.renderIndex(w, r, problem.Status, problem.Detail)
}

func (h *WebHandler) renderIndex(w http.ResponseWriter, r *http.Request, status int, message string) {
	var buf bytes.Buffer
	err := h.pages.RenderIndex(&buf, report.IndexPage{
		Error:       message,
		DateColumn:  h.columns.Date,
		ValueColumn: h.columns.Value,
		Horizon:     h.service.DefaultHorizon(),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(body)
}
