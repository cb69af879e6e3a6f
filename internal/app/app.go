package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/crypto/blake2b"

	"salesforecast/internal/config"
	"salesforecast/internal/dataset"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/files"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	customMiddleware "salesforecast/internal/middleware"
	rendering "salesforecast/internal/render"
	"salesforecast/internal/report"
	"salesforecast/internal/services"
	handlers "salesforecast/internal/transport/http"
	"salesforecast/pkg/contracts"
)

// AppName is the display name used in startup logs
const AppName = config.AppName

// BuildID identifies this build in /api/version
var BuildID = generateBuildID()

func generateBuildID() string {
	h := blake2b.Sum256([]byte(contracts.Version + "|" + contracts.BuildTime + "|" + contracts.GitCommit))
	return hex.EncodeToString(h[:])[:12]
}

// Extensions accepted by each store
var (
	uploadExtensions  = []string{".csv", ".txt", ".xlsx", ".xlsm"}
	chartExtensions   = []string{".svg", ".png"}
	archiveExtensions = []string{".pdf", ".csv"}
)

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.ForecastMetrics
	ErrorHandler    *apierrors.ErrorHandler
	Browser         *rendering.Browser // nil unless PNG charts or PDF reports are enabled
	Reports         *report.Reports
	ForecastService *services.ForecastService
	HealthService   *services.HealthService
}

// NewApplication loads configuration from file and environment, installs the
// process logger and wires the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths := cfg.Paths.Resolve()
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.LogsDir, filepath.Base(cfg.Logging.FilePath))
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires an application from an already loaded configuration. The HTTP
// server is created but not started.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_id", BuildID))

	paths := cfg.Paths.Resolve()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewForecastMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(context.Background()); err != nil {
		if app.Browser != nil {
			app.Browser.Close()
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the stores, renderers and services
func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config

	if cfg.Chart.Renderer == rendering.RendererChromedp || cfg.Report.PDFEnabled {
		a.Browser = rendering.NewBrowser(cfg.Chart.ChromeBin, cfg.Chart.Timeout, a.Logger)
	}

	renderer, err := rendering.New(cfg.Chart.Renderer, cfg.Chart.Width, cfg.Chart.Height, a.Browser)
	if err != nil {
		return fmt.Errorf("failed to create chart renderer: %w", err)
	}

	var printer rendering.PDFPrinter
	if cfg.Report.PDFEnabled && a.Browser != nil {
		printer = a.Browser
	}
	reports, err := report.New(cfg.Report, printer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to parse page templates: %w", err)
	}
	a.Reports = reports

	var sheets services.SheetSource
	if cfg.Sheets.Enabled {
		reader, err := dataset.NewSheetsReader(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.DefaultRange)
		if err != nil {
			return fmt.Errorf("failed to initialize sheets reader: %w", err)
		}
		sheets = reader
	}

	cacheSize := 0
	if cfg.Cache.Enabled {
		cacheSize = cfg.Cache.Size
	}

	pipeline := forecast.NewPipeline(forecast.Options{
		Columns: forecast.Columns{Date: cfg.Forecast.DateColumn, Value: cfg.Forecast.ValueColumn},
		Horizon: cfg.Forecast.DefaultHorizon,
	}, a.Logger)

	a.ForecastService = services.NewForecastService(services.ForecastDeps{
		Pipeline:   pipeline,
		Uploads:    files.NewStore(a.Paths.UploadsDir, cfg.Server.MaxUploadBytes, uploadExtensions, a.Logger),
		Charts:     rendering.NewChartStore(renderer, files.NewStore(a.Paths.ChartsDir, 0, chartExtensions, a.Logger), 0, a.Logger),
		Reports:    reports,
		Archive:    files.NewStore(a.Paths.ReportsDir, 0, archiveExtensions, a.Logger),
		Sheets:     sheets,
		Metrics:    a.Metrics,
		MaxHorizon: cfg.Forecast.MaxHorizon,
		CacheSize:  cacheSize,
		CacheTTL:   cfg.Cache.TTL,
	}, a.Logger)

	a.HealthService = services.NewHealthService(
		contracts.Version,
		contracts.BuildTime,
		BuildID,
		a.Paths,
		services.Features{
			Renderer: cfg.Chart.Renderer,
			PDF:      reports.PDFEnabled(),
			Sheets:   sheets != nil,
			Cache:    cacheSize > 0,
		},
		a.Logger,
	)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	cfg := a.Config
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer, then the security layers
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if cfg.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	if cfg.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			cfg.Security.RateLimit.RPS,
			cfg.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Prometheus compresses its own output
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Compress(5))

		a.setupStaticRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(cfg.Server.RequestTimeout))
			r.Use(customMiddleware.MaxBodySize(cfg.Server.MaxUploadBytes))

			a.setupHTMLRoutes(r)
			a.setupAPIRoutes(r)
		})
	})

	a.Router = r
}

// setupHTMLRoutes configures the upload form, result page and PDF download
func (a *Application) setupHTMLRoutes(r chi.Router) {
	columns := forecast.Columns{Date: a.Config.Forecast.DateColumn, Value: a.Config.Forecast.ValueColumn}
	web := handlers.NewWebHandler(a.ForecastService, a.Reports, columns, a.Logger, a.ErrorHandler)

	r.Get("/", web.Index)
	r.Post("/forecast", web.Forecast)
	r.Get("/report", web.Report)
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		forecastHandler := handlers.NewForecastHandler(a.ForecastService, a.Config.Forecast.MaxHorizon, a.Logger, a.ErrorHandler)
		r.Mount("/forecast", forecastHandler.Routes())

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
}

// setupStaticRoutes serves rendered charts from the charts directory
func (a *Application) setupStaticRoutes(r chi.Router) {
	fileServer := http.StripPrefix(rendering.ChartURLPrefix, http.FileServer(http.Dir(a.Paths.ChartsDir)))
	r.Handle(rendering.ChartURLPrefix+"*", fileServer)
}

// getCORSConfig returns CORS configuration from the security section
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.Browser != nil {
		a.Browser.Close()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck runs the readiness probe once at startup
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.HealthService.ReadinessCheck(ctx)
	if status.Status == "ready" {
		a.Logger.InfoContext(ctx, "Startup health check passed")
		return nil
	}

	var failed []string
	for name, s := range status.Services {
		if sh, ok := s.(services.ServiceHealth); ok && sh.Status != "ready" {
			failed = append(failed, fmt.Sprintf("%s: %s", name, sh.Message))
		}
	}
	return fmt.Errorf("startup health check: %v", failed)
}

// Handler returns the root HTTP handler
func (a *Application) Handler() http.Handler {
	return a.Router
}
