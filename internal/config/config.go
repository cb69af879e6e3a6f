package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FORECAST_SERVER_PORT.
const EnvPrefix = "FORECAST"

// Application identity
const (
	AppName    = "Sales Forecast"
	AppVersion = "1.0.0"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Chart     ChartConfig     `yaml:"chart" envconfig:"CHART"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system locations. Relative entries are resolved
// against BaseDir, which defaults to the executable directory.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	UploadsDir string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR"`
	ChartsDir  string `yaml:"charts_dir" envconfig:"CHARTS_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// ForecastConfig holds the pipeline contract.
type ForecastConfig struct {
	DateColumn     string `yaml:"date_column" envconfig:"DATE_COLUMN"`
	ValueColumn    string `yaml:"value_column" envconfig:"VALUE_COLUMN"`
	DefaultHorizon int    `yaml:"default_horizon" envconfig:"DEFAULT_HORIZON"`
	MaxHorizon     int    `yaml:"max_horizon" envconfig:"MAX_HORIZON"`
}

// ChartConfig selects and sizes the chart renderer.
type ChartConfig struct {
	Renderer  string        `yaml:"renderer" envconfig:"RENDERER"` // svg, png or chromedp
	Width     int           `yaml:"width" envconfig:"WIDTH"`
	Height    int           `yaml:"height" envconfig:"HEIGHT"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	ChromeBin string        `yaml:"chrome_bin" envconfig:"CHROME_BIN"`
}

// ReportConfig holds the page header shown on every page and PDF.
type ReportConfig struct {
	Professor  string `yaml:"professor" envconfig:"PROFESSOR"`
	Discipline string `yaml:"discipline" envconfig:"DISCIPLINE"`
	PDFEnabled bool   `yaml:"pdf_enabled" envconfig:"PDF_ENABLED"`
	PDFName    string `yaml:"pdf_name" envconfig:"PDF_NAME"`
}

// CacheConfig controls the optional result cache keyed by dataset fingerprint.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED"`
	Size    int           `yaml:"size" envconfig:"SIZE"`
	TTL     time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// SheetsConfig enables Google Sheets as a dataset source.
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	DefaultRange    string `yaml:"default_range" envconfig:"DEFAULT_RANGE"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // stdout or none
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // prometheus or none
}

// Load builds the configuration from defaults, then the YAML file if one is
// found, then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Forecast.DefaultHorizon < 0 || c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("default horizon %d outside [0, %d]", c.Forecast.DefaultHorizon, c.Forecast.MaxHorizon)
	}

	switch c.Chart.Renderer {
	case "svg", "png", "chromedp":
	default:
		return fmt.Errorf("unknown chart renderer: %q", c.Chart.Renderer)
	}

	if c.Cache.Enabled && (c.Cache.Size <= 0 || c.Cache.TTL <= 0) {
		return fmt.Errorf("cache size and ttl must be positive when the cache is enabled")
	}

	if c.Sheets.Enabled && c.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets credentials file is required when sheets are enabled")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
			MaxUploadBytes:  10 << 20, // 10MB
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			UploadsDir: "uploads",
			ChartsDir:  "static/charts",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
		Forecast: ForecastConfig{
			DateColumn:     "Data",
			ValueColumn:    "Vendas",
			DefaultHorizon: 6,
			MaxHorizon:     60,
		},
		Chart: ChartConfig{
			Renderer: "svg",
			Width:    1200,
			Height:   600,
			Timeout:  30 * time.Second,
		},
		Report: ReportConfig{
			Professor:  "Alysson Gabriel",
			Discipline: "Linguagem de Programação Avançada",
			PDFEnabled: true,
			PDFName:    "relatorio_previsao_sazonal.pdf",
		},
		Cache: CacheConfig{
			Enabled: false,
			Size:    64,
			TTL:     10 * time.Minute,
		},
		Sheets: SheetsConfig{
			DefaultRange: "A:B",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "salesforecast",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}
