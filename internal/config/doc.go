// Package config provides centralized configuration management for the
// forecasting service.
//
// # Configuration Sources
//
// Configuration is assembled in three layers, later layers winning:
//
//	1. Default() values
//	2. A YAML file (FORECAST_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern FORECAST_<SECTION>_<FIELD>:
//
//	FORECAST_SERVER_PORT=8080
//	FORECAST_LOGGING_LEVEL=debug
//	FORECAST_CHART_RENDERER=chromedp
//	FORECAST_CACHE_ENABLED=true
//	FORECAST_FORECAST_DEFAULT_HORIZON=12
//
// # Path Management
//
// Relative directories in PathsConfig are resolved against BaseDir, which
// defaults to the directory of the running executable:
//
//	paths := cfg.Paths.Resolve()
//	if err := paths.EnsureDirectories(); err != nil { ... }
package config
