// Package app wires the sales forecasting service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and FORECAST_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Create the upload, chart and report stores
//	4. Build the chart renderer, page templates and optional Sheets reader
//	5. Initialize the forecast and health services
//	6. Set up the chi router, middleware and HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    // report and exit
//	}
//	if err := application.Run(); err != nil {
//	    // report and exit
//	}
//
// Tests and embedders that already hold a configuration use New instead.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests, closes
// the headless browser and flushes telemetry. The package never calls
// os.Exit; the caller decides the exit code.
package app
