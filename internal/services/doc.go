// Package services implements the business logic layer of the forecasting
// application. It sits between the HTTP handlers and the forecast pipeline,
// the dataset readers and the file stores.
//
// # Available Services
//
//	- ForecastService: reads datasets, runs the pipeline, renders charts,
//	  exports tables and prints PDF reports
//	- HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return errors that the HTTP layer maps to problem documents:
//
//	- forecast errors pass through unchanged and keep their Kind
//	- missing uploads become not found errors
//	- unreadable files become parsing errors
//	- Google Sheets failures become upstream errors
//	- disabled features become unavailable errors
//
// # Caching
//
// When enabled, ForecastService caches results by the blake2b fingerprint of
// the input table and horizon. Concurrent identical requests share one
// pipeline run.
//
// # Testing
//
// Collaborators with side effects are replaced in tests:
//
//	sheets := new(MockSheetSource)
//	sheets.On("ReadRange", mock.Anything, "id", "A:B").Return(table, nil)
//	svc := NewForecastService(ForecastDeps{Sheets: sheets}, logger)
package services
