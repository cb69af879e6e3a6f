// Package http implements the HTTP handlers of the forecasting service. It
// is a thin layer between the chi router and the service layer: handlers
// parse and validate requests, call a service and format the response.
//
// # Endpoints
//
//	GET  /                         upload form
//	POST /forecast                 multipart upload, renders the result page
//	GET  /report?file=             PDF report attachment
//	POST /api/forecast             multipart or raw CSV body, JSON result
//	POST /api/forecast/sheets      Google Sheets range, JSON result
//	GET  /api/forecast/export      CSV or XLSX export of both tables
//	GET  /api/health[/ready|/live] health checks
//	GET  /api/version              build information
//	GET  /metrics                  Prometheus metrics
//
// # Errors
//
// API failures are written as RFC 7807 problem documents by
// errors.ErrorHandler. The HTML flow re-renders the upload form with the
// problem detail instead.
package http
