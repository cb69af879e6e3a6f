// Package middleware holds the HTTP middleware chain: request ids, logging,
// panic recovery, rate limiting, request deadlines, CORS, security headers,
// OpenTelemetry instrumentation and request validation.
package middleware
