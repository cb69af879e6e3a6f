// Package forecast turns a dated sales history into a fitted linear model,
// an in-sample trend, a monthly projection and a chart description.
//
// The stages run in a fixed order:
//
//	Ingest   -> Series        (parse, validate, sort)
//	Engineer -> []FeatureRow  (elapsed_days, month)
//	Fit      -> *Model        (OLS with intercept, gonum QR)
//	Project  -> *Projection   (historical trend + H future months)
//	BuildChart -> ChartSpec   (observed, trend and forecast series)
//
// Pipeline wires the stages together. Every call starts from the raw table and
// returns either a complete Result or an error; nothing is kept between calls.
//
// Errors are sentinel values classified by KindOf into input, model and
// contract failures so transports can map them to status codes.
package forecast
