// Package exporter writes forecast results as CSV and Excel downloads.
//
// CSVWriter is the core CSV writer with UTF-8 BOM support for Excel. The
// combined result export tags each row with its section (historico or
// previsao) and starts with a data_geracao stamp.
//
// ExportResultXLSX writes one worksheet per table plus the model summary.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	err := w.ExportResultCSV(rw, result, time.Now())
package exporter
