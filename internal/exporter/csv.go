package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"salesforecast/internal/forecast"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Section names used to tag rows of the combined CSV export
const (
	SectionHistorical = "historico"
	SectionForecast   = "previsao"
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Preamble  [][]string // written before the header, e.g. a generation stamp
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_exporter"))}
}

// Write encodes options to w
func (c *CSVWriter) Write(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	for _, line := range options.Preamble {
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write preamble: %w", err)
		}
	}

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes options to filePath, creating parent directories
func (c *CSVWriter) WriteFile(filePath string, options WriteOptions) error {
	c.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	if err := c.Write(file, options); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ResultOptions lays out a forecast result as one CSV: a generation stamp,
// then historical and projected rows tagged by section.
func ResultOptions(result *forecast.Result, generatedAt time.Time) WriteOptions {
	headers := []string{"secao", forecast.ColumnDate, forecast.ColumnObserved, forecast.ColumnTrend, forecast.ColumnForecast}

	hist := TableRows(result.HistoricalTable())
	future := TableRows(result.FutureTable())
	records := make([][]string, 0, len(hist)+len(future))
	for _, r := range hist {
		records = append(records, []string{SectionHistorical, r[0], r[1], r[2], ""})
	}
	for _, r := range future {
		records = append(records, []string{SectionForecast, r[0], "", "", r[1]})
	}

	return WriteOptions{
		Preamble:  [][]string{{"data_geracao", FormatGeneratedAt(generatedAt)}},
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	}
}

// ExportResultCSV writes result to w as CSV
func (c *CSVWriter) ExportResultCSV(w io.Writer, result *forecast.Result, generatedAt time.Time) error {
	return c.Write(w, ResultOptions(result, generatedAt))
}
