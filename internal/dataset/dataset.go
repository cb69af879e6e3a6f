// Package dataset reads sales histories from CSV files, Excel workbooks and
// Google Sheets into forecast tables.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"salesforecast/internal/forecast"
)

// Format identifies a supported file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for file names with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Reader produces a table from a source stream.
type Reader interface {
	Read(ctx context.Context, r io.Reader) (forecast.Table, error)
}

// FormatFromName picks the format from the file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReaderFor returns the reader for format. Workbooks are read from their
// first sheet.
func ReaderFor(format Format) (Reader, error) {
	switch format {
	case FormatCSV:
		return CSVReader{}, nil
	case FormatXLSX:
		return XLSXReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Read decodes r using the reader matching name's extension.
func Read(ctx context.Context, name string, r io.Reader) (forecast.Table, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return forecast.Table{}, err
	}
	reader, err := ReaderFor(format)
	if err != nil {
		return forecast.Table{}, err
	}
	return reader.Read(ctx, r)
}

// ReadFile opens path and reads it with the matching reader.
func ReadFile(ctx context.Context, path string) (forecast.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return forecast.Table{}, err
	}
	defer f.Close()
	return Read(ctx, filepath.Base(path), f)
}

// tableFromRows splits rows into header and data, dropping trailing empty
// header cells and right-padding short rows.
func tableFromRows(rows [][]string) (forecast.Table, error) {
	if len(rows) == 0 {
		return forecast.Table{}, ErrNoHeader
	}
	header := rows[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return forecast.Table{}, ErrNoHeader
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		data = append(data, row)
	}
	return forecast.Table{Header: header, Rows: data}, nil
}

// ErrNoHeader is returned for sources without a header row.
var ErrNoHeader = errors.New("dataset has no header row")
