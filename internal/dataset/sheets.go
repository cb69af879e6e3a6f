package dataset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"salesforecast/internal/forecast"
)

// SheetsReader reads a range of a Google Sheets spreadsheet.
type SheetsReader struct {
	svc          *gsheet.Service
	defaultRange string
}

// NewSheetsReader creates a read-only Sheets client from a service account
// credentials file.
func NewSheetsReader(ctx context.Context, credentialsFile, defaultRange string) (*SheetsReader, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil, errors.New("missing service account credentials file")
	}
	svc, err := gsheet.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewSheetsReaderWithService(svc, defaultRange), nil
}

// NewSheetsReaderWithService wraps an existing Sheets service.
func NewSheetsReaderWithService(svc *gsheet.Service, defaultRange string) *SheetsReader {
	if defaultRange == "" {
		defaultRange = "A:B"
	}
	return &SheetsReader{svc: svc, defaultRange: defaultRange}
}

// ReadRange fetches rng (A1 notation) from spreadsheetID. The first row is the
// header. Numbers are requested unformatted and dates as displayed.
func (s *SheetsReader) ReadRange(ctx context.Context, spreadsheetID, rng string) (forecast.Table, error) {
	if s.svc == nil {
		return forecast.Table{}, errors.New("sheets service not initialized")
	}
	if rng == "" {
		rng = s.defaultRange
	}

	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return forecast.Table{}, fmt.Errorf("read %s: %w", rng, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return tableFromRows(rows)
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
