package dataset

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/forecast"
)

// XLSXReader reads one worksheet of an Excel workbook.
type XLSXReader struct {
	// Sheet selects the worksheet; empty means the first one.
	Sheet string
}

// Read implements Reader. Date-formatted numeric cells are converted to
// ISO dates so they survive the workbook's display format.
func (x XLSXReader) Read(ctx context.Context, r io.Reader) (forecast.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return forecast.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return forecast.Table{}, ErrNoHeader
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return forecast.Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	dateStyles := map[int]bool{}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return forecast.Table{}, err
		}
		if i == 0 {
			continue
		}
		for j, value := range row {
			serial, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return forecast.Table{}, err
			}
			if !isDateCell(f, sheet, cell, dateStyles) {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				continue
			}
			row[j] = t.Format(forecast.DateLayout)
		}
	}
	return tableFromRows(rows)
}

// isDateCell reports whether cell carries a date number format. Results are
// memoised per style index in seen.
func isDateCell(f *excelize.File, sheet, cell string, seen map[int]bool) bool {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := seen[idx]; ok {
		return isDate
	}

	isDate := false
	if style, err := f.GetStyle(idx); err == nil && style != nil {
		switch {
		case style.NumFmt >= 14 && style.NumFmt <= 22:
			isDate = true
		case style.CustomNumFmt != nil:
			format := strings.ToLower(*style.CustomNumFmt)
			isDate = strings.Contains(format, "yy") || strings.Contains(format, "dd")
		}
	}
	seen[idx] = isDate
	return isDate
}
