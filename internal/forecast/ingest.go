package forecast

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default column names of the sales history contract.
const (
	DefaultDateColumn  = "Data"
	DefaultValueColumn = "Vendas"
)

// Table is a raw tabular dataset as read from a file or sheet. Header holds the
// column names and every entry of Rows is one record in source order.
type Table struct {
	Header []string
	Rows   [][]string
	// Decimal is the decimal mark of numeric cells. Zero means '.'.
	Decimal rune
}

// Columns names the date and value columns of a Table.
type Columns struct {
	Date  string `yaml:"date" json:"date"`
	Value string `yaml:"value" json:"value"`
}

// DefaultColumns returns the default column contract.
func DefaultColumns() Columns {
	return Columns{Date: DefaultDateColumn, Value: DefaultValueColumn}
}

func (c Columns) withDefaults() Columns {
	if strings.TrimSpace(c.Date) == "" {
		c.Date = DefaultDateColumn
	}
	if strings.TrimSpace(c.Value) == "" {
		c.Value = DefaultValueColumn
	}
	return c
}

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"02-01-2006",
	"2006-01",
}

// ParseDate parses s with the accepted layouts and truncates it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrMalformedDate
}

// ParseValue parses a numeric cell. Comma thousands separators are accepted when
// a decimal point is present.
func ParseValue(s string) (float64, error) {
	return ParseDecimal(s, '.')
}

// ParseDecimal parses a numeric cell written with the given decimal mark.
//
// With ',' the dots are thousands separators ("1.234,5"), except that a
// lone dot not followed by exactly three digits is read as a decimal point
// ("100.5"). Any other mark behaves like ParseValue.
func ParseDecimal(s string, decimal rune) (float64, error) {
	s = strings.TrimSpace(s)
	if decimal == ',' {
		s = commaToDot(s)
	} else if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrMalformedValue
	}
	return v, nil
}

func commaToDot(s string) string {
	if !strings.Contains(s, ",") {
		if dot := strings.LastIndexByte(s, '.'); dot >= 0 && strings.Count(s, ".") == 1 && len(s)-dot-1 != 3 {
			return s
		}
	}
	s = strings.ReplaceAll(s, ".", "")
	// a second comma is left in place and fails to parse
	return strings.Replace(s, ",", ".", 1)
}

// Ingest validates and normalises table into an ascending Series.
func Ingest(table Table, cols Columns) (Series, error) {
	cols = cols.withDefaults()

	dateIdx := columnIndex(table.Header, cols.Date)
	if dateIdx < 0 {
		return nil, &ColumnError{Column: cols.Date, Header: table.Header}
	}
	valueIdx := columnIndex(table.Header, cols.Value)
	if valueIdx < 0 {
		return nil, &ColumnError{Column: cols.Value, Header: table.Header}
	}

	series := make(Series, 0, len(table.Rows))
	for i, row := range table.Rows {
		if isBlankRow(row) {
			continue
		}
		rawDate := cell(row, dateIdx)
		date, err := ParseDate(rawDate)
		if err != nil {
			return nil, &CellError{Row: i + 1, Column: cols.Date, Raw: rawDate, Err: err}
		}
		rawValue := cell(row, valueIdx)
		value, err := ParseDecimal(rawValue, table.Decimal)
		if err != nil {
			return nil, &CellError{Row: i + 1, Column: cols.Value, Raw: rawValue, Err: err}
		}
		series = append(series, Observation{Date: date, Value: value})
	}

	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	if series.First().Date.Equal(series.Last().Date) {
		return nil, ErrInsufficientRange
	}
	return series, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
