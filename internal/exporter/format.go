package exporter

import (
	"fmt"
	"strconv"
	"time"

	"salesforecast/internal/forecast"
)

// GeneratedAtLayout is the dd/mm/yyyy hh:mm:ss stamp printed on exports and reports
const GeneratedAtLayout = "02/01/2006 15:04:05"

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatValue renders one table cell
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.Format(forecast.DateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// FormatGeneratedAt renders t in the export timestamp layout
func FormatGeneratedAt(t time.Time) string {
	return t.Format(GeneratedAtLayout)
}

// TableRows flattens table into string rows in column order
func TableRows(table forecast.ResultTable) [][]string {
	rows := make([][]string, 0, len(table.Records))
	for _, rec := range table.Records {
		row := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			v, _ := rec.Get(col)
			row[i] = formatValue(v)
		}
		rows = append(rows, row)
	}
	return rows
}
