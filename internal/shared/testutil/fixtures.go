package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/forecast"
)

// SalesTable returns a Data/Vendas table with one row per month from start.
func SalesTable(start time.Time, values ...float64) forecast.Table {
	t := forecast.Table{Header: []string{forecast.DefaultDateColumn, forecast.DefaultValueColumn}}
	for i, v := range values {
		t.Rows = append(t.Rows, []string{
			forecast.AddMonths(start, i).Format(forecast.DateLayout),
			fmt.Sprintf("%g", v),
		})
	}
	return t
}

// YearOfSales is twelve months of steadily rising sales starting July 2022.
func YearOfSales() forecast.Table {
	values := make([]float64, 12)
	for i := range values {
		values[i] = 1000 + 50*float64(i)
	}
	return SalesTable(time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC), values...)
}

// CSVBytes encodes table as CSV.
func CSVBytes(t *testing.T, table forecast.Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return buf.Bytes()
}

// WriteXLSX saves table as the first sheet of a workbook in dir and returns its path.
func WriteXLSX(t *testing.T, dir, name string, table forecast.Table) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := append([][]string{table.Header}, table.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}
