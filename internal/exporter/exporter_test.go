package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesforecast/internal/forecast"
	"salesforecast/internal/shared/testutil"
)

var generatedAt = time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC)

func runPipeline(t *testing.T) *forecast.Result {
	t.Helper()
	opts := forecast.DefaultOptions()
	opts.Horizon = 3
	result, err := forecast.NewPipeline(opts, nil).Run(context.Background(), testutil.YearOfSales())
	require.NoError(t, err)
	return result
}

func TestFormatGeneratedAt(t *testing.T) {
	assert.Equal(t, "18/10/2026 09:05:07", FormatGeneratedAt(generatedAt))
}

func TestTableRows(t *testing.T) {
	table := forecast.ResultTable{
		Columns: []string{"date", "forecast"},
		Records: []forecast.Record{
			{{Name: "date", Value: "2023-07-01"}, {Name: "forecast", Value: 1234.5}},
			{{Name: "forecast", Value: 1.0}, {Name: "date", Value: "2023-08-01"}},
		},
	}

	assert.Equal(t, [][]string{
		{"2023-07-01", "1234.50"},
		{"2023-08-01", "1.00"},
	}, TableRows(table))
}

func TestCSVWriterWrite(t *testing.T) {
	var buf bytes.Buffer
	err := NewCSVWriter(nil).Write(&buf, WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "x,y"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(buf.Bytes()[len(utf8BOM):]))
}

func TestExportResultCSV(t *testing.T) {
	result := runPipeline(t)

	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(nil).ExportResultCSV(&buf, result, generatedAt))

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), utf8BOM)))
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, lines, 2+12+3)
	assert.Equal(t, []string{"data_geracao", "18/10/2026 09:05:07"}, lines[0])
	assert.Equal(t, []string{"secao", "date", "observed", "trend", "forecast"}, lines[1])
	assert.Equal(t, SectionHistorical, lines[2][0])
	assert.Equal(t, "2022-07-01", lines[2][1])
	assert.Equal(t, "1000.00", lines[2][2])
	assert.Empty(t, lines[2][4])

	last := lines[len(lines)-1]
	assert.Equal(t, SectionForecast, last[0])
	assert.Equal(t, "2023-09-01", last[1])
	assert.Empty(t, last[2])
	assert.NotEmpty(t, last[4])
}

func TestCSVWriterWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, NewCSVWriter(nil).WriteFile(path, WriteOptions{Headers: []string{"x"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestExportResultXLSX(t *testing.T) {
	result := runPipeline(t)

	var buf bytes.Buffer
	require.NoError(t, ExportResultXLSX(&buf, result, generatedAt))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetHistorical, SheetForecast, SheetModel}, f.GetSheetList())

	hist, err := f.GetRows(SheetHistorical, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, hist, 13)
	assert.Equal(t, []string{"date", "observed", "trend"}, hist[0])
	assert.Equal(t, "1000", hist[1][1])

	future, err := f.GetRows(SheetForecast)
	require.NoError(t, err)
	assert.Len(t, future, 4)

	stamp, err := f.GetCellValue(SheetModel, "B1")
	require.NoError(t, err)
	assert.Equal(t, "18/10/2026 09:05:07", stamp)

	horizon, err := f.GetCellValue(SheetModel, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", horizon)
}
