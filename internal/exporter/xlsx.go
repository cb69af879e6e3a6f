package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/forecast"
)

// Worksheet names of the workbook export
const (
	SheetHistorical = "Historico"
	SheetForecast   = "Previsao"
	SheetModel      = "Modelo"
)

// ExportResultXLSX writes result as a workbook with the historical table, the
// projection and the model summary on separate sheets.
func ExportResultXLSX(w io.Writer, result *forecast.Result, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create number style: %w", err)
	}

	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, SheetHistorical); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetForecast); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetModel); err != nil {
		return err
	}

	hist := make([][]any, 0, len(result.Projection.Historical))
	for _, r := range result.Projection.Historical {
		hist = append(hist, []any{r.Date, r.Observed, r.Predicted})
	}
	if err := writeSheet(f, SheetHistorical, []string{forecast.ColumnDate, forecast.ColumnObserved, forecast.ColumnTrend}, hist, headerStyle, dateStyle, numberStyle); err != nil {
		return err
	}

	future := make([][]any, 0, len(result.Projection.Future))
	for _, r := range result.Projection.Future {
		future = append(future, []any{r.Date, r.Predicted})
	}
	if err := writeSheet(f, SheetForecast, []string{forecast.ColumnDate, forecast.ColumnForecast}, future, headerStyle, dateStyle, numberStyle); err != nil {
		return err
	}

	if err := writeModelSheet(f, result, generatedAt, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle, dateStyle, numberStyle int) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	if n := len(rows); n > 0 {
		lastDate, _ := excelize.CoordinatesToCellName(1, n+1)
		if err := f.SetCellStyle(sheet, "A2", lastDate, dateStyle); err != nil {
			return err
		}
		lastNum, _ := excelize.CoordinatesToCellName(len(headers), n+1)
		if err := f.SetCellStyle(sheet, "B2", lastNum, numberStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 16)
}

func writeModelSheet(f *excelize.File, result *forecast.Result, generatedAt time.Time, headerStyle int) error {
	summary := result.Model.Summary()
	rows := [][]any{
		{"data_geracao", FormatGeneratedAt(generatedAt)},
		{"horizonte", result.Horizon},
		{"intercepto", summary.Intercept},
	}
	for _, c := range summary.Coefficients {
		rows = append(rows, []any{c.Feature, c.Value})
	}
	rows = append(rows,
		[]any{"observacoes", summary.Stats.Observations},
		[]any{"r2", summary.Stats.RSquared},
		[]any{"rmse", summary.Stats.RMSE},
		[]any{"mae", summary.Stats.MAE},
	)

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetModel, cell, &rows[i]); err != nil {
			return fmt.Errorf("write model row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(SheetModel, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(SheetModel, "A", "B", 20)
}
