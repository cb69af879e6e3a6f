// Package api contains the JSON contract of the forecasting API.
// Version v1 represents the current stable API version.
package api

// SheetForecastRequest asks for a forecast of a Google Sheets range
type SheetForecastRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,spreadsheet_id"`
	Range         string `json:"range,omitempty" validate:"omitempty,max=100"`
	Horizon       *int   `json:"horizon,omitempty" validate:"omitempty,min=0,max=60"`
}

// ExportRequest selects a stored dataset and the export format
type ExportRequest struct {
	File   string `json:"file" query:"file" validate:"required,filename"`
	Format string `json:"format" query:"format" validate:"required,oneof=csv xlsx"`
}

// ReportRequest selects the stored dataset a PDF report is built from
type ReportRequest struct {
	File string `json:"file" query:"file" validate:"required,filename"`
}
