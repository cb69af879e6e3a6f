package forecast

import "time"

// SeriesRole tells a renderer what a chart series represents.
type SeriesRole string

const (
	RoleObserved SeriesRole = "observed"
	RoleTrend    SeriesRole = "trend"
	RoleForecast SeriesRole = "forecast"
)

// LineStyle is the stroke pattern of a series.
type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
)

// Marker is the glyph drawn at each point of a series.
type Marker string

const (
	MarkerNone   Marker = "none"
	MarkerCircle Marker = "circle"
	MarkerCross  Marker = "cross"
)

// SeriesStyle is the visual intent of one series.
type SeriesStyle struct {
	Color  string    `json:"color" yaml:"color"`
	Line   LineStyle `json:"line" yaml:"line"`
	Marker Marker    `json:"marker" yaml:"marker"`
}

// Theme carries the colours of a chart. It is passed to BuildChart explicitly.
type Theme struct {
	Background string      `json:"background" yaml:"background"`
	Foreground string      `json:"foreground" yaml:"foreground"`
	Legend     string      `json:"legend" yaml:"legend"`
	Grid       string      `json:"grid" yaml:"grid"`
	Observed   SeriesStyle `json:"observed" yaml:"observed"`
	Trend      SeriesStyle `json:"trend" yaml:"trend"`
	Forecast   SeriesStyle `json:"forecast" yaml:"forecast"`
}

// DarkTheme returns the default dark chart theme.
func DarkTheme() Theme {
	return Theme{
		Background: "#212529",
		Foreground: "#ffffff",
		Legend:     "#343a40",
		Grid:       "#3a4047",
		Observed:   SeriesStyle{Color: "#3498db", Line: LineSolid, Marker: MarkerCircle},
		Trend:      SeriesStyle{Color: "#e74c3c", Line: LineDashed, Marker: MarkerNone},
		Forecast:   SeriesStyle{Color: "#2ecc71", Line: LineDashed, Marker: MarkerCross},
	}
}

// Labels is the text shown on a chart.
type Labels struct {
	Title    string `json:"title" yaml:"title"`
	XAxis    string `json:"x_axis" yaml:"x_axis"`
	YAxis    string `json:"y_axis" yaml:"y_axis"`
	Observed string `json:"observed" yaml:"observed"`
	Trend    string `json:"trend" yaml:"trend"`
	Forecast string `json:"forecast" yaml:"forecast"`
}

// DefaultLabels returns the Portuguese product copy.
func DefaultLabels() Labels {
	return Labels{
		Title:    "Análise e Previsão de Vendas",
		XAxis:    "Data",
		YAxis:    "Vendas (R$)",
		Observed: "Vendas Históricas",
		Trend:    "Linha de Tendência Sazonal",
		Forecast: "Previsão Futura",
	}
}

// ChartPoint is one (date, value) pair.
type ChartPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ChartSeries is a named, styled line.
type ChartSeries struct {
	Name   string       `json:"name"`
	Role   SeriesRole   `json:"role"`
	Style  SeriesStyle  `json:"style"`
	Points []ChartPoint `json:"points"`
}

// ChartSpec is a renderer-independent description of the forecast chart.
type ChartSpec struct {
	Title      string        `json:"title"`
	XLabel     string        `json:"x_label"`
	YLabel     string        `json:"y_label"`
	Background string        `json:"background"`
	Foreground string        `json:"foreground"`
	Legend     string        `json:"legend"`
	Grid       string        `json:"grid"`
	Series     []ChartSeries `json:"series"`
}

// BuildChart describes proj as three series: observed values, the in-sample
// trend and the projected periods.
func BuildChart(proj *Projection, labels Labels, theme Theme) ChartSpec {
	observed := make([]ChartPoint, len(proj.Historical))
	trend := make([]ChartPoint, len(proj.Historical))
	for i, r := range proj.Historical {
		observed[i] = ChartPoint{Date: r.Date, Value: r.Observed}
		trend[i] = ChartPoint{Date: r.Date, Value: r.Predicted}
	}
	future := make([]ChartPoint, len(proj.Future))
	for i, r := range proj.Future {
		future[i] = ChartPoint{Date: r.Date, Value: r.Predicted}
	}

	return ChartSpec{
		Title:      labels.Title,
		XLabel:     labels.XAxis,
		YLabel:     labels.YAxis,
		Background: theme.Background,
		Foreground: theme.Foreground,
		Legend:     theme.Legend,
		Grid:       theme.Grid,
		Series: []ChartSeries{
			{Name: labels.Observed, Role: RoleObserved, Style: theme.Observed, Points: observed},
			{Name: labels.Trend, Role: RoleTrend, Style: theme.Trend, Points: trend},
			{Name: labels.Forecast, Role: RoleForecast, Style: theme.Forecast, Points: future},
		},
	}
}

// Bounds returns the extent of every point in c. ok is false when c has no points.
func (c ChartSpec) Bounds() (minDate, maxDate time.Time, minValue, maxValue float64, ok bool) {
	for _, s := range c.Series {
		for _, p := range s.Points {
			if !ok {
				minDate, maxDate, minValue, maxValue, ok = p.Date, p.Date, p.Value, p.Value, true
				continue
			}
			if p.Date.Before(minDate) {
				minDate = p.Date
			}
			if p.Date.After(maxDate) {
				maxDate = p.Date
			}
			if p.Value < minValue {
				minValue = p.Value
			}
			if p.Value > maxValue {
				maxValue = p.Value
			}
		}
	}
	return minDate, maxDate, minValue, maxValue, ok
}
