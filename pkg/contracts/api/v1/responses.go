package api

// HistoricalPoint is one observed month with its fitted trend value
type HistoricalPoint struct {
	Date     string  `json:"date"`
	Observed float64 `json:"observed"`
	Trend    float64 `json:"trend"`
}

// ForecastPoint is one projected month
type ForecastPoint struct {
	Date     string  `json:"date"`
	Forecast float64 `json:"forecast"`
}

// ModelSummary describes the fitted regression
type ModelSummary struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Observations int                `json:"observations"`
	RSquared     float64            `json:"r_squared"`
	RMSE         float64            `json:"rmse"`
	MAE          float64            `json:"mae"`
}

// ForecastResponse is returned by the forecast endpoints
type ForecastResponse struct {
	File       string            `json:"file,omitempty"`
	Horizon    int               `json:"horizon"`
	Cached     bool              `json:"cached"`
	DurationMS float64           `json:"duration_ms"`
	Model      ModelSummary      `json:"model"`
	Historical []HistoricalPoint `json:"historical"`
	Future     []ForecastPoint   `json:"future"`
	ChartURL   string            `json:"chart_url,omitempty"`
	Chart      interface{}       `json:"chart,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
}
