package forecast

import (
	"time"
)

// DefaultHorizon is the number of monthly periods projected when none is given.
const DefaultHorizon = 6

// Projection is the model's view of the past and the next periods.
type Projection struct {
	Historical []HistoricalRow `json:"historical"`
	Future     []FutureRow     `json:"future"`
}

// AddMonths returns t moved by n calendar months. When the target month is
// shorter than t's day, the result is the last day of that month, so Jan 31
// plus one month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Project evaluates model over every observation of series and over horizon
// monthly steps past the last observation. Each future date is offset from the
// last observed date directly rather than from the previous step.
func Project(model Predictor, series Series, horizon int) (*Projection, error) {
	if model == nil {
		return nil, ErrModelNotFitted
	}
	if horizon < 0 {
		return nil, ErrInvalidHorizon
	}
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	anchor := series.First().Date
	proj := &Projection{
		Historical: make([]HistoricalRow, len(series)),
		Future:     make([]FutureRow, 0, horizon),
	}

	for i, o := range series {
		row, err := forecastAt(model, anchor, o.Date)
		if err != nil {
			return nil, err
		}
		proj.Historical[i] = HistoricalRow{ForecastRow: row, Observed: o.Value}
	}

	last := series.Last().Date
	for k := 1; k <= horizon; k++ {
		row, err := forecastAt(model, anchor, AddMonths(last, k))
		if err != nil {
			return nil, err
		}
		proj.Future = append(proj.Future, row)
	}
	return proj, nil
}

func forecastAt(model Predictor, anchor, date time.Time) (ForecastRow, error) {
	features := FeaturesAt(anchor, date)
	y, err := model.Predict(features)
	if err != nil {
		return ForecastRow{}, err
	}
	return ForecastRow{Date: date, Features: features, Predicted: y}, nil
}

// HistoricalTable returns the historical rows as a date, observed, trend table.
func (p *Projection) HistoricalTable() ResultTable {
	t := ResultTable{
		Columns: []string{ColumnDate, ColumnObserved, ColumnTrend},
		Records: make([]Record, 0, len(p.Historical)),
	}
	for _, r := range p.Historical {
		t.Records = append(t.Records, Record{
			{Name: ColumnDate, Value: r.Date.Format(DateLayout)},
			{Name: ColumnObserved, Value: r.Observed},
			{Name: ColumnTrend, Value: r.Predicted},
		})
	}
	return t
}

// FutureTable returns the projected rows as a date, forecast table.
func (p *Projection) FutureTable() ResultTable {
	t := ResultTable{
		Columns: []string{ColumnDate, ColumnForecast},
		Records: make([]Record, 0, len(p.Future)),
	}
	for _, r := range p.Future {
		t.Records = append(t.Records, Record{
			{Name: ColumnDate, Value: r.Date.Format(DateLayout)},
			{Name: ColumnForecast, Value: r.Predicted},
		})
	}
	return t
}
