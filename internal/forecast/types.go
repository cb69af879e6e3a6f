package forecast

import (
	"bytes"
	"encoding/json"
	"time"
)

// DateLayout is the layout used when dates leave the pipeline (tables, exports, JSON).
const DateLayout = "2006-01-02"

// Observation is one dated sales measurement.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an ascending, non-empty sequence of observations spanning at least
// two distinct dates. Only Ingest produces a Series that satisfies this.
type Series []Observation

// First returns the earliest observation.
func (s Series) First() Observation { return s[0] }

// Last returns the latest observation.
func (s Series) Last() Observation { return s[len(s)-1] }

// Values returns the observed values in series order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Value
	}
	return out
}

// Feature identifies one predictor column of the model.
type Feature int

const (
	// FeatureElapsedDays is the whole number of days since the earliest observation.
	FeatureElapsedDays Feature = iota
	// FeatureMonth is the calendar month, 1 to 12.
	FeatureMonth
)

// Predictors is the fixed, ordered predictor set used by Fit and Predict.
var Predictors = []Feature{FeatureElapsedDays, FeatureMonth}

// String returns the feature's column name.
func (f Feature) String() string {
	switch f {
	case FeatureElapsedDays:
		return "elapsed_days"
	case FeatureMonth:
		return "month"
	default:
		return "unknown"
	}
}

// FeatureRow holds the engineered predictors for a single date.
type FeatureRow struct {
	ElapsedDays int `json:"elapsed_days"`
	Month       int `json:"month"`
}

// Value returns the value of feature f.
func (r FeatureRow) Value(f Feature) float64 {
	switch f {
	case FeatureElapsedDays:
		return float64(r.ElapsedDays)
	case FeatureMonth:
		return float64(r.Month)
	default:
		return 0
	}
}

// Vector returns the row's predictor values in Predictors order.
func (r FeatureRow) Vector() []float64 {
	v := make([]float64, len(Predictors))
	for i, f := range Predictors {
		v[i] = r.Value(f)
	}
	return v
}

// ForecastRow is a dated model output together with the features it was computed from.
type ForecastRow struct {
	Date      time.Time  `json:"date"`
	Features  FeatureRow `json:"features"`
	Predicted float64    `json:"predicted"`
}

// HistoricalRow pairs an observation with the model's in-sample trend value.
type HistoricalRow struct {
	ForecastRow
	Observed float64 `json:"observed"`
}

// FutureRow is a projected period beyond the last observation.
type FutureRow = ForecastRow

// Field is a named cell of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of fields. It encodes as a JSON object that keeps
// field order, so tables read the same in every consumer.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResultTable is a rectangular, ordered output table.
type ResultTable struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Output table column names.
const (
	ColumnDate     = "date"
	ColumnObserved = "observed"
	ColumnTrend    = "trend"
	ColumnForecast = "forecast"
)
