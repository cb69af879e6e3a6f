package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rankTolerance is the smallest |R_jj| / ||x_j|| accepted as an independent column.
const rankTolerance = 1e-9

// Predictor produces a point estimate for a feature row.
type Predictor interface {
	Predict(row FeatureRow) (float64, error)
}

// FitStats describes how well a model reproduces its training targets.
type FitStats struct {
	Observations int     `json:"observations"`
	RSquared     float64 `json:"r_squared"`
	RMSE         float64 `json:"rmse"`
	MAE          float64 `json:"mae"`
}

// Coefficient is the fitted weight of one predictor.
type Coefficient struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// ModelSummary is the serialisable description of a fitted model.
type ModelSummary struct {
	Intercept    float64       `json:"intercept"`
	Coefficients []Coefficient `json:"coefficients"`
	Stats        FitStats      `json:"stats"`
}

// Model is an ordinary least squares fit of the target on Predictors plus an
// intercept. The zero value is an unfitted model.
type Model struct {
	intercept float64
	coef      []float64
	stats     FitStats
}

// Fit estimates a Model from feature rows and their targets.
func Fit(rows []FeatureRow, targets []float64) (*Model, error) {
	if len(rows) != len(targets) {
		return nil, ErrFeatureTargetMismatch
	}

	n, p := len(rows), len(Predictors)+1
	if n < p {
		return nil, &FitError{Rows: n, Parameters: p, Err: ErrUnderdeterminedModel}
	}

	design := mat.NewDense(n, p, nil)
	for i, row := range rows {
		design.Set(i, 0, 1)
		for j, f := range Predictors {
			design.Set(i, j+1, row.Value(f))
		}
	}

	var qr mat.QR
	qr.Factorize(design)
	if !fullRank(&qr, design) {
		return nil, &FitError{Rows: n, Parameters: p, Err: ErrSingularFeatureMatrix}
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, append([]float64(nil), targets...))); err != nil {
		return nil, &FitError{Rows: n, Parameters: p, Err: ErrSingularFeatureMatrix}
	}

	m := &Model{
		intercept: beta.AtVec(0),
		coef:      make([]float64, len(Predictors)),
	}
	for j := range Predictors {
		m.coef[j] = beta.AtVec(j + 1)
	}
	m.stats = m.evaluate(rows, targets)
	return m, nil
}

// fullRank reports whether every design column adds a direction not spanned by
// the columns before it.
func fullRank(qr *mat.QR, design *mat.Dense) bool {
	var r mat.Dense
	qr.RTo(&r)
	_, p := design.Dims()
	for j := 0; j < p; j++ {
		norm := mat.Norm(design.ColView(j), 2)
		if norm == 0 || math.Abs(r.At(j, j))/norm < rankTolerance {
			return false
		}
	}
	return true
}

func (m *Model) evaluate(rows []FeatureRow, targets []float64) FitStats {
	estimates := make([]float64, len(rows))
	for i, row := range rows {
		estimates[i] = m.predict(row)
	}

	n := float64(len(rows))
	stats := FitStats{
		Observations: len(rows),
		RMSE:         floats.Distance(estimates, targets, 2) / math.Sqrt(n),
		MAE:          floats.Distance(estimates, targets, 1) / n,
	}
	stats.RSquared = stat.RSquaredFrom(estimates, targets, nil)
	if math.IsNaN(stats.RSquared) || math.IsInf(stats.RSquared, 0) {
		// Constant targets: any exact fit explains all of the (zero) variance.
		stats.RSquared = 1
		if stats.RMSE > 0 {
			stats.RSquared = 0
		}
	}
	return stats
}

// Fitted reports whether m holds fitted parameters.
func (m *Model) Fitted() bool {
	return m != nil && len(m.coef) == len(Predictors)
}

// Predict returns the model estimate for row.
func (m *Model) Predict(row FeatureRow) (float64, error) {
	if !m.Fitted() {
		return 0, ErrModelNotFitted
	}
	return m.predict(row), nil
}

func (m *Model) predict(row FeatureRow) float64 {
	y := m.intercept
	for j, f := range Predictors {
		y += m.coef[j] * row.Value(f)
	}
	return y
}

// Intercept returns the fitted intercept.
func (m *Model) Intercept() float64 {
	if m == nil {
		return 0
	}
	return m.intercept
}

// Coefficient returns the fitted weight of f.
func (m *Model) Coefficient(f Feature) float64 {
	if !m.Fitted() {
		return 0
	}
	for j, p := range Predictors {
		if p == f {
			return m.coef[j]
		}
	}
	return 0
}

// Stats returns the in-sample fit statistics.
func (m *Model) Stats() FitStats {
	if m == nil {
		return FitStats{}
	}
	return m.stats
}

// Summary returns a serialisable view of m.
func (m *Model) Summary() ModelSummary {
	s := ModelSummary{Intercept: m.Intercept(), Stats: m.Stats()}
	for _, f := range Predictors {
		s.Coefficients = append(s.Coefficients, Coefficient{Feature: f.String(), Value: m.Coefficient(f)})
	}
	return s
}
