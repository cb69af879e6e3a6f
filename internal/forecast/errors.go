package forecast

import (
	"errors"
	"fmt"
)

// Kind groups pipeline failures by who has to act on them.
type Kind string

const (
	// KindInput means the supplied data is unusable.
	KindInput Kind = "input"
	// KindModel means the data is well formed but cannot support a fit.
	KindModel Kind = "model"
	// KindContract means a caller used the pipeline incorrectly.
	KindContract Kind = "contract"
	// KindUnknown is returned for errors that did not come from this package.
	KindUnknown Kind = "unknown"
)

// Input validation errors.
var (
	ErrMissingColumn     = errors.New("required column missing")
	ErrMalformedDate     = errors.New("malformed date")
	ErrMalformedValue    = errors.New("malformed value")
	ErrEmptySeries       = errors.New("series is empty")
	ErrInsufficientRange = errors.New("series spans a single date")
	ErrInvalidHorizon    = errors.New("horizon must not be negative")
)

// Model-fit errors.
var (
	ErrUnderdeterminedModel  = errors.New("not enough observations to fit the model")
	ErrSingularFeatureMatrix = errors.New("feature matrix is rank deficient")
)

// Contract errors.
var (
	ErrModelNotFitted        = errors.New("model has not been fitted")
	ErrFeatureTargetMismatch = errors.New("feature and target lengths differ")
)

// ColumnError reports a required header that could not be found.
type ColumnError struct {
	Column string
	Header []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %q (header: %v)", ErrMissingColumn, e.Column, e.Header)
}

func (e *ColumnError) Unwrap() error { return ErrMissingColumn }

// CellError reports a cell that could not be parsed. Row is 1-based and counts
// data rows only, so row 1 is the first line after the header.
type CellError struct {
	Row    int
	Column string
	Raw    string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s at row %d, column %q: %q", e.Err, e.Row, e.Column, e.Raw)
}

func (e *CellError) Unwrap() error { return e.Err }

// FitError carries the dimensions of a design matrix that could not be solved.
type FitError struct {
	Rows       int
	Parameters int
	Err        error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s (%d rows, %d parameters)", e.Err, e.Rows, e.Parameters)
}

func (e *FitError) Unwrap() error { return e.Err }

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingColumn),
		errors.Is(err, ErrMalformedDate),
		errors.Is(err, ErrMalformedValue),
		errors.Is(err, ErrEmptySeries),
		errors.Is(err, ErrInsufficientRange),
		errors.Is(err, ErrInvalidHorizon):
		return KindInput
	case errors.Is(err, ErrUnderdeterminedModel),
		errors.Is(err, ErrSingularFeatureMatrix):
		return KindModel
	case errors.Is(err, ErrModelNotFitted),
		errors.Is(err, ErrFeatureTargetMismatch):
		return KindContract
	default:
		return KindUnknown
	}
}
