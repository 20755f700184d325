// Package forecast fits time-series models to monthly aggregates, projects
// them forward and scores the in-sample fit.
package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInsufficientData = errors.New("insufficient data: need at least two distinct periods with values")
	ErrInvalidHorizon   = errors.New("horizon must be a positive number of months")
)

// Observation is one observed total for the month starting at Date.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Model fits a series. Implementations must not retain or modify series.
type Model interface {
	Name() string
	Fit(series []Observation) (FittedModel, error)
}

// FittedModel predicts values at arbitrary month-start dates, both inside
// the fitted range (in-sample) and after it.
type FittedModel interface {
	Predict(dates []time.Time) ([]float64, error)
}

const (
	ModelAdditive    = "additive"
	ModelHoltWinters = "holtwinters"
)

// NewModel returns the model registered under name.
func NewModel(name string, seasonalOrder int) (Model, error) {
	switch strings.ToLower(name) {
	case "", ModelAdditive:
		return NewAdditive(seasonalOrder), nil
	case ModelHoltWinters:
		return NewHoltWinters(), nil
	default:
		return nil, fmt.Errorf("unknown forecast model %q", name)
	}
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
