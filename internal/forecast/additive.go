package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	daysPerYear          = 365.25
	defaultSeasonalOrder = 3
	defaultSeasonalRidge = 1e-2
)

// Additive models a series as a linear trend plus yearly seasonality
// expressed as Fourier terms:
//
//	y(t) = a + b*t + Σ_k (c_k cos(2πkt) + d_k sin(2πkt))
//
// t is elapsed time in years since the first observation, so irregular
// spacing (missing months) needs no special handling. Seasonal coefficients
// carry a ridge penalty and the Fourier order shrinks so the design never
// has more columns than observations.
type Additive struct {
	SeasonalOrder int
	SeasonalRidge float64
}

func NewAdditive(seasonalOrder int) *Additive {
	if seasonalOrder < 0 {
		seasonalOrder = defaultSeasonalOrder
	}
	return &Additive{
		SeasonalOrder: seasonalOrder,
		SeasonalRidge: defaultSeasonalRidge,
	}
}

func (a *Additive) Name() string {
	return "additive trend + yearly seasonality"
}

func (a *Additive) Fit(series []Observation) (FittedModel, error) {
	n := len(series)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	order := min(a.SeasonalOrder, (n-2)/2)
	order = max(order, 0)
	p := 2 + 2*order

	ys := make([]float64, n)
	for i, o := range series {
		ys[i] = o.Value
	}
	abs := make([]float64, n)
	for i, v := range ys {
		abs[i] = math.Abs(v)
	}
	scale := floats.Max(abs)
	if scale == 0 {
		scale = 1
	}
	floats.Scale(1/scale, ys)

	origin := series[0].Date
	x := mat.NewDense(n, p, nil)
	for i, o := range series {
		x.SetRow(i, features(yearsSince(origin, o.Date), order))
	}
	y := mat.NewVecDense(n, ys)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 2; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+a.SeasonalRidge)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		// An ill-conditioned system still yields a usable solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solve least squares: %w", err)
		}
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j) * scale
	}

	return &fittedAdditive{origin: origin, order: order, coef: coef}, nil
}

type fittedAdditive struct {
	origin time.Time
	order  int
	coef   []float64
}

func (f *fittedAdditive) Predict(dates []time.Time) ([]float64, error) {
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = floats.Dot(f.coef, features(yearsSince(f.origin, d), f.order))
	}
	return out, nil
}

// features is the design row for time t: intercept, trend, then cos/sin
// pairs for each Fourier order.
func features(t float64, order int) []float64 {
	row := make([]float64, 2+2*order)
	row[0] = 1
	row[1] = t
	for k := 1; k <= order; k++ {
		angle := 2 * math.Pi * float64(k) * t
		row[2*k] = math.Cos(angle)
		row[2*k+1] = math.Sin(angle)
	}
	return row
}

func yearsSince(origin, t time.Time) float64 {
	return t.Sub(origin).Hours() / 24 / daysPerYear
}
