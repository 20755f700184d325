package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// HoltWinters is additive triple exponential smoothing over consecutive
// observations:
//
//	Level:    L_t = α(Y_t - S_{t-m}) + (1-α)(L_{t-1} + T_{t-1})
//	Trend:    T_t = β(L_t - L_{t-1}) + (1-β)T_{t-1}
//	Seasonal: S_t = γ(Y_t - L_t) + (1-γ)S_{t-m}
//
// With fewer than two full seasons it degrades to Holt's linear trend.
// Observations are treated as evenly spaced, so gaps in the monthly series
// shift the seasonal phase.
//
// The observations used to initialise the state (the first season, or the
// first two points without seasonality) have no fitted value: their fits
// would reproduce the actuals. They predict as NaN.
type HoltWinters struct {
	Period int
	Alpha  float64
	Beta   float64
	Gamma  float64
}

func NewHoltWinters() *HoltWinters {
	return &HoltWinters{
		Period: 12,
		Alpha:  0.3,
		Beta:   0.1,
		Gamma:  0.1,
	}
}

func (hw *HoltWinters) Name() string {
	return "Holt-Winters"
}

func (hw *HoltWinters) Fit(series []Observation) (FittedModel, error) {
	n := len(series)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	data := make([]float64, n)
	for i, o := range series {
		data[i] = o.Value
	}

	m := hw.Period
	seasonal := m > 0 && n >= 2*m

	var level, trend float64
	var season []float64
	if seasonal {
		level = stat.Mean(data[:m], nil)
		trend = (stat.Mean(data[m:2*m], nil) - level) / float64(m)
		season = make([]float64, m)
		for i := 0; i < m; i++ {
			season[i] = data[i] - level
		}
	} else {
		level = data[0]
		trend = data[1] - data[0]
	}

	warmup := 2
	if seasonal {
		warmup = m
	}

	fitted := make([]float64, n)
	start := 0
	if !seasonal {
		start = 1
	}
	for i := start; i < n; i++ {
		var s float64
		si := 0
		if seasonal {
			si = i % m
			s = season[si]
		}
		fitted[i] = level + trend + s

		prevLevel := level
		level = hw.Alpha*(data[i]-s) + (1-hw.Alpha)*(level+trend)
		trend = hw.Beta*(level-prevLevel) + (1-hw.Beta)*trend
		if seasonal {
			season[si] = hw.Gamma*(data[i]-level) + (1-hw.Gamma)*s
		}
	}

	for i := 0; i < warmup && i < n; i++ {
		fitted[i] = math.NaN()
	}

	byDate := make(map[time.Time]float64, n)
	for i, o := range series {
		byDate[o.Date] = fitted[i]
	}

	return &fittedHoltWinters{
		period: m,
		n:      n,
		last:   series[n-1].Date,
		level:  level,
		trend:  trend,
		season: season,
		fitted: byDate,
	}, nil
}

type fittedHoltWinters struct {
	period int
	n      int
	last   time.Time
	level  float64
	trend  float64
	season []float64
	fitted map[time.Time]float64
}

func (f *fittedHoltWinters) Predict(dates []time.Time) ([]float64, error) {
	out := make([]float64, len(dates))
	for i, d := range dates {
		if v, ok := f.fitted[d]; ok {
			out[i] = v
			continue
		}
		h := monthsBetween(f.last, d)
		if h <= 0 {
			return nil, fmt.Errorf("date %s is inside the fitted range but was not observed", d.Format("2006-01"))
		}
		v := f.level + float64(h)*f.trend
		if len(f.season) > 0 {
			v += f.season[(f.n+h-1)%f.period]
		}
		out[i] = v
	}
	return out, nil
}
