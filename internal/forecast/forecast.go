package forecast

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/pipeline"
)

type PointKind string

const (
	KindHistorical PointKind = "historical"
	KindForecast   PointKind = "forecast"
)

type Point struct {
	Period    string           `json:"period"`
	Date      time.Time        `json:"date"`
	Kind      PointKind        `json:"kind"`
	Actual    models.NullFloat `json:"actual"`
	Predicted models.NullFloat `json:"predicted"`
}

type Result struct {
	Model   string  `json:"model"`
	Horizon int     `json:"horizon"`
	Points  []Point `json:"points"`
	Evaluation
}

// Forecast fits model to series and extends it by horizon months. The
// series is normalised first: dates truncate to the month start, values of
// the same month are summed and non-finite values are dropped.
func Forecast(ctx context.Context, model Model, series []Observation, horizon int) (*Result, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}

	clean := normalize(series)
	if len(clean) < 2 {
		return nil, ErrInsufficientData
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fitted, err := model.Fit(clean)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", model.Name(), err)
	}

	dates := make([]time.Time, 0, len(clean)+horizon)
	for _, o := range clean {
		dates = append(dates, o.Date)
	}
	next := clean[len(clean)-1].Date
	for i := 0; i < horizon; i++ {
		next = next.AddDate(0, 1, 0)
		dates = append(dates, next)
	}

	predicted, err := fitted.Predict(dates)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", model.Name(), err)
	}
	if len(predicted) != len(dates) {
		return nil, fmt.Errorf("predict %s: got %d values for %d periods", model.Name(), len(predicted), len(dates))
	}

	fittedByDate := make(map[time.Time]float64, len(clean))
	for i := range clean {
		fittedByDate[dates[i]] = predicted[i]
	}

	actuals := make([]float64, 0, len(clean))
	fits := make([]float64, 0, len(clean))
	for _, o := range clean {
		if f, ok := fittedByDate[o.Date]; ok && !math.IsNaN(f) {
			actuals = append(actuals, o.Value)
			fits = append(fits, f)
		}
	}

	points := make([]Point, len(dates))
	for i, d := range dates {
		p := Point{
			Period: d.Format("2006-01"),
			Date:   d,
			Kind:   KindForecast,
		}
		if !math.IsNaN(predicted[i]) && !math.IsInf(predicted[i], 0) {
			p.Predicted = models.Float(predicted[i])
		}
		if i < len(clean) {
			p.Kind = KindHistorical
			p.Actual = models.Float(clean[i].Value)
		}
		points[i] = p
	}

	return &Result{
		Model:      model.Name(),
		Horizon:    horizon,
		Points:     points,
		Evaluation: Evaluate(actuals, fits),
	}, nil
}

func normalize(series []Observation) []Observation {
	byMonth := make(map[time.Time]float64)
	for _, o := range series {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		byMonth[pipeline.MonthStart(o.Date)] += o.Value
	}

	out := make([]Observation, 0, len(byMonth))
	for d, v := range byMonth {
		out = append(out, Observation{Date: d, Value: v})
	}
	slices.SortFunc(out, func(a, b Observation) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// MonthlySeries totals measure m per calendar month. Months without orders
// are absent rather than zero.
func MonthlySeries(orders []models.Order, m models.Measure) []Observation {
	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.ByPeriod(pipeline.Month)},
		[]pipeline.MeasureSpec{pipeline.SumOf(string(m), m)},
	)

	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse("2006-01", r.Keys[0])
		if err != nil {
			continue
		}
		out = append(out, Observation{Date: d, Value: r.Values[string(m)]})
	}
	slices.SortFunc(out, func(a, b Observation) int {
		return a.Date.Compare(b.Date)
	})
	return out
}
