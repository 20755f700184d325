package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"superstore-dashboard/internal/models"
)

func monthly(start time.Time, values ...float64) []Observation {
	out := make([]Observation, len(values))
	for i, v := range values {
		out[i] = Observation{Date: start.AddDate(0, i, 0), Value: v}
	}
	return out
}

func linearSeries(n int) []Observation {
	values := make([]float64, n)
	for i := range values {
		values[i] = 1000 + 25*float64(i)
	}
	return monthly(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), values...)
}

func TestForecast_PointLayout(t *testing.T) {
	series := linearSeries(24)

	tests := []struct {
		model         Model
		wantEvaluated int
	}{
		{NewAdditive(3), 24},
		{NewHoltWinters(), 12},
	}

	for _, tt := range tests {
		model := tt.model
		t.Run(model.Name(), func(t *testing.T) {
			result, err := Forecast(context.Background(), model, series, 6)
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}

			if len(result.Points) != 30 {
				t.Fatalf("Expected 30 points, got %d", len(result.Points))
			}
			if result.Horizon != 6 {
				t.Errorf("Expected Horizon = 6, got %d", result.Horizon)
			}

			for i, p := range result.Points {
				want := series[0].Date.AddDate(0, i, 0)
				if !p.Date.Equal(want) {
					t.Errorf("point %d: expected date %s, got %s", i, want.Format("2006-01"), p.Date.Format("2006-01"))
				}
				if i < 24 {
					if p.Kind != KindHistorical || !p.Actual.Valid {
						t.Errorf("point %d: expected historical with actual, got %s valid=%v", i, p.Kind, p.Actual.Valid)
					}
				} else if p.Kind != KindForecast || p.Actual.Valid {
					t.Errorf("point %d: expected forecast without actual, got %s valid=%v", i, p.Kind, p.Actual.Valid)
				}
			}

			if last := result.Points[29].Period; last != "2024-06" {
				t.Errorf("Expected last forecast period 2024-06, got %s", last)
			}
			if result.Evaluated != tt.wantEvaluated {
				t.Errorf("Expected %d evaluated points, got %d", tt.wantEvaluated, result.Evaluated)
			}
			for i := 24; i < 30; i++ {
				if !result.Points[i].Predicted.Valid {
					t.Errorf("point %d: expected a defined forecast", i)
				}
			}
		})
	}
}

func TestForecast_AdditiveTracksTrend(t *testing.T) {
	result, err := Forecast(context.Background(), NewAdditive(3), linearSeries(24), 3)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if !result.MAPE.Valid || result.MAPE.Float64 > 5 {
		t.Errorf("Expected MAPE under 5%% on a linear series, got %v", result.MAPE)
	}

	// Month 27 of the line is 1000 + 25*26.
	got := result.Points[26].Predicted.Float64
	if math.Abs(got-1650) > 100 {
		t.Errorf("Expected third forecast near 1650, got %.2f", got)
	}
}

func TestForecast_HoltWintersConstantSeries(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"trend only", 12},
		{"seasonal", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, tt.n)
			for i := range values {
				values[i] = 500
			}
			series := monthly(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), values...)

			result, err := Forecast(context.Background(), NewHoltWinters(), series, 4)
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}
			for i, p := range result.Points {
				if !p.Predicted.Valid {
					continue
				}
				if math.Abs(p.Predicted.Float64-500) > 1e-9 {
					t.Errorf("point %d: expected 500, got %v", i, p.Predicted.Float64)
				}
			}
			if !result.RMSE.Valid || result.RMSE.Float64 > 1e-9 {
				t.Errorf("Expected RMSE = 0, got %v", result.RMSE)
			}
		})
	}
}

func TestForecast_HoltWintersSkipsInitialisation(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	noisy := []float64{
		1000, 7400, 2300, 5100, 8000, 1200, 6600, 3900, 4700, 2800, 7100, 1500,
		6900, 1800, 5600, 3300, 2100, 7700, 4100, 6200, 1300, 5900, 3600, 8000,
	}

	tests := []struct {
		name          string
		values        []float64
		wantUndefined int
	}{
		{"seasonal", noisy, 12},
		{"trend only", noisy[:10], 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Forecast(context.Background(), NewHoltWinters(), monthly(start, tt.values...), 3)
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}

			for i, p := range result.Points {
				if defined := p.Predicted.Valid; defined == (i < tt.wantUndefined) {
					t.Errorf("point %d: expected defined = %v, got %v", i, i >= tt.wantUndefined, defined)
				}
			}
			if want := len(tt.values) - tt.wantUndefined; result.Evaluated != want {
				t.Errorf("Expected %d evaluated points, got %d", want, result.Evaluated)
			}
			if !result.RMSE.Valid || result.RMSE.Float64 < 100 {
				t.Errorf("Expected a large RMSE on a noisy series, got %v", result.RMSE)
			}
		})
	}
}

func TestForecast_Errors(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		series  []Observation
		horizon int
		wantErr error
	}{
		{"empty series", nil, 6, ErrInsufficientData},
		{"single period", monthly(start, 100), 6, ErrInsufficientData},
		{"same month twice", []Observation{{Date: start, Value: 1}, {Date: start.AddDate(0, 0, 10), Value: 2}}, 6, ErrInsufficientData},
		{"non-finite values dropped", monthly(start, 100, math.NaN()), 6, ErrInsufficientData},
		{"zero horizon", monthly(start, 1, 2, 3), 0, ErrInvalidHorizon},
		{"negative horizon", monthly(start, 1, 2, 3), -1, ErrInvalidHorizon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Forecast(context.Background(), NewAdditive(3), tt.series, tt.horizon)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestForecast_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Forecast(ctx, NewAdditive(3), linearSeries(12), 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestForecast_GapsAreNotZeroFilled(t *testing.T) {
	series := []Observation{
		{Date: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2023, 1, 20, 0, 0, 0, 0, time.UTC), Value: 50},
		{Date: time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC), Value: 200},
		{Date: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), Value: 250},
	}

	result, err := Forecast(context.Background(), NewAdditive(3), series, 3)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	// Three observed months plus three forecast months; February is skipped.
	if len(result.Points) != 6 {
		t.Fatalf("Expected 6 points, got %d", len(result.Points))
	}
	if result.Points[0].Actual.Float64 != 150 {
		t.Errorf("Expected January total 150, got %v", result.Points[0].Actual)
	}
	if result.Points[1].Period != "2023-03" {
		t.Errorf("Expected second point 2023-03, got %s", result.Points[1].Period)
	}
	if result.Points[3].Period != "2023-05" {
		t.Errorf("Expected first forecast 2023-05, got %s", result.Points[3].Period)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		actual       []float64
		fitted       []float64
		wantMAPE     models.NullFloat
		wantRMSE     models.NullFloat
		wantExcluded int
	}{
		{
			name:     "exact fit",
			actual:   []float64{10, 20, 30},
			fitted:   []float64{10, 20, 30},
			wantMAPE: models.Float(0),
			wantRMSE: models.Float(0),
		},
		{
			name:     "constant error",
			actual:   []float64{100, 200},
			fitted:   []float64{110, 190},
			wantMAPE: models.Float(7.5),
			wantRMSE: models.Float(10),
		},
		{
			name:         "zero actual excluded from MAPE",
			actual:       []float64{0, 100},
			fitted:       []float64{5, 90},
			wantMAPE:     models.Float(10),
			wantRMSE:     models.Float(math.Sqrt((25 + 100) / 2.0)),
			wantExcluded: 1,
		},
		{
			name:         "all actuals zero",
			actual:       []float64{0, 0},
			fitted:       []float64{1, 1},
			wantMAPE:     models.NullFloat{},
			wantRMSE:     models.Float(1),
			wantExcluded: 2,
		},
		{
			name:     "nothing to compare",
			wantMAPE: models.NullFloat{},
			wantRMSE: models.NullFloat{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(tt.actual, tt.fitted)
			if !closeNull(ev.MAPE, tt.wantMAPE) {
				t.Errorf("Expected MAPE = %v, got %v", tt.wantMAPE, ev.MAPE)
			}
			if !closeNull(ev.RMSE, tt.wantRMSE) {
				t.Errorf("Expected RMSE = %v, got %v", tt.wantRMSE, ev.RMSE)
			}
			if ev.Excluded != tt.wantExcluded {
				t.Errorf("Expected Excluded = %d, got %d", tt.wantExcluded, ev.Excluded)
			}
		})
	}
}

func TestEvaluate_RMSEZeroOnlyWhenExact(t *testing.T) {
	actual := []float64{3, 4, 5}
	fitted := []float64{3, 4, 5.001}
	if ev := Evaluate(actual, fitted); ev.RMSE.Float64 == 0 {
		t.Error("Expected non-zero RMSE for an inexact fit")
	}
}

func TestMonthlySeries(t *testing.T) {
	orders := []models.Order{
		{OrderDate: time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC), Sales: 10, Profit: 1},
		{OrderDate: time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC), Sales: 5, Profit: 2},
		{OrderDate: time.Date(2023, 3, 28, 0, 0, 0, 0, time.UTC), Sales: 7, Profit: 3},
	}

	series := MonthlySeries(orders, models.MeasureSales)
	if len(series) != 2 {
		t.Fatalf("Expected 2 months, got %d", len(series))
	}
	if series[0].Date.Month() != time.January || series[0].Value != 5 {
		t.Errorf("Expected January = 5, got %s = %v", series[0].Date.Month(), series[0].Value)
	}
	if series[1].Date.Month() != time.March || series[1].Value != 17 {
		t.Errorf("Expected March = 17, got %s = %v", series[1].Date.Month(), series[1].Value)
	}
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"additive", false},
		{"HoltWinters", false},
		{"arima", true},
	}

	for _, tt := range tests {
		_, err := NewModel(tt.name, 3)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewModel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func closeNull(got, want models.NullFloat) bool {
	if got.Valid != want.Valid {
		return false
	}
	return math.Abs(got.Float64-want.Float64) < 1e-9
}

func BenchmarkForecastAdditive(b *testing.B) {
	series := linearSeries(48)
	model := NewAdditive(3)
	ctx := context.Background()

	for b.Loop() {
		if _, err := Forecast(ctx, model, series, 12); err != nil {
			b.Fatal(err)
		}
	}
}
