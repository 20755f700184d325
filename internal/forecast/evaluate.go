package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"superstore-dashboard/internal/models"
)

// Evaluation scores fitted values against actuals over the periods present
// in both.
type Evaluation struct {
	MAPE      models.NullFloat `json:"mape"`
	RMSE      models.NullFloat `json:"rmse"`
	Evaluated int              `json:"evaluated"`
	Excluded  int              `json:"excluded_from_mape"`
}

// Evaluate pairs actual and fitted values index by index. Points whose
// actual is zero are left out of MAPE but still count towards RMSE.
func Evaluate(actual, fitted []float64) Evaluation {
	n := min(len(actual), len(fitted))
	if n == 0 {
		return Evaluation{}
	}
	a, f := actual[:n], fitted[:n]

	ev := Evaluation{
		Evaluated: n,
		RMSE:      models.Float(floats.Distance(a, f, 2) / math.Sqrt(float64(n))),
	}

	var sum float64
	count := 0
	for i := range a {
		if a[i] == 0 {
			ev.Excluded++
			continue
		}
		sum += math.Abs(a[i]-f[i]) / math.Abs(a[i])
		count++
	}
	if count > 0 {
		ev.MAPE = models.Float(sum / float64(count) * 100)
	}
	return ev
}
