package pipeline

import "superstore-dashboard/internal/models"

const (
	RatioAverageOrderValue = "avg_order_value"
	RatioProfitMargin      = "profit_margin"
	RatioReorderRate       = "reorder_rate"
	RatioAverageOrderSize  = "avg_order_size"
)

func divide(num, den float64) models.NullFloat {
	if den == 0 {
		return models.NullFloat{}
	}
	return models.Float(num / den)
}

func AverageOrderValue(sales, distinctOrders float64) models.NullFloat {
	return divide(sales, distinctOrders)
}

// ProfitMargin is profit as a percentage of sales.
func ProfitMargin(profit, sales float64) models.NullFloat {
	m := divide(profit, sales)
	if m.Valid {
		m.Float64 *= 100
	}
	return m
}

func ReorderRate(orderCount, meanQuantity float64) models.NullFloat {
	return divide(orderCount, meanQuantity)
}

// AverageOrderSize divides a group's quantity by the number of distinct
// orders in the whole filtered set, not in the group.
func AverageOrderSize(quantity float64, globalDistinctOrders int) models.NullFloat {
	return divide(quantity, float64(globalDistinctOrders))
}

// WithRatio sets a derived ratio on every row using fn over its values.
func WithRatio(rows []models.AggregateRow, name string, fn func(models.AggregateRow) models.NullFloat) {
	for i := range rows {
		if rows[i].Ratios == nil {
			rows[i].Ratios = make(map[string]models.NullFloat)
		}
		rows[i].Ratios[name] = fn(rows[i])
	}
}

// MeanDefined averages the defined values, undefined if there are none.
func MeanDefined(values []models.NullFloat) models.NullFloat {
	var sum float64
	n := 0
	for _, v := range values {
		if v.Valid {
			sum += v.Float64
			n++
		}
	}
	return divide(sum, float64(n))
}

// RatioColumn extracts a ratio column from rows in row order.
func RatioColumn(rows []models.AggregateRow, name string) []models.NullFloat {
	out := make([]models.NullFloat, len(rows))
	for i, r := range rows {
		out[i] = r.Ratios[name]
	}
	return out
}
