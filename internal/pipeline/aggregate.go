package pipeline

import (
	"strings"

	"superstore-dashboard/internal/models"
)

type Reduction string

const (
	ReduceSum           Reduction = "sum"
	ReduceMean          Reduction = "mean"
	ReduceCountDistinct Reduction = "count_distinct"
	ReduceCountRows     Reduction = "count"
)

// MeasureSpec names an output column and how to reduce it. Sum and mean
// read Measure; count-distinct reads the dimension Of.
type MeasureSpec struct {
	Name      string
	Reduction Reduction
	Measure   models.Measure
	Of        models.Dimension
}

func SumOf(name string, m models.Measure) MeasureSpec {
	return MeasureSpec{Name: name, Reduction: ReduceSum, Measure: m}
}

func MeanOf(name string, m models.Measure) MeasureSpec {
	return MeasureSpec{Name: name, Reduction: ReduceMean, Measure: m}
}

func CountDistinctOf(name string, d models.Dimension) MeasureSpec {
	return MeasureSpec{Name: name, Reduction: ReduceCountDistinct, Of: d}
}

func CountOf(name string) MeasureSpec {
	return MeasureSpec{Name: name, Reduction: ReduceCountRows}
}

// GroupKey is a grouping dimension. Period keys are bucketed by Granularity.
type GroupKey struct {
	Dimension   models.Dimension
	Granularity Granularity
}

func By(d models.Dimension) GroupKey {
	return GroupKey{Dimension: d}
}

func ByPeriod(g Granularity) GroupKey {
	return GroupKey{Dimension: models.DimPeriod, Granularity: g}
}

func (k GroupKey) value(o models.Order) string {
	if k.Dimension == models.DimPeriod {
		return PeriodLabel(o.OrderDate, k.Granularity)
	}
	return o.Value(k.Dimension)
}

type accumulator struct {
	keys     []string
	rows     int
	sums     []float64
	distinct []map[string]struct{}
}

// Aggregate groups orders by the combination of groupBy values present in
// the input and reduces each measure per group. Rows come out in order of
// first appearance; absent combinations produce no row.
func Aggregate(orders []models.Order, groupBy []GroupKey, measures []MeasureSpec) []models.AggregateRow {
	index := make(map[string]int)
	groups := make([]*accumulator, 0)

	parts := make([]string, len(groupBy))
	for _, o := range orders {
		for i, k := range groupBy {
			parts[i] = k.value(o)
		}
		key := strings.Join(parts, "\x1f")

		gi, ok := index[key]
		if !ok {
			acc := &accumulator{
				keys:     append([]string(nil), parts...),
				sums:     make([]float64, len(measures)),
				distinct: make([]map[string]struct{}, len(measures)),
			}
			for mi, m := range measures {
				if m.Reduction == ReduceCountDistinct {
					acc.distinct[mi] = make(map[string]struct{})
				}
			}
			gi = len(groups)
			index[key] = gi
			groups = append(groups, acc)
		}

		acc := groups[gi]
		acc.rows++
		for mi, m := range measures {
			switch m.Reduction {
			case ReduceSum, ReduceMean:
				acc.sums[mi] += o.Measure(m.Measure)
			case ReduceCountDistinct:
				acc.distinct[mi][o.Value(m.Of)] = struct{}{}
			}
		}
	}

	rows := make([]models.AggregateRow, 0, len(groups))
	for _, acc := range groups {
		values := make(map[string]float64, len(measures))
		for mi, m := range measures {
			switch m.Reduction {
			case ReduceSum:
				values[m.Name] = acc.sums[mi]
			case ReduceMean:
				values[m.Name] = acc.sums[mi] / float64(acc.rows)
			case ReduceCountDistinct:
				values[m.Name] = float64(len(acc.distinct[mi]))
			case ReduceCountRows:
				values[m.Name] = float64(acc.rows)
			}
		}
		rows = append(rows, models.AggregateRow{Keys: acc.keys, Values: values})
	}
	return rows
}

// Total sums measure m over orders.
func Total(orders []models.Order, m models.Measure) float64 {
	var total float64
	for _, o := range orders {
		total += o.Measure(m)
	}
	return total
}

// Average is the mean of m over orders, undefined for an empty set.
func Average(orders []models.Order, m models.Measure) models.NullFloat {
	if len(orders) == 0 {
		return models.NullFloat{}
	}
	return models.Float(Total(orders, m) / float64(len(orders)))
}

// DistinctCount counts distinct values of d across orders.
func DistinctCount(orders []models.Order, d models.Dimension) int {
	seen := make(map[string]struct{})
	for _, o := range orders {
		seen[o.Value(d)] = struct{}{}
	}
	return len(seen)
}

// Column extracts a value column from rows in row order.
func Column(rows []models.AggregateRow, name string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Values[name]
	}
	return out
}
