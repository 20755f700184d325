package pipeline

import (
	"cmp"
	"math"
	"slices"

	"superstore-dashboard/internal/models"
)

// TopN returns the n rows with the largest value column, largest first.
// Ties keep their original row order.
func TopN(rows []models.AggregateRow, column string, n int) []models.AggregateRow {
	return firstN(SortRows(rows, column, true), n)
}

// BottomN returns the n rows with the smallest value column, smallest first.
// Ties keep their original row order.
func BottomN(rows []models.AggregateRow, column string, n int) []models.AggregateRow {
	return firstN(SortRows(rows, column, false), n)
}

// SortRows returns a stably sorted copy of rows by a value column.
func SortRows(rows []models.AggregateRow, column string, desc bool) []models.AggregateRow {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b models.AggregateRow) int {
		c := cmp.Compare(a.Values[column], b.Values[column])
		if desc {
			return -c
		}
		return c
	})
	return out
}

// SortRowsByKey returns a stably sorted copy of rows by the key at keyIndex.
func SortRowsByKey(rows []models.AggregateRow, keyIndex int) []models.AggregateRow {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b models.AggregateRow) int {
		return cmp.Compare(a.Keys[keyIndex], b.Keys[keyIndex])
	})
	return out
}

// FilterRows keeps rows for which keep returns true.
func FilterRows(rows []models.AggregateRow, keep func(models.AggregateRow) bool) []models.AggregateRow {
	out := make([]models.AggregateRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func firstN(rows []models.AggregateRow, n int) []models.AggregateRow {
	if n >= 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks, position (len-1)*q. Empty input is undefined.
func Quantile(values []float64, q float64) models.NullFloat {
	if len(values) == 0 || q < 0 || q > 1 {
		return models.NullFloat{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return models.Float(sorted[lo] + (sorted[hi]-sorted[lo])*frac)
}
