package pipeline

import (
	"strings"
	"time"

	"superstore-dashboard/internal/models"
)

// ApplyFilters returns the orders matching every predicate of c: region,
// category and segment membership plus the inclusive date interval.
// An empty value set matches nothing. The input slice is never modified.
func ApplyFilters(orders []models.Order, c models.FilterCriteria) []models.Order {
	out := make([]models.Order, 0)
	m, ok := compile(c)
	if !ok {
		return out
	}
	for _, o := range orders {
		if m.match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Matches reports whether a single order satisfies c.
func Matches(o models.Order, c models.FilterCriteria) bool {
	m, ok := compile(c)
	return ok && m.match(o)
}

type matcher struct {
	regions    map[string]struct{}
	categories map[string]struct{}
	segments   map[string]struct{}
	start, end time.Time
}

// compile reports false when c can match nothing.
func compile(c models.FilterCriteria) (matcher, bool) {
	if len(c.Regions) == 0 || len(c.Categories) == 0 || len(c.Segments) == 0 {
		return matcher{}, false
	}
	start, end := dateOnly(c.Start), dateOnly(c.End)
	if start.After(end) {
		return matcher{}, false
	}
	return matcher{
		regions:    toSet(c.Regions),
		categories: toSet(c.Categories),
		segments:   toSet(c.Segments),
		start:      start,
		end:        end,
	}, true
}

func (m matcher) match(o models.Order) bool {
	if _, ok := m.regions[o.Region]; !ok {
		return false
	}
	if _, ok := m.categories[o.Category]; !ok {
		return false
	}
	if _, ok := m.segments[o.Segment]; !ok {
		return false
	}
	d := dateOnly(o.OrderDate)
	return !d.Before(m.start) && !d.After(m.end)
}

// WhereEquals keeps orders whose dimension d equals value.
func WhereEquals(orders []models.Order, d models.Dimension, value string) []models.Order {
	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.Value(d) == value {
			out = append(out, o)
		}
	}
	return out
}

// WhereIn keeps orders whose dimension d is one of values. An empty values
// list leaves the input unrestricted.
func WhereIn(orders []models.Order, d models.Dimension, values []string) []models.Order {
	if len(values) == 0 {
		return orders
	}
	set := toSet(values)
	out := make([]models.Order, 0)
	for _, o := range orders {
		if _, ok := set[o.Value(d)]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Search keeps orders whose dimension d contains query, ignoring case.
func Search(orders []models.Order, d models.Dimension, query string) []models.Order {
	if query == "" {
		return orders
	}
	out := make([]models.Order, 0)
	for _, o := range orders {
		if ContainsFold(o.Value(d), query) {
			out = append(out, o)
		}
	}
	return out
}

// SearchRows keeps rows whose key at position keyIndex contains query,
// ignoring case.
func SearchRows(rows []models.AggregateRow, keyIndex int, query string) []models.AggregateRow {
	if query == "" {
		return rows
	}
	out := make([]models.AggregateRow, 0, len(rows))
	for _, r := range rows {
		if keyIndex < len(r.Keys) && ContainsFold(r.Keys[keyIndex], query) {
			out = append(out, r)
		}
	}
	return out
}

func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
