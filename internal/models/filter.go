package models

import "time"

type FilterCriteria struct {
	Regions    []string  `json:"regions"`
	Categories []string  `json:"categories"`
	Segments   []string  `json:"segments"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Options describes the values a FilterCriteria can select from.
type Options struct {
	Regions    []string  `json:"regions"`
	Categories []string  `json:"categories"`
	Segments   []string  `json:"segments"`
	ShipModes  []string  `json:"ship_modes"`
	MinDate    time.Time `json:"min_date"`
	MaxDate    time.Time `json:"max_date"`
}

// DefaultCriteria selects every value and the full date span.
func (o Options) DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		Regions:    append([]string(nil), o.Regions...),
		Categories: append([]string(nil), o.Categories...),
		Segments:   append([]string(nil), o.Segments...),
		Start:      o.MinDate,
		End:        o.MaxDate,
	}
}
