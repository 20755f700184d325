package pipeline

import (
	"fmt"
	"strings"
	"time"
)

type Granularity string

const (
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Month, nil
	case Month, Quarter, Year:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q, must be one of: month, quarter, year", s)
	}
}

// PeriodLabel buckets t into a period label that sorts lexically in
// chronological order: "2023-01", "2023Q1" or "2023".
func PeriodLabel(t time.Time, g Granularity) string {
	switch g {
	case Quarter:
		return fmt.Sprintf("%04dQ%d", t.Year(), (int(t.Month())-1)/3+1)
	case Year:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return t.Format("2006-01")
	}
}

// MonthStart truncates t to the first day of its month, UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
