// Package export writes dashboard tables as CSV or XLSX downloads.
package export

import (
	"fmt"
	"io"
	"strconv"

	"superstore-dashboard/internal/models"
)

// Format is a download file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// Table is a header plus rows of cells. A cell is a string, an int, a
// float64 or a models.NullFloat.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Column projects one cell out of an aggregate row.
type Column struct {
	Header string
	cell   func(models.AggregateRow) any
}

func KeyColumn(header string, index int) Column {
	return Column{Header: header, cell: func(r models.AggregateRow) any {
		if index < len(r.Keys) {
			return r.Keys[index]
		}
		return ""
	}}
}

func ValueColumn(header, name string) Column {
	return Column{Header: header, cell: func(r models.AggregateRow) any {
		return r.Values[name]
	}}
}

func RatioColumn(header, name string) Column {
	return Column{Header: header, cell: func(r models.AggregateRow) any {
		return r.Ratios[name]
	}}
}

// FromRows builds a table with one row per aggregate row.
func FromRows(name string, rows []models.AggregateRow, cols ...Column) Table {
	t := Table{
		Name:   name,
		Header: make([]string, len(cols)),
		Rows:   make([][]any, len(rows)),
	}
	for i, c := range cols {
		t.Header[i] = c.Header
	}
	for i, r := range rows {
		cells := make([]any, len(cols))
		for j, c := range cols {
			cells[j] = c.cell(r)
		}
		t.Rows[i] = cells
	}
	return t
}

// formatCell renders a cell as text. Undefined values are blank.
func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case models.NullFloat:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}

// cellValue converts a cell to what the spreadsheet writer stores; nil
// leaves the cell empty.
func cellValue(v any) any {
	if n, ok := v.(models.NullFloat); ok {
		if !n.Valid {
			return nil
		}
		return n.Float64
	}
	return v
}
