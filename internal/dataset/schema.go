package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"superstore-dashboard/internal/models"
)

type column int

const (
	colOrderID column = iota
	colOrderDate
	colCustomerName
	colRegion
	colState
	colCategory
	colSubCategory
	colSegment
	colShipMode
	colProductName
	colSales
	colProfit
	colQuantity
	colDiscount
	numColumns
)

var columnNames = [numColumns]string{
	colOrderID:      "order_id",
	colOrderDate:    "order_date",
	colCustomerName: "customer_name",
	colRegion:       "region",
	colState:        "state",
	colCategory:     "category",
	colSubCategory:  "sub_category",
	colSegment:      "segment",
	colShipMode:     "ship_mode",
	colProductName:  "product_name",
	colSales:        "sales",
	colProfit:       "profit",
	colQuantity:     "quantity",
	colDiscount:     "discount",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// schema maps each required column to its index in the file header.
type schema [numColumns]int

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.ReplaceAll(h, "-", "_")
	return strings.ReplaceAll(h, " ", "_")
}

func resolveSchema(header []string) (schema, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var s schema
	var missing []string
	for c := column(0); c < numColumns; c++ {
		i, ok := index[columnNames[c]]
		if !ok {
			missing = append(missing, columnNames[c])
			continue
		}
		s[c] = i
	}
	if len(missing) > 0 {
		return s, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

func (s schema) width() int {
	w := 0
	for _, i := range s {
		w = max(w, i+1)
	}
	return w
}

func parseDate(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var errNotFinite = errors.New("not a finite number")

// parseAmount parses a decimal field. NaN and infinities are rejected since
// they would poison every total they reach.
func parseAmount(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func (s schema) parseOrder(record []string) (models.Order, error) {
	if len(record) < s.width() {
		return models.Order{}, fmt.Errorf("insufficient columns: got %d, want %d", len(record), s.width())
	}

	field := func(c column) string {
		return strings.TrimSpace(record[s[c]])
	}

	date, err := parseDate(field(colOrderDate))
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid order_date %q: %w", field(colOrderDate), err)
	}

	sales, err := parseAmount(field(colSales))
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid sales %q: %w", field(colSales), err)
	}
	if sales < 0 {
		return models.Order{}, fmt.Errorf("sales must be non-negative, got %v", sales)
	}

	profit, err := parseAmount(field(colProfit))
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid profit %q: %w", field(colProfit), err)
	}

	quantity, err := strconv.Atoi(field(colQuantity))
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid quantity %q: %w", field(colQuantity), err)
	}
	if quantity <= 0 {
		return models.Order{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	discount, err := parseAmount(field(colDiscount))
	if err != nil {
		return models.Order{}, fmt.Errorf("invalid discount %q: %w", field(colDiscount), err)
	}
	if discount < 0 || discount > 1 {
		return models.Order{}, fmt.Errorf("discount must be within [0,1], got %v", discount)
	}

	return models.Order{
		OrderID:      field(colOrderID),
		OrderDate:    date,
		OrderPeriod:  date.Format("2006-01"),
		CustomerName: field(colCustomerName),
		Region:       field(colRegion),
		State:        field(colState),
		Category:     field(colCategory),
		SubCategory:  field(colSubCategory),
		Segment:      field(colSegment),
		ShipMode:     field(colShipMode),
		ProductName:  field(colProductName),
		Sales:        sales,
		Profit:       profit,
		Quantity:     quantity,
		Discount:     discount,
	}, nil
}
