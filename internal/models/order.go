package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

type Order struct {
	OrderID      string    `json:"order_id"`
	OrderDate    time.Time `json:"order_date"`
	OrderPeriod  string    `json:"order_period"`
	CustomerName string    `json:"customer_name"`
	Region       string    `json:"region"`
	State        string    `json:"state"`
	Category     string    `json:"category"`
	SubCategory  string    `json:"sub_category"`
	Segment      string    `json:"segment"`
	ShipMode     string    `json:"ship_mode"`
	ProductName  string    `json:"product_name"`
	Sales        float64   `json:"sales"`
	Profit       float64   `json:"profit"`
	Quantity     int       `json:"quantity"`
	Discount     float64   `json:"discount"`
}

type Dimension string

const (
	DimRegion       Dimension = "region"
	DimState        Dimension = "state"
	DimCategory     Dimension = "category"
	DimSubCategory  Dimension = "sub_category"
	DimSegment      Dimension = "segment"
	DimShipMode     Dimension = "ship_mode"
	DimCustomerName Dimension = "customer_name"
	DimProductName  Dimension = "product_name"
	DimOrderID      Dimension = "order_id"
	DimPeriod       Dimension = "period"
)

// Value returns the categorical value of o for d. DimPeriod yields the
// monthly period label; other granularities go through pipeline.PeriodLabel.
func (o Order) Value(d Dimension) string {
	switch d {
	case DimRegion:
		return o.Region
	case DimState:
		return o.State
	case DimCategory:
		return o.Category
	case DimSubCategory:
		return o.SubCategory
	case DimSegment:
		return o.Segment
	case DimShipMode:
		return o.ShipMode
	case DimCustomerName:
		return o.CustomerName
	case DimProductName:
		return o.ProductName
	case DimOrderID:
		return o.OrderID
	case DimPeriod:
		return o.OrderPeriod
	default:
		return ""
	}
}

type Measure string

const (
	MeasureSales    Measure = "sales"
	MeasureProfit   Measure = "profit"
	MeasureQuantity Measure = "quantity"
	MeasureDiscount Measure = "discount"
)

func (o Order) Measure(m Measure) float64 {
	switch m {
	case MeasureSales:
		return o.Sales
	case MeasureProfit:
		return o.Profit
	case MeasureQuantity:
		return float64(o.Quantity)
	case MeasureDiscount:
		return o.Discount
	default:
		return 0
	}
}

// NullFloat is a float that may be undefined, e.g. a ratio whose divisor
// was zero. Undefined values encode as JSON null and as a blank table cell.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Float64: v, Valid: true}
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Float(v)
	return nil
}

func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

type AggregateRow struct {
	Keys   []string             `json:"keys"`
	Values map[string]float64   `json:"values"`
	Ratios map[string]NullFloat `json:"ratios,omitempty"`
}

func (r AggregateRow) Value(name string) float64 {
	return r.Values[name]
}
