package services

import (
	"time"

	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/forecast"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/pipeline"
)

// Value column names shared by the views and their exports.
const (
	colSales    = "sales"
	colProfit   = "profit"
	colQuantity = "quantity"
	colDiscount = "discount"
	colOrders   = "orders"
)

type HomeView struct {
	TotalSales    float64 `json:"total_sales"`
	TotalProfit   float64 `json:"total_profit"`
	TotalQuantity float64 `json:"total_quantity"`
	Orders        int     `json:"orders"`
	Records       int     `json:"records"`
}

func (v *HomeView) Table() export.Table {
	return export.Table{
		Name:   "home",
		Header: []string{"metric", "value"},
		Rows: [][]any{
			{"total_sales", v.TotalSales},
			{"total_profit", v.TotalProfit},
			{"total_quantity", v.TotalQuantity},
			{"orders", v.Orders},
			{"records", v.Records},
		},
	}
}

type SalesView struct {
	ByRegion        []models.AggregateRow `json:"by_region"`
	ProfitBySegment []models.AggregateRow `json:"profit_by_segment"`
	MonthlyTrend    []models.AggregateRow `json:"monthly_trend"`
}

func (v *SalesView) Table() export.Table {
	return export.FromRows("sales", v.MonthlyTrend,
		export.KeyColumn("order_period", 0),
		export.ValueColumn(colSales, colSales),
	)
}

// Tier selects customers relative to the high-value sales threshold.
type Tier string

const (
	TierAll  Tier = "all"
	TierHigh Tier = "high"
	TierLow  Tier = "low"
)

type CustomersParams struct {
	Tier  Tier
	Query string
}

type CustomersView struct {
	Tier               Tier                  `json:"tier"`
	Query              string                `json:"query,omitempty"`
	HighValueThreshold models.NullFloat      `json:"high_value_threshold"`
	AvgOrderValue      models.NullFloat      `json:"avg_order_value"`
	AvgDiscount        models.NullFloat      `json:"avg_discount"`
	TopByProfit        []models.AggregateRow `json:"top_by_profit"`
	BottomByProfit     []models.AggregateRow `json:"bottom_by_profit"`
	Rows               []models.AggregateRow `json:"rows"`
}

func (v *CustomersView) Table() export.Table {
	return export.FromRows("customers", v.Rows,
		export.KeyColumn("customer_name", 0),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colProfit, colProfit),
		export.ValueColumn(colOrders, colOrders),
		export.ValueColumn(colDiscount, colDiscount),
		export.RatioColumn(pipeline.RatioAverageOrderValue, pipeline.RatioAverageOrderValue),
	)
}

type ProductsParams struct {
	Category      string
	SubCategories []string
	Query         string
}

// Heatmap is summed profit per product (rows) and discount level
// (columns). Combinations without orders are zero.
type Heatmap struct {
	Products  []string    `json:"products"`
	Discounts []float64   `json:"discounts"`
	Profit    [][]float64 `json:"profit"`
}

type ProductsView struct {
	Category              string                `json:"category"`
	Categories            []string              `json:"categories"`
	SubCategories         []string              `json:"sub_categories"`
	SelectedSubCategories []string              `json:"selected_sub_categories"`
	Query                 string                `json:"query,omitempty"`
	AvgDiscount           models.NullFloat      `json:"avg_discount"`
	Heatmap               Heatmap               `json:"heatmap"`
	Alerts                []models.AggregateRow `json:"alerts"`
	Rows                  []models.AggregateRow `json:"rows"`
}

func (v *ProductsView) Table() export.Table {
	return export.FromRows("products", v.Rows,
		export.KeyColumn("product_name", 0),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colProfit, colProfit),
	)
}

type TrendsView struct {
	Granularity pipeline.Granularity  `json:"granularity"`
	Rows        []models.AggregateRow `json:"rows"`
}

func (v *TrendsView) Table() export.Table {
	return export.FromRows("trends", v.Rows,
		export.KeyColumn("period", 0),
		export.KeyColumn("category", 1),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colProfit, colProfit),
		export.ValueColumn(colQuantity, colQuantity),
	)
}

type CategoryView struct {
	Query           string                `json:"query,omitempty"`
	AvgOrderSize    models.NullFloat      `json:"avg_order_size"`
	AvgProfitMargin models.NullFloat      `json:"avg_profit_margin"`
	Rows            []models.AggregateRow `json:"rows"`
}

func (v *CategoryView) Table() export.Table {
	return export.FromRows("category", v.Rows,
		export.KeyColumn("category", 0),
		export.KeyColumn("sub_category", 1),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colProfit, colProfit),
		export.RatioColumn(pipeline.RatioAverageOrderSize, pipeline.RatioAverageOrderSize),
		export.RatioColumn(pipeline.RatioProfitMargin, pipeline.RatioProfitMargin),
	)
}

type LocationView struct {
	LossStates []models.AggregateRow `json:"loss_states"`
	Rows       []models.AggregateRow `json:"rows"`
}

func (v *LocationView) Table() export.Table {
	return export.FromRows("location", v.Rows,
		export.KeyColumn("state", 0),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colProfit, colProfit),
	)
}

type ShippingView struct {
	Rows []models.AggregateRow `json:"rows"`
}

func (v *ShippingView) Table() export.Table {
	return export.FromRows("shipping", v.Rows,
		export.KeyColumn("ship_mode", 0),
		export.ValueColumn(colOrders, colOrders),
		export.ValueColumn(colSales, colSales),
		export.ValueColumn(colQuantity, colQuantity),
		export.ValueColumn(colProfit, colProfit),
		export.RatioColumn(pipeline.RatioReorderRate, pipeline.RatioReorderRate),
	)
}

type ForecastParams struct {
	Dimension models.Dimension
	Value     string
	Horizon   int
}

type ForecastView struct {
	Dimension     models.Dimension       `json:"dimension"`
	Value         string                 `json:"value"`
	Values        []string               `json:"values"`
	Horizon       int                    `json:"horizon"`
	Sales         *forecast.Result       `json:"sales"`
	MonthlyProfit []forecast.Observation `json:"monthly_profit"`
}

func (v *ForecastView) Table() export.Table {
	t := export.Table{
		Name:   "forecast",
		Header: []string{"period", "kind", "actual", "predicted"},
	}
	if v.Sales == nil {
		return t
	}
	t.Rows = make([][]any, len(v.Sales.Points))
	for i, p := range v.Sales.Points {
		t.Rows[i] = []any{p.Period, string(p.Kind), p.Actual, p.Predicted}
	}
	return t
}

// Overview bundles the views refreshed together when filters change.
type Overview struct {
	Home     *HomeView     `json:"home"`
	Sales    *SalesView    `json:"sales"`
	Location *LocationView `json:"location"`
	Shipping *ShippingView `json:"shipping"`
}

type Stats struct {
	SourceFile    string    `json:"source_file"`
	RecordCount   int       `json:"record_count"`
	LoadedAt      time.Time `json:"loaded_at"`
	MinDate       string    `json:"min_date"`
	MaxDate       string    `json:"max_date"`
	Regions       int       `json:"regions"`
	Categories    int       `json:"categories"`
	Segments      int       `json:"segments"`
	ForecastModel string    `json:"forecast_model"`
}
