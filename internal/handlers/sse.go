package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/pipeline"
	"superstore-dashboard/internal/services"
)

const maxTableRows = 50

var viewTemplate = template.Must(template.New("view").Parse(`
<div id="view-content">
<h2 class="section-title">{{.Title}}</h2>
{{with .Warning}}<div class="warning">{{.}}</div>{{end}}
{{if .KPIs}}<div class="kpis">{{range .KPIs}}<div class="kpi"><span>{{.Label}}</span><strong>{{.Value}}</strong></div>{{end}}</div>{{end}}
{{range .Sections}}<section>
<h3>{{.Title}}</h3>
<table class="modern-table">
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{else}}<tr><td colspan="{{len .Header}}">No rows match the current filters</td></tr>{{end}}
</tbody>
</table>
{{if .Truncated}}<p class="muted">Showing {{len .Rows}} of {{.Total}} rows. Download the full table below.</p>{{end}}
</section>{{end}}
{{if .Downloads}}<div class="downloads">
<a href="/export/{{.View}}.csv?{{.Query}}">Download CSV</a>
<a href="/export/{{.View}}.xlsx?{{.Query}}">Download XLSX</a>
</div>{{end}}
</div>`))

type kpi struct {
	Label string
	Value string
}

type section struct {
	Title     string
	Header    []string
	Rows      [][]string
	Total     int
	Truncated bool
}

type fragment struct {
	View      View
	Title     string
	Warning   string
	Query     template.URL
	KPIs      []kpi
	Sections  []section
	Downloads bool
}

// pageSignals mirrors the page's Datastar signals. Nil slices mean the
// control was never touched, which selects every value.
type pageSignals struct {
	Region          []string `json:"region"`
	Category        []string `json:"category"`
	Segment         []string `json:"segment"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Tier            string   `json:"tier"`
	Q               string   `json:"q"`
	ProductCategory string   `json:"product_category"`
	Subcategory     []string `json:"subcategory"`
	Granularity     string   `json:"granularity"`
	Dimension       string   `json:"dimension"`
	Value           string   `json:"value"`
	Horizon         int      `json:"horizon"`
}

func (s pageSignals) query() url.Values {
	q := url.Values{}
	setList := func(name string, values []string) {
		if values == nil {
			return
		}
		if len(values) == 0 {
			q.Set(name, "")
			return
		}
		q[name] = values
	}
	set := func(name, value string) {
		if value != "" {
			q.Set(name, value)
		}
	}

	setList("region", s.Region)
	setList("category", s.Category)
	setList("segment", s.Segment)
	setList("subcategory", s.Subcategory)
	set("start", s.Start)
	set("end", s.End)
	set("tier", s.Tier)
	set("q", s.Q)
	set("product_category", s.ProductCategory)
	set("granularity", s.Granularity)
	set("dimension", s.Dimension)
	set("value", s.Value)
	if s.Horizon != 0 {
		q.Set("horizon", strconv.Itoa(s.Horizon))
	}
	return q
}

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// requestQuery prefers Datastar signals when the page sent them and falls
// back to plain query parameters.
func requestQuery(r *http.Request) (url.Values, error) {
	q := r.URL.Query()
	if !q.Has("datastar") {
		return q, nil
	}
	var signals pageSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	return signals.query(), nil
}

// HandleView serves GET /sse/{view}: the rendered view fragment plus the
// view data as a signal for the charts.
func (h *SSEHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFor(r.Context(), h.logger)

	v, err := viewFromPath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	q, err := requestQuery(r)
	if err != nil {
		http.Error(w, "invalid signals", http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)

	data, err := computeView(r.Context(), h.dashboard, v, q)
	if err != nil {
		patchWarning(sse, logger, v, err)
		return
	}

	html, err := renderFragment(buildFragment(v, data, q))
	if err != nil {
		logger.Error("render view", "view", v, "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{
		"view":     v,
		"viewData": data,
	})
	if err != nil {
		logger.Error("marshal view data", "view", v, "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleOverview refreshes the filter-driven summary in one response.
func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFor(r.Context(), h.logger)

	q, err := requestQuery(r)
	if err != nil {
		http.Error(w, "invalid signals", http.StatusBadRequest)
		return
	}
	criteria, err := parseCriteria(q, h.dashboard.DefaultCriteria())
	if err != nil {
		http.Error(w, toAppError(err).Message, http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)

	overview, err := h.dashboard.Overview(r.Context(), criteria)
	if err != nil {
		patchWarning(sse, logger, ViewHome, err)
		return
	}

	html, err := renderFragment(buildFragment(ViewHome, overview.Home, q))
	if err != nil {
		logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{
		"overview": overview,
	})
	if err != nil {
		logger.Error("marshal overview", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// patchWarning replaces the view content with the error message so a failed
// computation is visible instead of leaving the previous fragment in place.
func patchWarning(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, v View, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("compute view", "view", v, "error", err)
	}
	html, rerr := warningFragment(v, appErr)
	if rerr != nil {
		logger.Error("render warning", "view", v, "error", rerr)
		return
	}
	sse.PatchElements(html)
}

func warningFragment(v View, appErr *errors.AppError) (string, error) {
	return renderFragment(fragment{View: v, Title: viewTitle(v), Warning: appErr.Message + detailSuffix(appErr.Details)})
}

func renderFragment(f fragment) (string, error) {
	var buf strings.Builder
	err := viewTemplate.Execute(&buf, f)
	return buf.String(), err
}

func detailSuffix(details string) string {
	if details == "" {
		return ""
	}
	return " (" + details + ")"
}

func viewTitle(v View) string {
	switch v {
	case ViewHome:
		return "Global Superstore Dashboard"
	case ViewSales:
		return "Sales Overview"
	case ViewCustomers:
		return "Customer Insights"
	case ViewProducts:
		return "Product Performance"
	case ViewTrends:
		return "Trend Analysis"
	case ViewCategory:
		return "Category Insights"
	case ViewLocation:
		return "Location Performance"
	case ViewShipping:
		return "Shipping Analytics"
	case ViewForecast:
		return "Sales Forecast with Evaluation"
	default:
		return string(v)
	}
}

func buildFragment(v View, data tabular, q url.Values) fragment {
	f := fragment{
		View:      v,
		Title:     viewTitle(v),
		Query:     template.URL(q.Encode()),
		Downloads: true,
	}

	switch view := data.(type) {
	case *services.HomeView:
		f.KPIs = []kpi{
			{"Total Sales", money(view.TotalSales)},
			{"Total Profit", money(view.TotalProfit)},
			{"Total Quantity", strconv.FormatFloat(view.TotalQuantity, 'f', 0, 64)},
			{"Orders", strconv.Itoa(view.Orders)},
		}
	case *services.SalesView:
		f.Sections = append(f.Sections,
			tableSection("Sales by Region", export.FromRows("", view.ByRegion,
				export.KeyColumn("Region", 0), export.ValueColumn("Sales", "sales"))),
			tableSection("Profit by Segment", export.FromRows("", view.ProfitBySegment,
				export.KeyColumn("Segment", 0), export.ValueColumn("Profit", "profit"))),
		)
	case *services.CustomersView:
		f.KPIs = []kpi{
			{"Avg. Order Value", nullMoney(view.AvgOrderValue)},
			{"Avg. Discount", percent(view.AvgDiscount)},
			{"High-Value Threshold", nullMoney(view.HighValueThreshold)},
		}
		f.Sections = append(f.Sections,
			tableSection("Top 10 Customers by Profit", export.FromRows("", view.TopByProfit,
				export.KeyColumn("Customer", 0), export.ValueColumn("Profit", "profit"))),
			tableSection("Bottom 10 Customers by Profit", export.FromRows("", view.BottomByProfit,
				export.KeyColumn("Customer", 0), export.ValueColumn("Profit", "profit"))),
		)
	case *services.ProductsView:
		f.KPIs = []kpi{
			{"Category", view.Category},
			{"Avg. Discount", percent(view.AvgDiscount)},
			{"Alerts", fmt.Sprintf("%d products have high sales but negative profit", len(view.Alerts))},
		}
		f.Sections = append(f.Sections,
			tableSection("High Sales, Negative Profit", export.FromRows("", view.Alerts,
				export.KeyColumn("Product", 0), export.ValueColumn("Sales", "sales"), export.ValueColumn("Profit", "profit"))),
		)
	case *services.TrendsView:
		f.KPIs = []kpi{
			{"View By", granularityLabel(view.Granularity)},
			{"Rows", strconv.Itoa(len(view.Rows))},
		}
	case *services.CategoryView:
		f.KPIs = []kpi{
			{"Avg Order Size", number(view.AvgOrderSize)},
			{"Avg Profit Margin", percentPoints(view.AvgProfitMargin)},
		}
	case *services.LocationView:
		f.Sections = append(f.Sections,
			tableSection("Top 5 Loss-Making States", export.FromRows("", view.LossStates,
				export.KeyColumn("State", 0), export.ValueColumn("Profit", "profit"))),
		)
	case *services.ForecastView:
		f.KPIs = []kpi{
			{"Forecast By", fmt.Sprintf("%s = %s", view.Dimension, view.Value)},
			{"Model", view.Sales.Model},
			{"MAPE (Accuracy)", percentPoints(view.Sales.MAPE)},
			{"RMSE", nullMoney(view.Sales.RMSE)},
		}
		if view.Sales.Excluded > 0 {
			f.Warning = fmt.Sprintf("%d months with zero sales were left out of MAPE", view.Sales.Excluded)
		}
	}

	f.Sections = append(f.Sections, tableSection("Full Table", data.Table()))
	return f
}

func tableSection(title string, t export.Table) section {
	s := section{
		Title:  title,
		Header: t.Header,
		Total:  len(t.Rows),
	}
	rows := t.Rows
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
		s.Truncated = true
	}
	s.Rows = make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = displayCell(c)
		}
		s.Rows[i] = cells
	}
	return s
}

func displayCell(v any) string {
	switch c := v.(type) {
	case float64:
		return strconv.FormatFloat(c, 'f', 2, 64)
	case models.NullFloat:
		return number(c)
	case int:
		return strconv.Itoa(c)
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func number(n models.NullFloat) string {
	if !n.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(n.Float64, 'f', 2, 64)
}

// percentPoints formats a value already scaled to percent.
func percentPoints(n models.NullFloat) string {
	if !n.Valid {
		return "n/a"
	}
	return number(n) + "%"
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func nullMoney(n models.NullFloat) string {
	if !n.Valid {
		return "n/a"
	}
	return money(n.Float64)
}

func percent(n models.NullFloat) string {
	if !n.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(n.Float64*100, 'f', 2, 64) + "%"
}

// granularityLabel is the heading used for the trends period column.
func granularityLabel(g pipeline.Granularity) string {
	switch g {
	case pipeline.Quarter:
		return "Quarter"
	case pipeline.Year:
		return "Year"
	default:
		return "Month"
	}
}
