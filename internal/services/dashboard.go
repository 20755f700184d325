package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/forecast"
	"superstore-dashboard/internal/metrics"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/pipeline"
)

const (
	rankSize           = 10
	lossStates         = 5
	highValueQuantile  = 0.75
	alertSalesAbove    = 5000
	forecastDimensions = "region, category, segment"
)

// ErrInvalidParams wraps view parameters that cannot be served.
var ErrInvalidParams = errors.New("invalid parameters")

// Dashboard computes the dashboard views over an immutable dataset
// snapshot. Replacing the snapshot never affects views already in flight.
type Dashboard struct {
	mu       sync.RWMutex
	data     *dataset.Dataset
	csvPath  string
	loader   *dataset.Loader
	model    forecast.Model
	cfg      config.ForecastConfig
	recorder *metrics.Recorder
	logger   *slog.Logger
}

func NewDashboard(cfg config.ForecastConfig, loader *dataset.Loader, recorder *metrics.Recorder, logger *slog.Logger) (*Dashboard, error) {
	model, err := forecast.NewModel(cfg.Model, cfg.SeasonalOrder)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = dataset.NewLoader("", logger)
	}
	if recorder == nil {
		recorder = metrics.New()
	}
	return &Dashboard{
		data:     dataset.New(nil),
		loader:   loader,
		model:    model,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
	}, nil
}

func (d *Dashboard) SetData(orders []models.Order) {
	d.swap(dataset.New(orders), "")
}

func (d *Dashboard) LoadFromCSV(ctx context.Context, filename string) error {
	ctx, span := observability.StartSpan(ctx, "dataset.load")
	defer span.End(ctx, d.logger)
	span.SetTag("file", filename)

	ds, err := d.loader.Load(ctx, filename)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("load %s: %w", filename, err)
	}
	d.swap(ds, filename)
	return nil
}

func (d *Dashboard) swap(ds *dataset.Dataset, source string) {
	d.mu.Lock()
	d.data = ds
	d.csvPath = source
	d.mu.Unlock()

	d.recorder.SetDataset(len(ds.Orders), ds.LoadedAt)
}

func (d *Dashboard) snapshot() *dataset.Dataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

func (d *Dashboard) Options() models.Options {
	return d.snapshot().Options
}

// DefaultCriteria selects the whole dataset.
func (d *Dashboard) DefaultCriteria() models.FilterCriteria {
	return d.snapshot().Options.DefaultCriteria()
}

// ForecastConfig returns the horizon bounds and defaults forecasts use.
func (d *Dashboard) ForecastConfig() config.ForecastConfig {
	return d.cfg
}

func (d *Dashboard) Stats() Stats {
	d.mu.RLock()
	ds, source := d.data, d.csvPath
	d.mu.RUnlock()

	s := Stats{
		SourceFile:    source,
		RecordCount:   len(ds.Orders),
		LoadedAt:      ds.LoadedAt,
		Regions:       len(ds.Options.Regions),
		Categories:    len(ds.Options.Categories),
		Segments:      len(ds.Options.Segments),
		ForecastModel: d.model.Name(),
	}
	if len(ds.Orders) > 0 {
		s.MinDate = ds.Options.MinDate.Format(time.DateOnly)
		s.MaxDate = ds.Options.MaxDate.Format(time.DateOnly)
	}
	return s
}

// track times a view computation and reports it as a span and a metric.
func (d *Dashboard) track(ctx context.Context, view string) (context.Context, func(error)) {
	ctx, span := observability.StartSpan(ctx, "view."+view)
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.SetError(err)
			d.recorder.RecordViewError(view, errorKind(err))
		}
		span.End(ctx, d.logger)
		d.recorder.ObserveView(view, time.Since(start))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func (d *Dashboard) filtered(ctx context.Context, c models.FilterCriteria) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pipeline.ApplyFilters(d.snapshot().Orders, c), nil
}

func (d *Dashboard) Home(ctx context.Context, c models.FilterCriteria) (view *HomeView, err error) {
	ctx, done := d.track(ctx, "home")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return homeView(orders), nil
}

func homeView(orders []models.Order) *HomeView {
	return &HomeView{
		TotalSales:    pipeline.Total(orders, models.MeasureSales),
		TotalProfit:   pipeline.Total(orders, models.MeasureProfit),
		TotalQuantity: pipeline.Total(orders, models.MeasureQuantity),
		Orders:        pipeline.DistinctCount(orders, models.DimOrderID),
		Records:       len(orders),
	}
}

func (d *Dashboard) Sales(ctx context.Context, c models.FilterCriteria) (view *SalesView, err error) {
	ctx, done := d.track(ctx, "sales")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return salesView(orders), nil
}

func salesView(orders []models.Order) *SalesView {
	byRegion := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimRegion)},
		[]pipeline.MeasureSpec{pipeline.SumOf(colSales, models.MeasureSales)},
	)
	bySegment := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimSegment)},
		[]pipeline.MeasureSpec{pipeline.SumOf(colProfit, models.MeasureProfit)},
	)
	monthly := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.ByPeriod(pipeline.Month)},
		[]pipeline.MeasureSpec{pipeline.SumOf(colSales, models.MeasureSales)},
	)
	return &SalesView{
		ByRegion:        byRegion,
		ProfitBySegment: bySegment,
		MonthlyTrend:    pipeline.SortRowsByKey(monthly, 0),
	}
}

// Customers ranks customers by value. The high-value threshold is the
// sales quantile over every customer in the filtered set; search narrows
// the ranking and table but not the tier KPIs.
func (d *Dashboard) Customers(ctx context.Context, c models.FilterCriteria, p CustomersParams) (view *CustomersView, err error) {
	ctx, done := d.track(ctx, "customers")
	defer func() { done(err) }()

	tier := p.Tier
	if tier == "" {
		tier = TierAll
	}
	if tier != TierAll && tier != TierHigh && tier != TierLow {
		return nil, fmt.Errorf("%w: unknown customer tier %q", ErrInvalidParams, p.Tier)
	}

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}

	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimCustomerName)},
		[]pipeline.MeasureSpec{
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.SumOf(colProfit, models.MeasureProfit),
			pipeline.CountDistinctOf(colOrders, models.DimOrderID),
			pipeline.MeanOf(colDiscount, models.MeasureDiscount),
		},
	)
	pipeline.WithRatio(rows, pipeline.RatioAverageOrderValue, func(r models.AggregateRow) models.NullFloat {
		return pipeline.AverageOrderValue(r.Value(colSales), r.Value(colOrders))
	})

	threshold := pipeline.Quantile(pipeline.Column(rows, colSales), highValueQuantile)
	switch tier {
	case TierHigh:
		rows = pipeline.FilterRows(rows, func(r models.AggregateRow) bool {
			return threshold.Valid && r.Value(colSales) >= threshold.Float64
		})
	case TierLow:
		rows = pipeline.FilterRows(rows, func(r models.AggregateRow) bool {
			return threshold.Valid && r.Value(colSales) < threshold.Float64
		})
	}

	view = &CustomersView{
		Tier:               tier,
		Query:              p.Query,
		HighValueThreshold: threshold,
		AvgOrderValue:      pipeline.MeanDefined(pipeline.RatioColumn(rows, pipeline.RatioAverageOrderValue)),
		AvgDiscount:        mean(pipeline.Column(rows, colDiscount)),
	}

	rows = pipeline.SearchRows(rows, 0, p.Query)
	view.TopByProfit = pipeline.TopN(rows, colProfit, rankSize)
	view.BottomByProfit = pipeline.BottomN(rows, colProfit, rankSize)
	view.Rows = pipeline.SortRows(rows, colSales, true)
	return view, nil
}

// Products drills into one category. An unknown or stale category falls
// back to the first one present; unknown sub-categories are ignored.
func (d *Dashboard) Products(ctx context.Context, c models.FilterCriteria, p ProductsParams) (view *ProductsView, err error) {
	ctx, done := d.track(ctx, "products")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}

	view = &ProductsView{
		Categories: dataset.BuildOptions(orders).Categories,
		Query:      p.Query,
	}
	view.Category = p.Category
	if !slices.Contains(view.Categories, view.Category) {
		view.Category = ""
		if len(view.Categories) > 0 {
			view.Category = view.Categories[0]
		}
	}

	inCategory := pipeline.WhereEquals(orders, models.DimCategory, view.Category)
	view.SubCategories = distinctValues(inCategory, models.DimSubCategory)
	view.SelectedSubCategories = make([]string, 0, len(p.SubCategories))
	for _, s := range p.SubCategories {
		if slices.Contains(view.SubCategories, s) && !slices.Contains(view.SelectedSubCategories, s) {
			view.SelectedSubCategories = append(view.SelectedSubCategories, s)
		}
	}

	selected := pipeline.WhereIn(inCategory, models.DimSubCategory, view.SelectedSubCategories)
	view.AvgDiscount = pipeline.Average(selected, models.MeasureDiscount)

	selected = pipeline.Search(selected, models.DimProductName, p.Query)
	view.Heatmap = discountHeatmap(selected)

	rows := pipeline.Aggregate(selected,
		[]pipeline.GroupKey{pipeline.By(models.DimProductName)},
		[]pipeline.MeasureSpec{
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.SumOf(colProfit, models.MeasureProfit),
		},
	)
	view.Alerts = pipeline.FilterRows(rows, func(r models.AggregateRow) bool {
		return r.Value(colSales) > alertSalesAbove && r.Value(colProfit) < 0
	})
	view.Rows = pipeline.SortRows(rows, colSales, true)
	return view, nil
}

// discountHeatmap pivots summed profit by product name and discount level,
// both sorted ascending.
func discountHeatmap(orders []models.Order) Heatmap {
	type cell struct {
		product  string
		discount float64
	}
	sums := make(map[cell]float64)
	products := make(map[string]struct{})
	discounts := make(map[float64]struct{})
	for _, o := range orders {
		sums[cell{o.ProductName, o.Discount}] += o.Profit
		products[o.ProductName] = struct{}{}
		discounts[o.Discount] = struct{}{}
	}

	h := Heatmap{
		Products:  sortedKeys(products),
		Discounts: sortedKeys(discounts),
	}
	h.Profit = make([][]float64, len(h.Products))
	for i, p := range h.Products {
		h.Profit[i] = make([]float64, len(h.Discounts))
		for j, disc := range h.Discounts {
			h.Profit[i][j] = sums[cell{p, disc}]
		}
	}
	return h
}

func (d *Dashboard) Trends(ctx context.Context, c models.FilterCriteria, g pipeline.Granularity) (view *TrendsView, err error) {
	ctx, done := d.track(ctx, "trends")
	defer func() { done(err) }()

	if g == "" {
		g = pipeline.Month
	}
	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}

	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.ByPeriod(g), pipeline.By(models.DimCategory)},
		[]pipeline.MeasureSpec{
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.SumOf(colProfit, models.MeasureProfit),
			pipeline.SumOf(colQuantity, models.MeasureQuantity),
		},
	)
	return &TrendsView{
		Granularity: g,
		Rows:        pipeline.SortRowsByKey(rows, 0),
	}, nil
}

// Category breaks the filtered set down by category and sub-category. Order
// size divides by the distinct orders of the whole filtered set, so the
// column sums to the overall average order size.
func (d *Dashboard) Category(ctx context.Context, c models.FilterCriteria, query string) (view *CategoryView, err error) {
	ctx, done := d.track(ctx, "category")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}

	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimCategory), pipeline.By(models.DimSubCategory)},
		[]pipeline.MeasureSpec{
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.SumOf(colProfit, models.MeasureProfit),
			pipeline.SumOf(colQuantity, models.MeasureQuantity),
		},
	)
	totalOrders := pipeline.DistinctCount(orders, models.DimOrderID)
	pipeline.WithRatio(rows, pipeline.RatioAverageOrderSize, func(r models.AggregateRow) models.NullFloat {
		return pipeline.AverageOrderSize(r.Value(colQuantity), totalOrders)
	})
	pipeline.WithRatio(rows, pipeline.RatioProfitMargin, func(r models.AggregateRow) models.NullFloat {
		return pipeline.ProfitMargin(r.Value(colProfit), r.Value(colSales))
	})

	return &CategoryView{
		Query:           query,
		AvgOrderSize:    pipeline.MeanDefined(pipeline.RatioColumn(rows, pipeline.RatioAverageOrderSize)),
		AvgProfitMargin: pipeline.MeanDefined(pipeline.RatioColumn(rows, pipeline.RatioProfitMargin)),
		Rows:            pipeline.SearchRows(rows, 1, query),
	}, nil
}

func (d *Dashboard) Location(ctx context.Context, c models.FilterCriteria) (view *LocationView, err error) {
	ctx, done := d.track(ctx, "location")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return locationView(orders), nil
}

func locationView(orders []models.Order) *LocationView {
	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimState)},
		[]pipeline.MeasureSpec{
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.SumOf(colProfit, models.MeasureProfit),
		},
	)
	return &LocationView{
		LossStates: pipeline.BottomN(rows, colProfit, lossStates),
		Rows:       pipeline.SortRows(rows, colSales, true),
	}
}

func (d *Dashboard) Shipping(ctx context.Context, c models.FilterCriteria) (view *ShippingView, err error) {
	ctx, done := d.track(ctx, "shipping")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}
	return shippingView(orders), nil
}

func shippingView(orders []models.Order) *ShippingView {
	rows := pipeline.Aggregate(orders,
		[]pipeline.GroupKey{pipeline.By(models.DimShipMode)},
		[]pipeline.MeasureSpec{
			pipeline.CountOf(colOrders),
			pipeline.SumOf(colSales, models.MeasureSales),
			pipeline.MeanOf(colQuantity, models.MeasureQuantity),
			pipeline.SumOf(colProfit, models.MeasureProfit),
		},
	)
	pipeline.WithRatio(rows, pipeline.RatioReorderRate, func(r models.AggregateRow) models.NullFloat {
		return pipeline.ReorderRate(r.Value(colOrders), r.Value(colQuantity))
	})
	return &ShippingView{Rows: rows}
}

// Overview computes the filter-driven summary views concurrently over one
// filtered slice.
func (d *Dashboard) Overview(ctx context.Context, c models.FilterCriteria) (view *Overview, err error) {
	ctx, done := d.track(ctx, "overview")
	defer func() { done(err) }()

	orders, err := d.filtered(ctx, c)
	if err != nil {
		return nil, err
	}

	view = &Overview{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		view.Home = homeView(orders)
		return ctx.Err()
	})
	g.Go(func() error {
		view.Sales = salesView(orders)
		return ctx.Err()
	})
	g.Go(func() error {
		view.Location = locationView(orders)
		return ctx.Err()
	})
	g.Go(func() error {
		view.Shipping = shippingView(orders)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// Forecast projects monthly sales for one region, category or segment
// over the whole dataset. Sidebar filters do not apply.
func (d *Dashboard) Forecast(ctx context.Context, p ForecastParams) (view *ForecastView, err error) {
	ctx, done := d.track(ctx, "forecast")
	defer func() { done(err) }()

	if p.Dimension == "" {
		p.Dimension = models.DimRegion
	}
	if p.Horizon == 0 {
		p.Horizon = d.cfg.DefaultHorizon
	}

	opts := d.snapshot().Options
	var values []string
	switch p.Dimension {
	case models.DimRegion:
		values = opts.Regions
	case models.DimCategory:
		values = opts.Categories
	case models.DimSegment:
		values = opts.Segments
	default:
		return nil, fmt.Errorf("%w: forecast dimension must be one of %s", ErrInvalidParams, forecastDimensions)
	}
	if p.Horizon < d.cfg.MinHorizon || p.Horizon > d.cfg.MaxHorizon {
		return nil, fmt.Errorf("%w: horizon must be between %d and %d months", ErrInvalidParams, d.cfg.MinHorizon, d.cfg.MaxHorizon)
	}
	if p.Value == "" && len(values) > 0 {
		p.Value = values[0]
	}
	if len(values) > 0 && !slices.Contains(values, p.Value) {
		return nil, fmt.Errorf("%w: unknown %s %q", ErrInvalidParams, p.Dimension, p.Value)
	}

	subset := pipeline.WhereEquals(d.snapshot().Orders, p.Dimension, p.Value)

	fitCtx, span := observability.StartSpan(ctx, "forecast.fit")
	span.SetTag("model", d.model.Name())
	span.SetTag(string(p.Dimension), p.Value)
	result, err := forecast.Forecast(fitCtx, d.model, forecast.MonthlySeries(subset, models.MeasureSales), p.Horizon)
	d.recorder.RecordForecast(d.model.Name(), err)
	if err != nil {
		span.SetError(err)
	}
	span.End(fitCtx, d.logger)
	if err != nil {
		return nil, err
	}

	return &ForecastView{
		Dimension:     p.Dimension,
		Value:         p.Value,
		Values:        values,
		Horizon:       p.Horizon,
		Sales:         result,
		MonthlyProfit: forecast.MonthlySeries(subset, models.MeasureProfit),
	}, nil
}

func mean(values []float64) models.NullFloat {
	return models.Float(stat.Mean(values, nil))
}

func distinctValues(orders []models.Order, d models.Dimension) []string {
	rows := pipeline.Aggregate(orders, []pipeline.GroupKey{pipeline.By(d)}, nil)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Keys[0]
	}
	return out
}

func sortedKeys[K string | float64](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
