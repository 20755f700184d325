package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/forecast"
	"superstore-dashboard/internal/services"
)

// View names a dashboard page. The same name is used by the JSON, SSE and
// export routes.
type View string

const (
	ViewHome      View = "home"
	ViewSales     View = "sales"
	ViewCustomers View = "customers"
	ViewProducts  View = "products"
	ViewTrends    View = "trends"
	ViewCategory  View = "category"
	ViewLocation  View = "location"
	ViewShipping  View = "shipping"
	ViewForecast  View = "forecast"
)

// Views lists every dashboard page in navigation order.
var Views = []View{
	ViewHome, ViewSales, ViewCustomers, ViewProducts, ViewTrends,
	ViewCategory, ViewLocation, ViewShipping, ViewForecast,
}

func ParseView(s string) (View, bool) {
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// tabular is implemented by every view result.
type tabular interface {
	Table() export.Table
}

// computeView parses the query for view v and computes it.
func computeView(ctx context.Context, d *services.Dashboard, v View, q url.Values) (tabular, error) {
	if v == ViewForecast {
		var req ForecastRequest
		if err := bindQuery(q, &req); err != nil {
			return nil, err
		}
		return d.Forecast(ctx, req.params())
	}

	criteria, err := parseCriteria(q, d.DefaultCriteria())
	if err != nil {
		return nil, err
	}

	switch v {
	case ViewHome:
		return d.Home(ctx, criteria)
	case ViewSales:
		return d.Sales(ctx, criteria)
	case ViewCustomers:
		var req CustomersRequest
		if err := bindQuery(q, &req); err != nil {
			return nil, err
		}
		return d.Customers(ctx, criteria, req.params())
	case ViewProducts:
		var req ProductsRequest
		if err := bindQuery(q, &req); err != nil {
			return nil, err
		}
		return d.Products(ctx, criteria, req.params())
	case ViewTrends:
		var req TrendsRequest
		if err := bindQuery(q, &req); err != nil {
			return nil, err
		}
		g, err := parseGranularity(req.Granularity)
		if err != nil {
			return nil, err
		}
		return d.Trends(ctx, criteria, g)
	case ViewCategory:
		var req CategoryRequest
		if err := bindQuery(q, &req); err != nil {
			return nil, err
		}
		return d.Category(ctx, criteria, req.Query)
	case ViewLocation:
		return d.Location(ctx, criteria)
	case ViewShipping:
		return d.Shipping(ctx, criteria)
	default:
		return nil, errors.NotFound(fmt.Sprintf("unknown view %q", v))
	}
}

// toAppError maps service and engine errors onto API error codes.
func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	switch {
	case stderrors.Is(err, forecast.ErrInsufficientData):
		return errors.InsufficientData(err, "Not enough monthly history to fit a forecast")
	case stderrors.Is(err, forecast.ErrInvalidHorizon), stderrors.Is(err, services.ErrInvalidParams):
		return errors.ValidationWrap(err, err.Error())
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeServiceUnavail, "Request was cancelled before the view was computed")
	default:
		return errors.InternalWrap(err, "Failed to compute view")
	}
}

func viewFromPath(r *http.Request) (View, error) {
	name := r.PathValue("view")
	v, ok := ParseView(name)
	if !ok {
		return "", errors.NotFound(fmt.Sprintf("unknown view %q", name))
	}
	return v, nil
}
