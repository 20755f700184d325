package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/metrics"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testOrders spans 2022-2023 with one West/Furniture and one East/Technology
// order per month.
func testOrders() []models.Order {
	orders := make([]models.Order, 0, 48)
	for m := 0; m < 24; m++ {
		on := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC).AddDate(0, m, 0)
		period := on.Format("2006-01")
		orders = append(orders,
			models.Order{
				OrderID: fmt.Sprintf("W-%d", m), OrderDate: on, OrderPeriod: period,
				CustomerName: fmt.Sprintf("Customer %d", m%5), Region: "West", State: "California",
				Category: "Furniture", SubCategory: "Chairs", Segment: "Consumer", ShipMode: "Standard Class",
				ProductName: "Task Chair", Sales: 1000 + 20*float64(m), Profit: 100, Quantity: 2, Discount: 0.1,
			},
			models.Order{
				OrderID: fmt.Sprintf("E-%d", m), OrderDate: on, OrderPeriod: period,
				CustomerName: fmt.Sprintf("Customer %d", m%7), Region: "East", State: "New York",
				Category: "Technology", SubCategory: "Phones", Segment: "Corporate", ShipMode: "First Class",
				ProductName: "Desk Phone", Sales: 500, Profit: -20, Quantity: 1, Discount: 0,
			},
		)
	}
	return orders
}

func newTestDashboard(t *testing.T, orders []models.Order) *services.Dashboard {
	t.Helper()

	d, err := services.NewDashboard(config.ForecastConfig{
		Model:          "additive",
		DefaultHorizon: 6,
		MinHorizon:     3,
		MaxHorizon:     12,
		SeasonalOrder:  3,
	}, nil, metrics.New(), testLogger())
	if err != nil {
		t.Fatalf("NewDashboard() error = %v", err)
	}
	d.SetData(orders)
	return d
}

func newAPIMux(t *testing.T, orders []models.Order) *http.ServeMux {
	t.Helper()

	h := NewAPIHandlers(newTestDashboard(t, orders), testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /admin/stats", h.HandleStats)
	mux.HandleFunc("GET /api/options", h.HandleOptions)
	mux.HandleFunc("GET /api/{view}", h.HandleView)
	return mux
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func TestAPIHandlers_HandleView(t *testing.T) {
	mux := newAPIMux(t, testOrders())

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantCode   string
		wantData   string
	}{
		{"home", "/api/home", http.StatusOK, "", `"records":48`},
		{"home filtered", "/api/home?region=West", http.StatusOK, "", `"records":24`},
		{"home empty selection", "/api/home?region=", http.StatusOK, "", `"records":0`},
		{"home date range", "/api/home?start=2023-01-01&end=2023-01-31", http.StatusOK, "", `"records":2`},
		{"sales", "/api/sales", http.StatusOK, "", `"by_region"`},
		{"customers high", "/api/customers?tier=high", http.StatusOK, "", `"tier":"high"`},
		{"products", "/api/products?product_category=Technology", http.StatusOK, "", `"category":"Technology"`},
		{"trends", "/api/trends?granularity=quarter", http.StatusOK, "", `"granularity":"quarter"`},
		{"category", "/api/category?q=chair", http.StatusOK, "", `"avg_order_size"`},
		{"location", "/api/location", http.StatusOK, "", `"loss_states"`},
		{"shipping", "/api/shipping", http.StatusOK, "", `"reorder_rate"`},
		{"forecast", "/api/forecast?dimension=category&value=Technology&horizon=3", http.StatusOK, "", `"horizon":3`},
		{"unknown view", "/api/profit", http.StatusNotFound, "NOT_FOUND", ""},
		{"bad tier", "/api/customers?tier=vip", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"bad granularity", "/api/trends?granularity=week", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"bad date", "/api/home?start=01/02/2023", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"horizon too large", "/api/forecast?horizon=24", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"horizon not a number", "/api/forecast?horizon=six", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"bad dimension", "/api/forecast?dimension=state", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"unknown forecast value", "/api/forecast?value=Mars", http.StatusBadRequest, "VALIDATION_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %q", ct)
			}

			env := decodeEnvelope(t, w)
			if tt.wantCode != "" {
				if env.Success || env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("Expected error code %s, got %s", tt.wantCode, w.Body.String())
				}
				return
			}
			if !env.Success {
				t.Errorf("Expected success, got %s", w.Body.String())
			}
			if !strings.Contains(string(env.Data), tt.wantData) {
				t.Errorf("Expected data to contain %s, got %s", tt.wantData, env.Data)
			}
			if cc := w.Header().Get("Cache-Control"); cc != cacheControl {
				t.Errorf("Expected Cache-Control %q, got %q", cacheControl, cc)
			}
		})
	}
}

func TestAPIHandlers_ForecastInsufficientData(t *testing.T) {
	orders := testOrders()[:2]
	mux := newAPIMux(t, orders)

	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d: %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != "INSUFFICIENT_DATA" {
		t.Errorf("Expected INSUFFICIENT_DATA, got %s", w.Body.String())
	}
}

func TestAPIHandlers_CustomersUndefinedKPIs(t *testing.T) {
	mux := newAPIMux(t, testOrders())

	req := httptest.NewRequest(http.MethodGet, "/api/customers?segment=", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Data services.CustomersView `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if body.Data.AvgOrderValue.Valid || body.Data.HighValueThreshold.Valid {
		t.Errorf("Expected null KPIs for an empty selection, got %+v", body.Data)
	}
	if !strings.Contains(w.Body.String(), `"avg_order_value":null`) {
		t.Errorf("Expected avg_order_value to encode as null, got %s", w.Body.String())
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	mux := newAPIMux(t, testOrders())

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Data models.Options `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(body.Data.Regions) != 2 || body.Data.Regions[0] != "West" {
		t.Errorf("Expected regions [West East], got %v", body.Data.Regions)
	}
	if body.Data.MinDate.Format(time.DateOnly) != "2022-01-10" {
		t.Errorf("Expected min date 2022-01-10, got %s", body.Data.MinDate)
	}
}

func TestAPIHandlers_HealthAndStats(t *testing.T) {
	mux := newAPIMux(t, testOrders())

	tests := []struct {
		url      string
		contains string
	}{
		{"/health", `"status":"healthy"`},
		{"/health", `"records":48`},
		{"/admin/stats", `"record_count":48`},
		{"/admin/stats", `"forecast_model":"additive trend + yearly seasonality"`},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", tt.url, w.Code)
		}
		if !strings.Contains(w.Body.String(), tt.contains) {
			t.Errorf("%s: expected body to contain %s, got %s", tt.url, tt.contains, w.Body.String())
		}
	}
}

func BenchmarkAPIHandlers_Customers(b *testing.B) {
	d, err := services.NewDashboard(config.ForecastConfig{
		Model: "additive", DefaultHorizon: 6, MinHorizon: 3, MaxHorizon: 12, SeasonalOrder: 3,
	}, nil, metrics.New(), testLogger())
	if err != nil {
		b.Fatal(err)
	}
	d.SetData(testOrders())
	h := NewAPIHandlers(d, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{view}", h.HandleView)

	for b.Loop() {
		req := httptest.NewRequest(http.MethodGet, "/api/customers?tier=high", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
	}
}
