// Package metrics exposes Prometheus instruments for HTTP traffic, dashboard
// computations and forecasts.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "superstore"

// Recorder owns its registry so several recorders can coexist in one
// process.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	viewDuration    *prometheus.HistogramVec
	viewErrors      *prometheus.CounterVec
	forecastsTotal  *prometheus.CounterVec
	datasetRows     prometheus.Gauge
	datasetLoadTime prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method", "class"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests",
			},
		),
		viewDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "view_duration_seconds",
				Help:      "Time spent computing a dashboard view",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		viewErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_errors_total",
				Help:      "Dashboard view computations that failed",
			},
			[]string{"view", "code"},
		),
		forecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecasts_total",
				Help:      "Forecasts produced, by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		datasetRows: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Orders held in the active dataset",
			},
		),
		datasetLoadTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_loaded_timestamp_seconds",
				Help:      "Unix time the active dataset was loaded",
			},
		),
	}
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveRequest(route, method string, status int, d time.Duration) {
	r.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(route, method, statusClass(status)).Observe(d.Seconds())
}

func (r *Recorder) RequestStarted() { r.inFlight.Inc() }

func (r *Recorder) RequestFinished() { r.inFlight.Dec() }

func (r *Recorder) ObserveView(view string, d time.Duration) {
	r.viewDuration.WithLabelValues(view).Observe(d.Seconds())
}

func (r *Recorder) RecordViewError(view, code string) {
	r.viewErrors.WithLabelValues(view, code).Inc()
}

func (r *Recorder) RecordForecast(model string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.forecastsTotal.WithLabelValues(model, outcome).Inc()
}

func (r *Recorder) SetDataset(rows int, loadedAt time.Time) {
	r.datasetRows.Set(float64(rows))
	r.datasetLoadTime.Set(float64(loadedAt.Unix()))
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
