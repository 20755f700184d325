package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/dataset"
	"superstore-dashboard/internal/handlers"
	"superstore-dashboard/internal/metrics"
	"superstore-dashboard/internal/middleware"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/server"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

var navLabels = map[handlers.View]string{
	handlers.ViewHome:      "Home",
	handlers.ViewSales:     "Sales",
	handlers.ViewCustomers: "Customers",
	handlers.ViewProducts:  "Products",
	handlers.ViewTrends:    "Trends",
	handlers.ViewCategory:  "Category",
	handlers.ViewLocation:  "Location",
	handlers.ViewShipping:  "Shipping",
	handlers.ViewForecast:  "Forecast",
}

func dashboardHandler(dashboard *services.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		nav := make([]templates.NavItem, 0, len(handlers.Views))
		for _, v := range handlers.Views {
			nav = append(nav, templates.NavItem{View: string(v), Label: navLabels[v]})
		}

		page := templates.Dashboard(templates.PageData{
			Title:          "Superstore BI Dashboard",
			Nav:            nav,
			Options:        dashboard.Options(),
			DefaultHorizon: dashboard.ForecastConfig().DefaultHorizon,
		})

		w.Header().Set("Cache-Control", cacheMaxAge)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// newHandler assembles the routed server behind the middleware chain.
func newHandler(cfg *config.Config, dashboard *services.Dashboard, recorder *metrics.Recorder, logger *slog.Logger) http.Handler {
	srv := server.NewServer(dashboard, recorder, cfg.Metrics, logger, &server.TemplateHandlers{
		Dashboard: dashboardHandler(dashboard),
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(recorder),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"csv_file", cfg.Dataset.CSVFile,
		"forecast_model", cfg.Forecast.Model,
		"addr", cfg.Address(),
	)

	recorder := metrics.New()
	loader := dataset.NewLoader(cfg.Dataset.CacheDir, logger)

	dashboard, err := services.NewDashboard(cfg.Forecast, loader, recorder, logger)
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.LoadTimeout)
	defer cancel()

	start := time.Now()
	if err := dashboard.LoadFromCSV(ctx, cfg.Dataset.CSVFile); err != nil {
		logger.Error("failed to load CSV data", "error", err)
		os.Exit(1)
	}
	logger.Info("CSV data loaded successfully",
		"duration", time.Since(start),
		"records", dashboard.Stats().RecordCount,
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, dashboard, recorder, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down dashboard service", "records", dashboard.Stats().RecordCount)
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
