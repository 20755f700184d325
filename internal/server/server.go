package server

import (
	"log/slog"
	"net/http"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/handlers"
	"superstore-dashboard/internal/metrics"
	"superstore-dashboard/internal/services"
)

type Server struct {
	dashboard      *services.Dashboard
	mux            *http.ServeMux
	logger         *slog.Logger
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	exportHandlers *handlers.ExportHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(dashboard *services.Dashboard, recorder *metrics.Recorder, cfg config.MetricsConfig, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		dashboard:      dashboard,
		mux:            http.NewServeMux(),
		logger:         logger,
		apiHandlers:    handlers.NewAPIHandlers(dashboard, logger),
		sseHandlers:    handlers.NewSSEHandlers(dashboard, logger),
		exportHandlers: handlers.NewExportHandlers(dashboard, logger),
	}
	s.setupRoutes(templateHandlers)
	if cfg.Enabled && recorder != nil {
		s.mux.Handle("GET "+cfg.Path, recorder.Handler())
	}
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("GET /api/{view}", s.apiHandlers.HandleView)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/overview", s.sseHandlers.HandleOverview)
	s.mux.HandleFunc("GET /sse/{view}", s.sseHandlers.HandleView)

	// Table downloads, /export/{view}.csv or /export/{view}.xlsx
	s.mux.HandleFunc("GET /export/{file}", s.exportHandlers.HandleExport)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
