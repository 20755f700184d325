package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/services"
)

const cacheControl = "private, max-age=60"

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// HandleView serves GET /api/{view}.
func (h *APIHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	v, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := computeView(r.Context(), h.dashboard, v, r.URL.Query())
	if err != nil {
		h.writeError(w, r, toAppError(err))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.dashboard.Options(), map[string]string{
		"Cache-Control": "public, max-age=300",
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"records":   h.dashboard.Stats().RecordCount,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := observability.GetRequestID(r.Context())
	errors.WriteError(w, observability.LoggerFor(r.Context(), h.logger), err, requestID)
}
