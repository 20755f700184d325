package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/export"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/services"
)

type ExportHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
}

func NewExportHandlers(dashboard *services.Dashboard, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// HandleExport serves GET /export/{file} where file is "<view>.csv" or
// "<view>.xlsx". The table is the one the view displays, with the same
// query parameters applied.
func (h *ExportHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	ext := path.Ext(file)

	format, err := export.ParseFormat(strings.TrimPrefix(ext, "."))
	if err != nil {
		h.writeError(w, r, errors.NotFound(err.Error()))
		return
	}
	v, ok := ParseView(strings.TrimSuffix(file, ext))
	if !ok {
		h.writeError(w, r, errors.NotFound(fmt.Sprintf("unknown view %q", strings.TrimSuffix(file, ext))))
		return
	}

	data, err := computeView(r.Context(), h.dashboard, v, r.URL.Query())
	if err != nil {
		h.writeError(w, r, toAppError(err))
		return
	}

	// Encode fully before writing headers so a failure can still report JSON.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, data.Table()); err != nil {
		h.writeError(w, r, errors.InternalWrap(err, "Failed to encode export"))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(v)+"."+string(format)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		observability.LoggerFor(r.Context(), h.logger).Warn("write export", "view", v, "error", err)
	}
}

func (h *ExportHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := observability.GetRequestID(r.Context())
	errors.WriteError(w, observability.LoggerFor(r.Context(), h.logger), err, requestID)
}
