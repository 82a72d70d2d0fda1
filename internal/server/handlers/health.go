package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger  *slog.Logger
	version string
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(logger *slog.Logger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		version: version,
	}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health handles GET /api/v1/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
