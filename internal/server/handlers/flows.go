package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
	"flowsync/pkg/api"
)

// FlowsHandler serves read endpoints for flows and their entries.
type FlowsHandler struct {
	logger  *slog.Logger
	storage storage.FlowStorage
}

// NewFlowsHandler creates a new flows handler.
func NewFlowsHandler(logger *slog.Logger, storage storage.FlowStorage) *FlowsHandler {
	return &FlowsHandler{
		logger:  logger,
		storage: storage,
	}
}

// List handles GET /api/v1/flows. Tombstoned flows are excluded.
func (h *FlowsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flows, err := h.storage.ListFlows(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list flows",
			slog.String("user_id", userID),
			slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.FlowListResponse{Flows: make([]api.Flow, 0, len(flows))}
	for _, f := range flows {
		resp.Flows = append(resp.Flows, toAPIFlow(f))
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Changes handles GET /api/v1/flows/changes?since=N where N is a unix
// timestamp. Tombstones are included so clients can reconcile deletions.
func (h *FlowsHandler) Changes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		var err error
		since, err = strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.logger.WarnContext(ctx, "invalid since parameter", slog.String("since", sinceStr))
			h.sendError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
	}

	flows, err := h.storage.FlowsChangedSince(ctx, userID, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get changed flows", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	entries, err := h.storage.EntriesChangedSince(ctx, userID, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get changed entries", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ChangesResponse{
		Flows:            make([]api.Flow, 0, len(flows)),
		Entries:          make([]api.FlowEntry, 0, len(entries)),
		CurrentTimestamp: since,
	}

	for _, f := range flows {
		resp.Flows = append(resp.Flows, toAPIFlow(f))
		if ts := f.UpdatedAt.Unix(); ts > resp.CurrentTimestamp {
			resp.CurrentTimestamp = ts
		}
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toAPIEntry(e))
		if ts := e.UpdatedAt.Unix(); ts > resp.CurrentTimestamp {
			resp.CurrentTimestamp = ts
		}
	}

	h.logger.InfoContext(ctx, "changes request completed",
		slog.String("user_id", userID),
		slog.Int64("since", since),
		slog.Int("flows", len(resp.Flows)),
		slog.Int("entries", len(resp.Entries)))

	h.sendJSON(w, resp, http.StatusOK)
}

func toAPIFlow(f *models.Flow) api.Flow {
	return api.Flow{
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
		DeletedAt:    f.DeletedAt,
		ID:           f.ID,
		Title:        f.Title,
		Color:        f.Color,
		TrackingType: f.TrackingType,
		Archived:     f.Archived,
	}
}

func toAPIEntry(e *models.FlowEntry) api.FlowEntry {
	return api.FlowEntry{
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		DeletedAt: e.DeletedAt,
		ID:        e.ID,
		FlowID:    e.FlowID,
		EntryDate: e.EntryDate,
		Status:    e.Status,
		Note:      e.Note,
	}
}

func (h *FlowsHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func (h *FlowsHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
