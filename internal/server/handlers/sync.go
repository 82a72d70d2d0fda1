package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"flowsync/internal/models"
	syncsvc "flowsync/internal/server/sync"
	"flowsync/pkg/api"
)

// contextKey is the type for request context keys.
type contextKey string

const (
	// UserIDKey keys the authenticated user id in the request context.
	UserIDKey contextKey = "user_id"
	// UsernameKey keys the authenticated username in the request context.
	UsernameKey contextKey = "username"
)

// GetUserID extracts the authenticated user id from the request context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername extracts the authenticated username from the request context.
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// BatchProcessor applies a batch of operations for a user.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, userID string, ops []models.Operation) ([]models.BatchResult, error)
}

// ConflictResolver resolves client-reported conflicts for a user.
type ConflictResolver interface {
	Resolve(ctx context.Context, userID string, conflicts []models.Conflict) []models.ResolvedConflict
}

// SyncHandler handles batch sync and conflict resolution requests.
type SyncHandler struct {
	logger       *slog.Logger
	processor    BatchProcessor
	resolver     ConflictResolver
	maxBatchSize int
	batchTimeout time.Duration
}

// NewSyncHandler creates a new sync handler. maxBatchSize bounds how many
// operations one request may carry; batchTimeout bounds how long a batch may
// hold its transaction.
func NewSyncHandler(logger *slog.Logger, processor BatchProcessor, resolver ConflictResolver, maxBatchSize int, batchTimeout time.Duration) *SyncHandler {
	return &SyncHandler{
		logger:       logger,
		processor:    processor,
		resolver:     resolver,
		maxBatchSize: maxBatchSize,
		batchTimeout: batchTimeout,
	}
}

// HandleBatch handles POST /api/v1/sync/batch.
func (h *SyncHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.BatchSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode batch request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Operations) > h.maxBatchSize {
		h.logger.WarnContext(ctx, "batch too large",
			slog.String("user_id", userID),
			slog.Int("operations", len(req.Operations)),
			slog.Int("max", h.maxBatchSize))
		h.sendError(w, fmt.Sprintf("batch exceeds maximum size of %d operations", h.maxBatchSize), http.StatusBadRequest)
		return
	}

	ops := make([]models.Operation, 0, len(req.Operations))
	for _, op := range req.Operations {
		ops = append(ops, models.Operation{
			IdempotencyKey:    op.IdempotencyKey,
			OpType:            op.OpType,
			Payload:           op.Payload,
			TempID:            op.TempID,
			StoragePreference: op.StoragePreference,
		})
	}

	batchCtx, cancel := context.WithTimeout(ctx, h.batchTimeout)
	defer cancel()

	results, err := h.processor.ProcessBatch(batchCtx, userID, ops)
	if err != nil {
		if errors.Is(err, syncsvc.ErrBatchTransaction) {
			// nothing was committed; return the partial results so the
			// client can see how far processing got before retrying
			h.logger.ErrorContext(ctx, "batch transaction failed",
				slog.String("user_id", userID),
				slog.Any("error", err))
			h.sendJSON(w, api.BatchSyncResponse{
				Data:    api.BatchSyncData{Results: toAPIResults(results)},
				Error:   "batch transaction failed",
				Success: false,
			}, http.StatusInternalServerError)
			return
		}
		h.logger.ErrorContext(ctx, "batch processing failed", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.BatchSyncResponse{
		Data:    api.BatchSyncData{Results: toAPIResults(results)},
		Message: fmt.Sprintf("processed %d operations", len(results)),
		Success: true,
	}, http.StatusOK)
}

// HandleResolveConflicts handles POST /api/v1/sync/resolve-conflicts.
func (h *SyncHandler) HandleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user id not found in context")
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.ResolveConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode resolve request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	conflicts := make([]models.Conflict, 0, len(req.Conflicts))
	for _, c := range req.Conflicts {
		conflicts = append(conflicts, models.Conflict{
			EntityType:   c.EntityType,
			EntityID:     c.EntityID,
			LocalData:    c.LocalData,
			ServerData:   c.ServerData,
			ConflictType: c.ConflictType,
		})
	}

	resolved := h.resolver.Resolve(ctx, userID, conflicts)

	resolutions := make([]api.ConflictResolution, 0, len(resolved))
	for _, res := range resolved {
		resolutions = append(resolutions, api.ConflictResolution{
			EntityType: res.EntityType,
			EntityID:   res.EntityID,
			Resolution: res.Resolution,
			Status:     res.Status,
			Error:      res.Error,
		})
	}

	h.sendJSON(w, api.ResolveConflictsResponse{
		Data:    api.ResolveConflictsData{Resolutions: resolutions},
		Message: fmt.Sprintf("resolved %d conflicts", len(resolutions)),
		Success: true,
	}, http.StatusOK)
}

func toAPIResults(results []models.BatchResult) []api.OperationResult {
	out := make([]api.OperationResult, 0, len(results))
	for _, res := range results {
		out = append(out, api.OperationResult{
			TempID:   res.TempID,
			ServerID: res.ServerID,
			Status:   res.Status,
			Error:    res.Error,
		})
	}
	return out
}

func (h *SyncHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func (h *SyncHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
