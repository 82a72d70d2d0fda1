package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

// EntityRef identifies the entity an operation produced or touched.
type EntityRef struct {
	ID string
}

// Payload shapes per operation type. Pointer fields on updates
// distinguish "absent" from "zero" so only submitted fields are merged.
type createFlowPayload struct {
	Title        string `json:"title"`
	Color        string `json:"color"`
	TrackingType string `json:"tracking_type"`
	Archived     bool   `json:"archived"`
}

type updateFlowPayload struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	Color        *string `json:"color"`
	TrackingType *string `json:"tracking_type"`
	Archived     *bool   `json:"archived"`
}

type createEntryPayload struct {
	FlowID    string `json:"flow_id"`
	EntryDate string `json:"entry_date"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

type updateEntryPayload struct {
	ID        string  `json:"id"`
	FlowID    *string `json:"flow_id"`
	EntryDate *string `json:"entry_date"`
	Status    *string `json:"status"`
	Note      *string `json:"note"`
}

type deletePayload struct {
	ID string `json:"id"`
}

// Applier executes a single validated operation against the store,
// independent of batching concerns.
type Applier struct {
	now func() time.Time
}

// NewApplier creates an applier using wall-clock time.
func NewApplier() *Applier {
	return &Applier{now: time.Now}
}

// Apply executes op for userID and returns the resulting entity reference.
// Operations with the local storage preference never touch persistence:
// the temp id is echoed back as the server id.
func (a *Applier) Apply(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	switch op.OpType {
	case models.OpCreateFlow:
		return a.createFlow(ctx, store, userID, op)
	case models.OpUpdateFlow:
		return a.updateFlow(ctx, store, userID, op)
	case models.OpDeleteFlow:
		return a.deleteFlow(ctx, store, userID, op)
	case models.OpCreateEntry:
		return a.createEntry(ctx, store, userID, op)
	case models.OpUpdateEntry:
		return a.updateEntry(ctx, store, userID, op)
	case models.OpDeleteEntry:
		return a.deleteEntry(ctx, store, userID, op)
	default:
		return EntityRef{}, fmt.Errorf("unknown op_type %q", op.OpType)
	}
}

func (a *Applier) createFlow(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p createFlowPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	if op.LocalOnly() {
		return EntityRef{ID: op.TempID}, nil
	}

	now := a.now()
	flow := &models.Flow{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        p.Title,
		Color:        p.Color,
		TrackingType: p.TrackingType,
		Archived:     p.Archived,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if flow.TrackingType == "" {
		flow.TrackingType = models.TrackingBinary
	}

	if err := store.CreateFlow(ctx, flow); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: flow.ID}, nil
}

func (a *Applier) updateFlow(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p updateFlowPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	flow, err := store.GetFlow(ctx, userID, p.ID)
	if err != nil {
		return EntityRef{}, err
	}
	if flow.Deleted() {
		return EntityRef{}, storage.ErrFlowNotFound
	}

	if p.Title != nil {
		flow.Title = *p.Title
	}
	if p.Color != nil {
		flow.Color = *p.Color
	}
	if p.TrackingType != nil {
		flow.TrackingType = *p.TrackingType
	}
	if p.Archived != nil {
		flow.Archived = *p.Archived
	}
	flow.UpdatedAt = a.now()

	if err := store.UpdateFlow(ctx, flow); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: flow.ID}, nil
}

func (a *Applier) deleteFlow(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p deletePayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	flow, err := store.GetFlow(ctx, userID, p.ID)
	if err != nil {
		return EntityRef{}, err
	}

	// Re-deleting a tombstone succeeds so batch replays stay safe
	if flow.Deleted() {
		return EntityRef{ID: flow.ID}, nil
	}

	if err := store.SoftDeleteFlow(ctx, userID, p.ID, a.now()); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: p.ID}, nil
}

func (a *Applier) createEntry(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p createEntryPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	if op.LocalOnly() {
		return EntityRef{ID: op.TempID}, nil
	}

	// The referenced flow must exist and be live. Entries created against
	// a flow from the same batch work because the client substitutes the
	// server id it learned from the earlier result.
	flow, err := store.GetFlow(ctx, userID, p.FlowID)
	if err != nil {
		return EntityRef{}, err
	}
	if flow.Deleted() {
		return EntityRef{}, storage.ErrFlowNotFound
	}

	now := a.now()
	entry := &models.FlowEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		FlowID:    p.FlowID,
		EntryDate: p.EntryDate,
		Status:    p.Status,
		Note:      p.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.CreateEntry(ctx, entry); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: entry.ID}, nil
}

func (a *Applier) updateEntry(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p updateEntryPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	entry, err := store.GetEntry(ctx, userID, p.ID)
	if err != nil {
		return EntityRef{}, err
	}
	if entry.Deleted() {
		return EntityRef{}, storage.ErrEntryNotFound
	}

	if p.FlowID != nil {
		entry.FlowID = *p.FlowID
	}
	if p.EntryDate != nil {
		entry.EntryDate = *p.EntryDate
	}
	if p.Status != nil {
		entry.Status = *p.Status
	}
	if p.Note != nil {
		entry.Note = *p.Note
	}
	entry.UpdatedAt = a.now()

	if err := store.UpdateEntry(ctx, entry); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: entry.ID}, nil
}

func (a *Applier) deleteEntry(ctx context.Context, store storage.SyncStore, userID string, op *models.Operation) (EntityRef, error) {
	var p deletePayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return EntityRef{}, fmt.Errorf("decode payload: %w", err)
	}

	entry, err := store.GetEntry(ctx, userID, p.ID)
	if err != nil {
		return EntityRef{}, err
	}

	if entry.Deleted() {
		return EntityRef{ID: entry.ID}, nil
	}

	if err := store.SoftDeleteEntry(ctx, userID, p.ID, a.now()); err != nil {
		return EntityRef{}, err
	}

	return EntityRef{ID: p.ID}, nil
}
