package api

import "encoding/json"

// Operation types accepted by POST /api/v1/sync/batch.
const (
	OpCreateFlow  = "CREATE_FLOW"
	OpUpdateFlow  = "UPDATE_FLOW"
	OpDeleteFlow  = "DELETE_FLOW"
	OpCreateEntry = "CREATE_ENTRY"
	OpUpdateEntry = "UPDATE_ENTRY"
	OpDeleteEntry = "DELETE_ENTRY"
)

// Storage preferences for create operations.
const (
	StorageLocal = "local"
	StorageCloud = "cloud"
)

// Per-operation outcome statuses.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// Conflict types accepted by POST /api/v1/sync/resolve-conflicts.
const (
	ConflictTimestamp = "timestamp_conflict"
	ConflictData      = "data_conflict"
	ConflictDeletion  = "deletion_conflict"
)

// Operation is a single client-intended mutation submitted in a sync batch.
// Payload shape depends on OpType and is validated server-side before apply.
type Operation struct {
	IdempotencyKey    string          `json:"idempotency_key"`
	OpType            string          `json:"op_type"`
	Payload           json.RawMessage `json:"payload"`
	TempID            string          `json:"temp_id,omitempty"`
	StoragePreference string          `json:"storage_preference,omitempty"`
}

// BatchSyncRequest is the body of POST /api/v1/sync/batch.
type BatchSyncRequest struct {
	Operations []Operation `json:"operations"`
}

// OperationResult reports the outcome of one operation, in submission order.
// ServerID is empty when the operation failed.
type OperationResult struct {
	TempID   string `json:"temp_id,omitempty"`
	ServerID string `json:"server_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// BatchSyncData is the data portion of a batch sync response.
type BatchSyncData struct {
	Results []OperationResult `json:"results"`
}

// BatchSyncResponse is the envelope returned by POST /api/v1/sync/batch.
// On a batch-fatal failure Success is false and Results holds whatever
// partial outcomes were computed before the failure.
type BatchSyncResponse struct {
	Data    BatchSyncData `json:"data"`
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
	Success bool          `json:"success"`
}

// Conflict is a client-detected divergence between local and server state
// for one entity.
type Conflict struct {
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	LocalData    json.RawMessage `json:"local_data"`
	ServerData   json.RawMessage `json:"server_data"`
	ConflictType string          `json:"conflict_type"`
}

// ResolveConflictsRequest is the body of POST /api/v1/sync/resolve-conflicts.
type ResolveConflictsRequest struct {
	Conflicts []Conflict `json:"conflicts"`
}

// ConflictResolution reports the outcome of resolving one conflict.
type ConflictResolution struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Resolution string `json:"resolution,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// ResolveConflictsData is the data portion of a resolve-conflicts response.
type ResolveConflictsData struct {
	Resolutions []ConflictResolution `json:"resolutions"`
}

// ResolveConflictsResponse is the envelope returned by resolve-conflicts.
type ResolveConflictsResponse struct {
	Data    ResolveConflictsData `json:"data"`
	Message string               `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
	Success bool                 `json:"success"`
}
