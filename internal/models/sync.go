package models

import (
	"encoding/json"
	"time"
)

// Operation types for batch sync.
const (
	OpCreateFlow  = "CREATE_FLOW"
	OpUpdateFlow  = "UPDATE_FLOW"
	OpDeleteFlow  = "DELETE_FLOW"
	OpCreateEntry = "CREATE_ENTRY"
	OpUpdateEntry = "UPDATE_ENTRY"
	OpDeleteEntry = "DELETE_ENTRY"
)

// Storage preferences. StorageLocal marks an operation the server must not
// persist: it echoes the temp id back and only the ledger records it.
const (
	StorageLocal = "local"
	StorageCloud = "cloud"
)

// Result statuses for one operation in a batch.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// Conflict types.
const (
	ConflictTimestamp = "timestamp_conflict"
	ConflictData      = "data_conflict"
	ConflictDeletion  = "deletion_conflict"
)

// Entity types referenced by conflicts.
const (
	EntityFlow  = "flow"
	EntityEntry = "entry"
)

// Operation is one client-intended mutation inside a batch.
type Operation struct {
	IdempotencyKey    string          `json:"idempotency_key"`
	OpType            string          `json:"op_type"`
	Payload           json.RawMessage `json:"payload"`
	TempID            string          `json:"temp_id,omitempty"`
	StoragePreference string          `json:"storage_preference,omitempty"`
}

// LocalOnly reports whether the server must skip persistence for this operation.
func (op *Operation) LocalOnly() bool {
	return op.StoragePreference == StorageLocal
}

// LedgerEntry is the durable record of an applied operation, keyed by
// (user id, idempotency key). At most one entry ever exists per key; a replay
// returns the recorded response without re-executing the mutation.
type LedgerEntry struct {
	CreatedAt       time.Time       `json:"created_at"`
	UserID          string          `json:"user_id"`
	IdempotencyKey  string          `json:"idempotency_key"`
	OperationType   string          `json:"operation_type"`
	RequestPayload  json.RawMessage `json:"request_payload"`
	ResponsePayload json.RawMessage `json:"response_payload"`
}

// LedgerResponse is the serialized outcome stored in a ledger entry.
type LedgerResponse struct {
	ServerID string `json:"server_id"`
	Status   string `json:"status"`
}

// BatchResult is the per-operation outcome returned to the client.
// The result list always has exactly one element per submitted operation,
// in submission order.
type BatchResult struct {
	TempID   string `json:"temp_id,omitempty"`
	ServerID string `json:"server_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Conflict is a client-detected divergence between local and server state.
// Conflicts are never persisted themselves; only the resolution's effect on
// the underlying entity is.
type Conflict struct {
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	LocalData    json.RawMessage `json:"local_data"`
	ServerData   json.RawMessage `json:"server_data"`
	ConflictType string          `json:"conflict_type"`
}

// Resolution outcomes.
const (
	ResolutionLocalWins  = "local_wins"
	ResolutionServerWins = "server_wins"
	ResolutionMerged     = "merged"
	ResolutionDeleted    = "deleted"
)

// ResolvedConflict reports the outcome of resolving one conflict.
type ResolvedConflict struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Resolution string `json:"resolution,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Newer reports whether timestamp a beats timestamp b under last-writer-wins.
// Ties go to b (the incumbent), so replays are stable.
func Newer(a, b time.Time) bool {
	return a.After(b)
}
