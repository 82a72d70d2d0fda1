package storage

import (
	"context"
	"time"

	"flowsync/internal/models"
)

// FlowStorage defines interface for flow and entry persistence.
// Every method is scoped by user id: no call reads or mutates another
// user's rows.
type FlowStorage interface {
	// CreateFlow inserts a new flow owned by flow.UserID
	CreateFlow(ctx context.Context, flow *models.Flow) error

	// GetFlow retrieves a flow by id, including soft-deleted rows
	// (callers check Deleted() to distinguish tombstones).
	// Returns ErrFlowNotFound if the row is absent or owned by someone else
	GetFlow(ctx context.Context, userID, id string) (*models.Flow, error)

	// ListFlows retrieves all non-deleted flows for a user
	ListFlows(ctx context.Context, userID string) ([]*models.Flow, error)

	// UpdateFlow persists the full flow row by (UserID, ID)
	// Returns ErrFlowNotFound if the row is absent
	UpdateFlow(ctx context.Context, flow *models.Flow) error

	// SoftDeleteFlow marks the flow deleted at the given time.
	// Returns ErrFlowNotFound if the row is absent; deleting an already
	// deleted flow is a no-op, not an error
	SoftDeleteFlow(ctx context.Context, userID, id string, at time.Time) error

	// FlowsChangedSince retrieves flows (including tombstones) modified
	// after the given unix timestamp, oldest first
	FlowsChangedSince(ctx context.Context, userID string, since int64) ([]*models.Flow, error)

	// CreateEntry inserts a new flow entry owned by entry.UserID
	CreateEntry(ctx context.Context, entry *models.FlowEntry) error

	// GetEntry retrieves an entry by id, including soft-deleted rows.
	// Returns ErrEntryNotFound if the row is absent or owned by someone else
	GetEntry(ctx context.Context, userID, id string) (*models.FlowEntry, error)

	// UpdateEntry persists the full entry row by (UserID, ID)
	// Returns ErrEntryNotFound if the row is absent
	UpdateEntry(ctx context.Context, entry *models.FlowEntry) error

	// SoftDeleteEntry marks the entry deleted at the given time.
	// Returns ErrEntryNotFound if the row is absent
	SoftDeleteEntry(ctx context.Context, userID, id string, at time.Time) error

	// EntriesChangedSince retrieves entries (including tombstones) modified
	// after the given unix timestamp, oldest first
	EntriesChangedSince(ctx context.Context, userID string, since int64) ([]*models.FlowEntry, error)
}

// LedgerStorage defines interface for the idempotency ledger.
type LedgerStorage interface {
	// LookupLedger retrieves the ledger entry for (userID, idempotencyKey).
	// Returns ErrLedgerEntryNotFound on a miss
	LookupLedger(ctx context.Context, userID, idempotencyKey string) (*models.LedgerEntry, error)

	// RecordLedger inserts a ledger entry.
	// Returns ErrDuplicateIdempotencyKey if an entry already exists for
	// the same (user, idempotency key) pair
	RecordLedger(ctx context.Context, entry *models.LedgerEntry) error
}

// SyncStore is everything a batch transaction operates on.
type SyncStore interface {
	FlowStorage
	LedgerStorage
}

// Tx is a transaction over the sync store. Ledger writes and entity
// mutations commit or roll back together, so the two are never observed
// out of sync.
type Tx interface {
	SyncStore
	Commit() error
	Rollback() error
}

// TxStorage opens transactions for batch processing.
type TxStorage interface {
	SyncStore
	BeginTx(ctx context.Context) (Tx, error)
}
