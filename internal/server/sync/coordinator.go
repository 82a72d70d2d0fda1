package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
	"flowsync/internal/validation"
)

// Coordinator applies an ordered batch of client operations inside a
// single transaction, consulting the idempotency ledger per operation.
type Coordinator struct {
	logger  *slog.Logger
	store   storage.TxStorage
	applier *Applier
	now     func() time.Time
}

// NewCoordinator creates a batch coordinator. The store and logger are
// injected so the coordinator stays independently testable.
func NewCoordinator(logger *slog.Logger, store storage.TxStorage) *Coordinator {
	return &Coordinator{
		logger:  logger,
		store:   store,
		applier: NewApplier(),
		now:     time.Now,
	}
}

// ProcessBatch applies operations in submission order and returns one
// result per operation, in the same order. Per-operation failures are
// reported in the result list and never abort sibling operations. The
// returned error is non-nil only for batch-fatal transaction failures
// (wrapped ErrBatchTransaction); the partial results computed before the
// failure are still returned.
func (c *Coordinator) ProcessBatch(ctx context.Context, userID string, ops []models.Operation) ([]models.BatchResult, error) {
	results := make([]models.BatchResult, 0, len(ops))

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return results, fmt.Errorf("%w: begin: %v", ErrBatchTransaction, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.ErrorContext(ctx, "batch rollback failed", slog.Any("error", rbErr))
		}
	}()

	for i := range ops {
		op := &ops[i]
		result := c.processOne(ctx, tx, userID, op)
		results = append(results, result)

		if result.Status == models.StatusError {
			c.logger.WarnContext(ctx, "operation failed",
				slog.String("user_id", userID),
				slog.String("op_type", op.OpType),
				slog.String("idempotency_key", op.IdempotencyKey),
				slog.String("error", result.Error))
		}
	}

	// Ledger entries and entity mutations land together or not at all
	if err := tx.Commit(); err != nil {
		return results, fmt.Errorf("%w: commit: %v", ErrBatchTransaction, err)
	}

	c.logger.InfoContext(ctx, "batch processed",
		slog.String("user_id", userID),
		slog.Int("operations", len(ops)))

	return results, nil
}

// processOne handles a single operation: ledger check, validation, apply,
// ledger record. Every failure path is converted into a result entry.
func (c *Coordinator) processOne(ctx context.Context, tx storage.Tx, userID string, op *models.Operation) models.BatchResult {
	entry, err := tx.LookupLedger(ctx, userID, op.IdempotencyKey)
	if err == nil {
		return duplicateResult(op, entry)
	}
	if !errors.Is(err, storage.ErrLedgerEntryNotFound) {
		return errorResult(op, fmt.Errorf("ledger lookup: %w", err))
	}

	if err := validation.ValidateOperation(op); err != nil {
		return errorResult(op, err)
	}

	ref, err := c.applier.Apply(ctx, tx, userID, op)
	if err != nil {
		return errorResult(op, err)
	}

	response, err := json.Marshal(models.LedgerResponse{
		ServerID: ref.ID,
		Status:   models.StatusSuccess,
	})
	if err != nil {
		return errorResult(op, fmt.Errorf("encode ledger response: %w", err))
	}

	err = tx.RecordLedger(ctx, &models.LedgerEntry{
		UserID:          userID,
		IdempotencyKey:  op.IdempotencyKey,
		OperationType:   op.OpType,
		RequestPayload:  op.Payload,
		ResponsePayload: response,
		CreatedAt:       c.now(),
	})
	if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
		// A concurrent request won the race on this key. Re-read the
		// winner's outcome; the client never sees an error here.
		entry, lookupErr := tx.LookupLedger(ctx, userID, op.IdempotencyKey)
		if lookupErr != nil {
			return errorResult(op, fmt.Errorf("ledger re-read after duplicate: %w", lookupErr))
		}
		return duplicateResult(op, entry)
	}
	if err != nil {
		return errorResult(op, fmt.Errorf("ledger record: %w", err))
	}

	return models.BatchResult{
		TempID:   op.TempID,
		ServerID: ref.ID,
		Status:   models.StatusSuccess,
	}
}

func duplicateResult(op *models.Operation, entry *models.LedgerEntry) models.BatchResult {
	var response models.LedgerResponse
	if err := json.Unmarshal(entry.ResponsePayload, &response); err != nil {
		return errorResult(op, fmt.Errorf("decode recorded response: %w", err))
	}

	return models.BatchResult{
		TempID:   op.TempID,
		ServerID: response.ServerID,
		Status:   models.StatusDuplicate,
	}
}

func errorResult(op *models.Operation, err error) models.BatchResult {
	return models.BatchResult{
		TempID: op.TempID,
		Status: models.StatusError,
		Error:  err.Error(),
	}
}
