package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

// LookupLedger retrieves the ledger entry for (userID, idempotencyKey)
func (q *queries) LookupLedger(ctx context.Context, userID, idempotencyKey string) (*models.LedgerEntry, error) {
	query := `
		SELECT user_id, idempotency_key, op_type,
		       request_payload, response_payload, created_at
		FROM sync_log
		WHERE user_id = ? AND idempotency_key = ?
	`

	entry := &models.LedgerEntry{}
	var request, response string
	var createdAt int64

	err := q.db.QueryRowContext(ctx, query, userID, idempotencyKey).Scan(
		&entry.UserID,
		&entry.IdempotencyKey,
		&entry.OperationType,
		&request,
		&response,
		&createdAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	entry.RequestPayload = []byte(request)
	entry.ResponsePayload = []byte(response)
	entry.CreatedAt = time.Unix(createdAt, 0)

	return entry, nil
}

// RecordLedger inserts a ledger entry. The primary key on
// (user_id, idempotency_key) guarantees at most one entry per pair; a
// second insert surfaces as ErrDuplicateIdempotencyKey so callers can
// re-read the winner's outcome.
func (q *queries) RecordLedger(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO sync_log (
			user_id, idempotency_key, op_type,
			request_payload, response_payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		entry.UserID,
		entry.IdempotencyKey,
		entry.OperationType,
		string(entry.RequestPayload),
		string(entry.ResponsePayload),
		entry.CreatedAt.Unix(),
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sync_log") {
			return storage.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}
