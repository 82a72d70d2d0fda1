package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

// Flow and entry queries are defined on queries so they run identically
// on the plain connection and inside a batch transaction.

// CreateFlow inserts a new flow owned by flow.UserID
func (q *queries) CreateFlow(ctx context.Context, flow *models.Flow) error {
	query := `
		INSERT INTO flows (
			id, user_id, title, color, tracking_type,
			archived, deleted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		flow.ID,
		flow.UserID,
		flow.Title,
		flow.Color,
		flow.TrackingType,
		boolToInt(flow.Archived),
		timePtrToUnix(flow.DeletedAt),
		flow.CreatedAt.Unix(),
		flow.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert flow: %w", err)
	}

	return nil
}

// GetFlow retrieves a flow by id, including soft-deleted rows
func (q *queries) GetFlow(ctx context.Context, userID, id string) (*models.Flow, error) {
	query := `
		SELECT id, user_id, title, color, tracking_type,
		       archived, deleted_at, created_at, updated_at
		FROM flows
		WHERE id = ? AND user_id = ?
	`

	flow, err := scanFlow(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrFlowNotFound
		}
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	return flow, nil
}

// ListFlows retrieves all non-deleted flows for a user
func (q *queries) ListFlows(ctx context.Context, userID string) ([]*models.Flow, error) {
	query := `
		SELECT id, user_id, title, color, tracking_type,
		       archived, deleted_at, created_at, updated_at
		FROM flows
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanFlows(rows)
}

// UpdateFlow persists the full flow row by (UserID, ID)
func (q *queries) UpdateFlow(ctx context.Context, flow *models.Flow) error {
	query := `
		UPDATE flows
		SET title = ?, color = ?, tracking_type = ?, archived = ?,
		    deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := q.db.ExecContext(ctx, query,
		flow.Title,
		flow.Color,
		flow.TrackingType,
		boolToInt(flow.Archived),
		timePtrToUnix(flow.DeletedAt),
		flow.UpdatedAt.Unix(),
		flow.ID,
		flow.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrFlowNotFound
	}

	return nil
}

// SoftDeleteFlow marks the flow deleted at the given time
func (q *queries) SoftDeleteFlow(ctx context.Context, userID, id string, at time.Time) error {
	query := `
		UPDATE flows
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := q.db.ExecContext(ctx, query, at.Unix(), at.Unix(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrFlowNotFound
	}

	return nil
}

// FlowsChangedSince retrieves flows (including tombstones) modified after
// the given unix timestamp
func (q *queries) FlowsChangedSince(ctx context.Context, userID string, since int64) ([]*models.Flow, error) {
	query := `
		SELECT id, user_id, title, color, tracking_type,
		       archived, deleted_at, created_at, updated_at
		FROM flows
		WHERE user_id = ? AND updated_at > ?
		ORDER BY updated_at ASC
	`

	rows, err := q.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed flows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanFlows(rows)
}

// CreateEntry inserts a new flow entry owned by entry.UserID
func (q *queries) CreateEntry(ctx context.Context, entry *models.FlowEntry) error {
	query := `
		INSERT INTO flow_entries (
			id, user_id, flow_id, entry_date, status, note,
			deleted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.FlowID,
		entry.EntryDate,
		entry.Status,
		entry.Note,
		timePtrToUnix(entry.DeletedAt),
		entry.CreatedAt.Unix(),
		entry.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// GetEntry retrieves an entry by id, including soft-deleted rows
func (q *queries) GetEntry(ctx context.Context, userID, id string) (*models.FlowEntry, error) {
	query := `
		SELECT id, user_id, flow_id, entry_date, status, note,
		       deleted_at, created_at, updated_at
		FROM flow_entries
		WHERE id = ? AND user_id = ?
	`

	entry, err := scanEntry(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return entry, nil
}

// UpdateEntry persists the full entry row by (UserID, ID)
func (q *queries) UpdateEntry(ctx context.Context, entry *models.FlowEntry) error {
	query := `
		UPDATE flow_entries
		SET flow_id = ?, entry_date = ?, status = ?, note = ?,
		    deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := q.db.ExecContext(ctx, query,
		entry.FlowID,
		entry.EntryDate,
		entry.Status,
		entry.Note,
		timePtrToUnix(entry.DeletedAt),
		entry.UpdatedAt.Unix(),
		entry.ID,
		entry.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrEntryNotFound
	}

	return nil
}

// SoftDeleteEntry marks the entry deleted at the given time
func (q *queries) SoftDeleteEntry(ctx context.Context, userID, id string, at time.Time) error {
	query := `
		UPDATE flow_entries
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := q.db.ExecContext(ctx, query, at.Unix(), at.Unix(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrEntryNotFound
	}

	return nil
}

// EntriesChangedSince retrieves entries (including tombstones) modified
// after the given unix timestamp
func (q *queries) EntriesChangedSince(ctx context.Context, userID string, since int64) ([]*models.FlowEntry, error) {
	query := `
		SELECT id, user_id, flow_id, entry_date, status, note,
		       deleted_at, created_at, updated_at
		FROM flow_entries
		WHERE user_id = ? AND updated_at > ?
		ORDER BY updated_at ASC
	`

	rows, err := q.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.FlowEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(row scanner) (*models.Flow, error) {
	flow := &models.Flow{}
	var archived int
	var deletedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&flow.ID,
		&flow.UserID,
		&flow.Title,
		&flow.Color,
		&flow.TrackingType,
		&archived,
		&deletedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.Archived = intToBool(archived)
	flow.DeletedAt = unixToTimePtr(deletedAt)
	flow.CreatedAt = time.Unix(createdAt, 0)
	flow.UpdatedAt = time.Unix(updatedAt, 0)

	return flow, nil
}

func scanFlows(rows *sql.Rows) ([]*models.Flow, error) {
	var flows []*models.Flow

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return flows, nil
}

func scanEntry(row scanner) (*models.FlowEntry, error) {
	entry := &models.FlowEntry{}
	var deletedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.FlowID,
		&entry.EntryDate,
		&entry.Status,
		&entry.Note,
		&deletedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.DeletedAt = unixToTimePtr(deletedAt)
	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.UpdatedAt = time.Unix(updatedAt, 0)

	return entry, nil
}

// Helper functions for bool/int and nullable time conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

func timePtrToUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
