package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

func newTestFlow(userID string) *models.Flow {
	now := time.Now().Truncate(time.Second)
	return &models.Flow{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        "Morning run",
		Color:        "#ff8800",
		TrackingType: models.TrackingBinary,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestFlowStorage_CreateAndGetFlow(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	flow := newTestFlow(userID)

	require.NoError(t, s.CreateFlow(ctx, flow))

	retrieved, err := s.GetFlow(ctx, userID, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.ID, retrieved.ID)
	assert.Equal(t, flow.Title, retrieved.Title)
	assert.Equal(t, flow.TrackingType, retrieved.TrackingType)
	assert.Nil(t, retrieved.DeletedAt)
}

func TestFlowStorage_GetFlow_WrongUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	otherID := createTestUser(t, ctx, s)

	flow := newTestFlow(userID)
	require.NoError(t, s.CreateFlow(ctx, flow))

	// Another user's lookup must not see the row
	_, err := s.GetFlow(ctx, otherID, flow.ID)
	assert.ErrorIs(t, err, storage.ErrFlowNotFound)
}

func TestFlowStorage_SoftDeleteFlow(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	flow := newTestFlow(userID)
	require.NoError(t, s.CreateFlow(ctx, flow))

	require.NoError(t, s.SoftDeleteFlow(ctx, userID, flow.ID, time.Now()))

	// Tombstone is still readable
	retrieved, err := s.GetFlow(ctx, userID, flow.ID)
	require.NoError(t, err)
	assert.True(t, retrieved.Deleted())

	// But excluded from the active list
	flows, err := s.ListFlows(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, flows)

	// Deleting a missing flow reports not found
	err = s.SoftDeleteFlow(ctx, userID, "missing", time.Now())
	assert.ErrorIs(t, err, storage.ErrFlowNotFound)
}

func TestFlowStorage_FlowsChangedSince(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	old := newTestFlow(userID)
	old.CreatedAt = time.Unix(1000, 0)
	old.UpdatedAt = time.Unix(1000, 0)
	require.NoError(t, s.CreateFlow(ctx, old))

	fresh := newTestFlow(userID)
	fresh.Title = "Read a book"
	fresh.CreatedAt = time.Unix(2000, 0)
	fresh.UpdatedAt = time.Unix(2000, 0)
	require.NoError(t, s.CreateFlow(ctx, fresh))

	changed, err := s.FlowsChangedSince(ctx, userID, 1500)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, fresh.ID, changed[0].ID)

	// Tombstones show up in the change feed
	require.NoError(t, s.SoftDeleteFlow(ctx, userID, old.ID, time.Unix(3000, 0)))
	changed, err = s.FlowsChangedSince(ctx, userID, 1500)
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.True(t, changed[1].Deleted())
}

func TestFlowStorage_Entries(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	flow := newTestFlow(userID)
	require.NoError(t, s.CreateFlow(ctx, flow))

	now := time.Now().Truncate(time.Second)
	entry := &models.FlowEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		FlowID:    flow.ID,
		EntryDate: "2026-08-30",
		Status:    "done",
		Note:      "5k",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateEntry(ctx, entry))

	retrieved, err := s.GetEntry(ctx, userID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.FlowID, retrieved.FlowID)
	assert.Equal(t, "done", retrieved.Status)

	retrieved.Note = "10k"
	retrieved.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateEntry(ctx, retrieved))

	updated, err := s.GetEntry(ctx, userID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "10k", updated.Note)

	require.NoError(t, s.SoftDeleteEntry(ctx, userID, entry.ID, now.Add(2*time.Minute)))
	deleted, err := s.GetEntry(ctx, userID, entry.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())

	err = s.UpdateEntry(ctx, &models.FlowEntry{ID: "missing", UserID: userID, UpdatedAt: now})
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func TestFlowStorage_TxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	// Rolled back insert leaves no row
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	flow := newTestFlow(userID)
	require.NoError(t, tx.CreateFlow(ctx, flow))
	require.NoError(t, tx.Rollback())

	_, err = s.GetFlow(ctx, userID, flow.ID)
	assert.ErrorIs(t, err, storage.ErrFlowNotFound)

	// Committed insert is visible
	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateFlow(ctx, flow))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback()) // no-op after commit

	_, err = s.GetFlow(ctx, userID, flow.ID)
	require.NoError(t, err)
}
