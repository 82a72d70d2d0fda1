package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
	"flowsync/internal/server/storage/sqlite"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// setupCoordinator creates a coordinator over in-memory storage with one
// registered user
func setupCoordinator(t *testing.T) (*Coordinator, *sqlite.Storage, string) {
	t.Helper()

	ctx := context.Background()
	s, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	userID := uuid.New().String()
	require.NoError(t, s.CreateUser(ctx, &models.User{
		ID:           userID,
		Username:     "syncuser",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	return NewCoordinator(setupTestLogger(), s), s, userID
}

func createFlowOp(key, tempID, title string) models.Operation {
	return models.Operation{
		IdempotencyKey: key,
		OpType:         models.OpCreateFlow,
		Payload:        []byte(fmt.Sprintf(`{"title":%q}`, title)),
		TempID:         tempID,
	}
}

func TestCoordinator_CreateFlow(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Morning run"),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "tmp-1", results[0].TempID)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	require.NotEmpty(t, results[0].ServerID)

	flow, err := s.GetFlow(ctx, userID, results[0].ServerID)
	require.NoError(t, err)
	assert.Equal(t, "Morning run", flow.Title)
}

func TestCoordinator_Idempotency(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	batch := []models.Operation{
		createFlowOp("k1", "tmp-1", "Run"),
		createFlowOp("k2", "tmp-2", "Read"),
	}

	first, err := c.ProcessBatch(ctx, userID, batch)
	require.NoError(t, err)

	// Replaying the same batch returns the same server ids and creates
	// no new rows
	second, err := c.ProcessBatch(ctx, userID, batch)
	require.NoError(t, err)

	require.Len(t, second, 2)
	for i := range second {
		assert.Equal(t, models.StatusDuplicate, second[i].Status)
		assert.Equal(t, first[i].ServerID, second[i].ServerID)
	}

	flows, err := s.ListFlows(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}

func TestCoordinator_OrderPreservation(t *testing.T) {
	ctx := context.Background()
	c, _, userID := setupCoordinator(t)

	ops := make([]models.Operation, 5)
	for i := range ops {
		ops[i] = createFlowOp(fmt.Sprintf("key-%d", i), fmt.Sprintf("tmp-%d", i), fmt.Sprintf("Flow %d", i))
	}

	results, err := c.ProcessBatch(ctx, userID, ops)
	require.NoError(t, err)
	require.Len(t, results, len(ops))

	for i := range ops {
		assert.Equal(t, ops[i].TempID, results[i].TempID)
	}
}

func TestCoordinator_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	c, _, userID := setupCoordinator(t)

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "First"),
		{
			IdempotencyKey: "k2",
			OpType:         models.OpUpdateFlow,
			Payload:        []byte(`{"id":"does-not-exist","title":"New"}`),
		},
		createFlowOp("k3", "tmp-3", "Third"),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, models.StatusError, results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].ServerID)
	assert.Equal(t, models.StatusSuccess, results[2].Status)
}

func TestCoordinator_LocalStoragePreference(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		{
			IdempotencyKey:    "k1",
			OpType:            models.OpCreateFlow,
			Payload:           []byte(`{"title":"Private"}`),
			TempID:            "abc",
			StoragePreference: models.StorageLocal,
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The temp id is echoed as the server id and no row is created
	assert.Equal(t, "abc", results[0].TempID)
	assert.Equal(t, "abc", results[0].ServerID)
	assert.Equal(t, models.StatusSuccess, results[0].Status)

	flows, err := s.ListFlows(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, flows)

	// But the operation is still in the ledger
	entry, err := s.LookupLedger(ctx, userID, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.OpCreateFlow, entry.OperationType)
}

func TestCoordinator_SoftDeleteIdempotence(t *testing.T) {
	ctx := context.Background()
	c, _, userID := setupCoordinator(t)

	created, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Doomed"),
	})
	require.NoError(t, err)
	flowID := created[0].ServerID

	deletePayload := []byte(fmt.Sprintf(`{"id":%q}`, flowID))
	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		{IdempotencyKey: "k2", OpType: models.OpDeleteFlow, Payload: deletePayload},
		{IdempotencyKey: "k3", OpType: models.OpDeleteFlow, Payload: deletePayload},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both deletes succeed; re-deleting a tombstone is not an error
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, models.StatusSuccess, results[1].Status)
}

func TestCoordinator_EntryAgainstFlowFromEarlierBatch(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	created, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Run"),
	})
	require.NoError(t, err)
	flowID := created[0].ServerID

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		{
			IdempotencyKey: "k2",
			OpType:         models.OpCreateEntry,
			Payload:        []byte(fmt.Sprintf(`{"flow_id":%q,"entry_date":"2026-08-30","status":"done"}`, flowID)),
			TempID:         "tmp-e1",
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, results[0].Status)

	entry, err := s.GetEntry(ctx, userID, results[0].ServerID)
	require.NoError(t, err)
	assert.Equal(t, flowID, entry.FlowID)
	assert.Equal(t, "done", entry.Status)
}

func TestCoordinator_InvalidOperation(t *testing.T) {
	ctx := context.Background()
	c, _, userID := setupCoordinator(t)

	tests := []struct {
		name string
		op   models.Operation
	}{
		{
			name: "missing idempotency key",
			op: models.Operation{
				OpType:  models.OpCreateFlow,
				Payload: []byte(`{"title":"x"}`),
				TempID:  "t",
			},
		},
		{
			name: "unknown op type",
			op: models.Operation{
				IdempotencyKey: "k-unknown",
				OpType:         "RENAME_FLOW",
				Payload:        []byte(`{}`),
			},
		},
		{
			name: "payload missing required field",
			op: models.Operation{
				IdempotencyKey: "k-badpayload",
				OpType:         models.OpCreateFlow,
				Payload:        []byte(`{"color":"#fff"}`),
				TempID:         "t",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := c.ProcessBatch(ctx, userID, []models.Operation{tt.op})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, models.StatusError, results[0].Status)
			assert.NotEmpty(t, results[0].Error)
		})
	}
}

func TestCoordinator_ErrorNotRecordedInLedger(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	op := models.Operation{
		IdempotencyKey: "retry-me",
		OpType:         models.OpUpdateFlow,
		Payload:        []byte(`{"id":"missing","title":"x"}`),
	}

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{op})
	require.NoError(t, err)
	require.Equal(t, models.StatusError, results[0].Status)

	// Failed operations leave no ledger entry, so a retry with the same
	// key may re-execute
	_, err = s.LookupLedger(ctx, userID, "retry-me")
	assert.ErrorIs(t, err, storage.ErrLedgerEntryNotFound)
}

func TestCoordinator_UserScoping(t *testing.T) {
	ctx := context.Background()
	c, s, userID := setupCoordinator(t)

	otherID := uuid.New().String()
	require.NoError(t, s.CreateUser(ctx, &models.User{
		ID:           otherID,
		Username:     "otheruser",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	created, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Mine"),
	})
	require.NoError(t, err)
	flowID := created[0].ServerID

	// The other user cannot update or delete the flow
	results, err := c.ProcessBatch(ctx, otherID, []models.Operation{
		{IdempotencyKey: "k1", OpType: models.OpUpdateFlow, Payload: []byte(fmt.Sprintf(`{"id":%q,"title":"Stolen"}`, flowID))},
		{IdempotencyKey: "k2", OpType: models.OpDeleteFlow, Payload: []byte(fmt.Sprintf(`{"id":%q}`, flowID))},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, results[0].Status)
	assert.Equal(t, models.StatusError, results[1].Status)

	flow, err := s.GetFlow(ctx, userID, flowID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", flow.Title)
	assert.False(t, flow.Deleted())
}

// raceStore simulates a concurrent request winning the ledger insert race:
// the first RecordLedger call persists a different winner row and reports
// a duplicate key.
type raceStore struct {
	storage.TxStorage
	winnerID string
}

func (s *raceStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.TxStorage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &raceTx{Tx: tx, winnerID: s.winnerID}, nil
}

type raceTx struct {
	storage.Tx
	winnerID string
	raced    bool
}

func (t *raceTx) RecordLedger(ctx context.Context, entry *models.LedgerEntry) error {
	if !t.raced {
		t.raced = true
		winner := *entry
		winner.ResponsePayload, _ = json.Marshal(models.LedgerResponse{
			ServerID: t.winnerID,
			Status:   models.StatusSuccess,
		})
		if err := t.Tx.RecordLedger(ctx, &winner); err != nil {
			return err
		}
		return storage.ErrDuplicateIdempotencyKey
	}
	return t.Tx.RecordLedger(ctx, entry)
}

func TestCoordinator_DuplicateKeyRaceRecovery(t *testing.T) {
	ctx := context.Background()
	_, s, userID := setupCoordinator(t)

	c := NewCoordinator(setupTestLogger(), &raceStore{TxStorage: s, winnerID: "winner-flow-id"})

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("contested", "tmp-1", "Raced"),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The loser reports the winner's outcome, never an error
	assert.Equal(t, models.StatusDuplicate, results[0].Status)
	assert.Equal(t, "winner-flow-id", results[0].ServerID)
}

// failStore refuses to open transactions.
type failStore struct {
	storage.TxStorage
}

func (s *failStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	return nil, errors.New("connection lost")
}

func TestCoordinator_BatchTransactionFailure(t *testing.T) {
	ctx := context.Background()
	_, s, userID := setupCoordinator(t)

	c := NewCoordinator(setupTestLogger(), &failStore{TxStorage: s})

	results, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Never applied"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchTransaction)
	assert.Empty(t, results)
}

func TestCoordinator_TimeoutRollsBack(t *testing.T) {
	c, s, userID := setupCoordinator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already expired

	_, err := c.ProcessBatch(ctx, userID, []models.Operation{
		createFlowOp("k1", "tmp-1", "Too late"),
	})
	require.Error(t, err)

	// No ledger entries or entity rows survive an aborted batch
	_, err = s.LookupLedger(context.Background(), userID, "k1")
	assert.ErrorIs(t, err, storage.ErrLedgerEntryNotFound)

	flows, err := s.ListFlows(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, flows)
}
