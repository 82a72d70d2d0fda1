package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
	"flowsync/pkg/api"
)

// mockFlowStorage serves canned flows and entries
type mockFlowStorage struct {
	flows   []*models.Flow
	entries []*models.FlowEntry
	listErr error
}

func (m *mockFlowStorage) CreateFlow(ctx context.Context, flow *models.Flow) error { return nil }

func (m *mockFlowStorage) GetFlow(ctx context.Context, userID, id string) (*models.Flow, error) {
	return nil, storage.ErrFlowNotFound
}

func (m *mockFlowStorage) ListFlows(ctx context.Context, userID string) ([]*models.Flow, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Flow
	for _, f := range m.flows {
		if f.UserID == userID && !f.Deleted() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFlowStorage) UpdateFlow(ctx context.Context, flow *models.Flow) error { return nil }

func (m *mockFlowStorage) SoftDeleteFlow(ctx context.Context, userID, id string, at time.Time) error {
	return nil
}

func (m *mockFlowStorage) FlowsChangedSince(ctx context.Context, userID string, since int64) ([]*models.Flow, error) {
	var out []*models.Flow
	for _, f := range m.flows {
		if f.UserID == userID && f.UpdatedAt.Unix() > since {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFlowStorage) CreateEntry(ctx context.Context, entry *models.FlowEntry) error {
	return nil
}

func (m *mockFlowStorage) GetEntry(ctx context.Context, userID, id string) (*models.FlowEntry, error) {
	return nil, storage.ErrEntryNotFound
}

func (m *mockFlowStorage) UpdateEntry(ctx context.Context, entry *models.FlowEntry) error { return nil }

func (m *mockFlowStorage) SoftDeleteEntry(ctx context.Context, userID, id string, at time.Time) error {
	return nil
}

func (m *mockFlowStorage) EntriesChangedSince(ctx context.Context, userID string, since int64) ([]*models.FlowEntry, error) {
	var out []*models.FlowEntry
	for _, e := range m.entries {
		if e.UserID == userID && e.UpdatedAt.Unix() > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func getWithUser(path, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := context.WithValue(req.Context(), UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestFlowsHandler_List(t *testing.T) {
	now := time.Now()
	deleted := now.Add(-time.Hour)
	store := &mockFlowStorage{
		flows: []*models.Flow{
			{ID: "f1", UserID: "user-1", Title: "Run", CreatedAt: now, UpdatedAt: now},
			{ID: "f2", UserID: "user-1", Title: "Read", CreatedAt: now, UpdatedAt: now, DeletedAt: &deleted},
			{ID: "f3", UserID: "user-2", Title: "Other", CreatedAt: now, UpdatedAt: now},
		},
	}
	h := NewFlowsHandler(testLogger(), store)

	rec := httptest.NewRecorder()
	h.List(rec, getWithUser("/api/v1/flows", "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.FlowListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Flows, 1)
	assert.Equal(t, "f1", resp.Flows[0].ID)
}

func TestFlowsHandler_List_Unauthorized(t *testing.T) {
	h := NewFlowsHandler(testLogger(), &mockFlowStorage{})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/flows", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFlowsHandler_Changes(t *testing.T) {
	base := time.Unix(1000, 0)
	deleted := base.Add(time.Hour)
	store := &mockFlowStorage{
		flows: []*models.Flow{
			{ID: "f1", UserID: "user-1", Title: "Run", CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
			{ID: "f2", UserID: "user-1", Title: "Gone", CreatedAt: base, UpdatedAt: base.Add(2 * time.Hour), DeletedAt: &deleted},
			{ID: "f3", UserID: "user-1", Title: "Old", CreatedAt: base, UpdatedAt: base},
		},
		entries: []*models.FlowEntry{
			{ID: "e1", UserID: "user-1", FlowID: "f1", EntryDate: "2026-08-29", CreatedAt: base, UpdatedAt: base.Add(3 * time.Hour)},
		},
	}
	h := NewFlowsHandler(testLogger(), store)

	rec := httptest.NewRecorder()
	h.Changes(rec, getWithUser("/api/v1/flows/changes?since=1000", "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ChangesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	// f3 was not modified after since; the tombstone f2 is included
	require.Len(t, resp.Flows, 2)
	require.Len(t, resp.Entries, 1)
	assert.NotNil(t, resp.Flows[1].DeletedAt)
	assert.Equal(t, base.Add(3*time.Hour).Unix(), resp.CurrentTimestamp)
}

func TestFlowsHandler_Changes_InvalidSince(t *testing.T) {
	h := NewFlowsHandler(testLogger(), &mockFlowStorage{})

	rec := httptest.NewRecorder()
	h.Changes(rec, getWithUser("/api/v1/flows/changes?since=notanumber", "user-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlowsHandler_Changes_NoChanges(t *testing.T) {
	h := NewFlowsHandler(testLogger(), &mockFlowStorage{})

	rec := httptest.NewRecorder()
	h.Changes(rec, getWithUser("/api/v1/flows/changes?since=5000", "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ChangesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Flows)
	assert.Empty(t, resp.Entries)
	assert.Equal(t, int64(5000), resp.CurrentTimestamp)
}
