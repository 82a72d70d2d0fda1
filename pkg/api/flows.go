package api

import "time"

// Flow is the wire representation of a tracked flow (habit).
type Flow struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Color        string     `json:"color,omitempty"`
	TrackingType string     `json:"tracking_type,omitempty"`
	Archived     bool       `json:"archived"`
}

// FlowEntry is the wire representation of one day's record against a flow.
type FlowEntry struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	ID        string     `json:"id"`
	FlowID    string     `json:"flow_id"`
	EntryDate string     `json:"entry_date"` // YYYY-MM-DD
	Status    string     `json:"status,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// FlowListResponse is returned by GET /api/v1/flows.
type FlowListResponse struct {
	Flows []Flow `json:"flows"`
}

// ChangesResponse is returned by GET /api/v1/flows/changes?since=N.
// It includes tombstones so clients can reconcile deletions.
type ChangesResponse struct {
	Flows            []Flow      `json:"flows"`
	Entries          []FlowEntry `json:"entries"`
	CurrentTimestamp int64       `json:"current_timestamp"`
}
