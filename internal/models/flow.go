package models

import "time"

// Tracking types for flows.
const (
	TrackingBinary   = "binary"   // done / not done
	TrackingQuantity = "quantity" // numeric amount per day
	TrackingNote     = "note"     // free-form journal entry
)

// Flow represents a tracked habit owned by exactly one user.
// A non-nil DeletedAt is a tombstone: the row is retained so concurrent
// updates from other devices can be resolved in favor of the deletion.
type Flow struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Color        string     `json:"color,omitempty"`
	TrackingType string     `json:"tracking_type,omitempty"`
	Archived     bool       `json:"archived"`
}

// Deleted reports whether the flow is soft-deleted.
func (f *Flow) Deleted() bool {
	return f.DeletedAt != nil
}

// FlowEntry represents one day's record against a flow.
type FlowEntry struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	FlowID    string     `json:"flow_id"`
	EntryDate string     `json:"entry_date"` // YYYY-MM-DD
	Status    string     `json:"status,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// Deleted reports whether the entry is soft-deleted.
func (e *FlowEntry) Deleted() bool {
	return e.DeletedAt != nil
}
