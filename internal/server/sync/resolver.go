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
)

// errStoredTombstone signals that the entity a resolution would write to
// is already soft-deleted server-side. The deletion stands.
var errStoredTombstone = errors.New("stored entity is tombstoned")

// Resolver applies a resolution policy to client-detected conflicts.
// Conflicts are never persisted themselves; only the winning state is
// written back to the underlying entity. Each resolution is independent:
// one failure never aborts the rest.
type Resolver struct {
	logger *slog.Logger
	store  storage.FlowStorage
	now    func() time.Time
}

// NewResolver creates a conflict resolver over the given store.
func NewResolver(logger *slog.Logger, store storage.FlowStorage) *Resolver {
	return &Resolver{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// Resolve processes conflicts in order and returns one outcome per
// conflict. Policies:
//   - timestamp_conflict: the side with the newer updated_at wins
//   - data_conflict: field-level merge, server value wins on collisions
//   - deletion_conflict: a tombstone on either side wins
func (r *Resolver) Resolve(ctx context.Context, userID string, conflicts []models.Conflict) []models.ResolvedConflict {
	results := make([]models.ResolvedConflict, 0, len(conflicts))

	for i := range conflicts {
		conflict := &conflicts[i]
		result := r.resolveOne(ctx, userID, conflict)
		results = append(results, result)

		if result.Status == models.StatusError {
			r.logger.WarnContext(ctx, "conflict resolution failed",
				slog.String("user_id", userID),
				slog.String("entity_type", conflict.EntityType),
				slog.String("entity_id", conflict.EntityID),
				slog.String("error", result.Error))
		}
	}

	return results
}

func (r *Resolver) resolveOne(ctx context.Context, userID string, conflict *models.Conflict) models.ResolvedConflict {
	local, err := decodeState(conflict.LocalData)
	if err != nil {
		return resolveError(conflict, fmt.Errorf("local_data: %w", err))
	}
	server, err := decodeState(conflict.ServerData)
	if err != nil {
		return resolveError(conflict, fmt.Errorf("server_data: %w", err))
	}

	var resolution string
	var winner map[string]any

	switch conflict.ConflictType {
	case models.ConflictDeletion:
		// Tombstones win: a deletion on either side must not be
		// resurrected by a concurrent update elsewhere
		if stateDeleted(local) || stateDeleted(server) {
			if err := r.deleteEntity(ctx, userID, conflict); err != nil {
				return resolveError(conflict, err)
			}
			return resolved(conflict, models.ResolutionDeleted)
		}
		// Neither side actually carries a tombstone; the server state
		// already stands
		return resolved(conflict, models.ResolutionServerWins)

	case models.ConflictTimestamp:
		if models.Newer(stateUpdatedAt(local), stateUpdatedAt(server)) {
			resolution = models.ResolutionLocalWins
			winner = local
		} else {
			// Server state is already persisted; nothing to write
			return resolved(conflict, models.ResolutionServerWins)
		}

	case models.ConflictData:
		// Union of both sides; on a field present in both with
		// different values the server is the arbiter of truth
		merged := make(map[string]any, len(local)+len(server))
		for k, v := range local {
			merged[k] = v
		}
		for k, v := range server {
			merged[k] = v
		}
		resolution = models.ResolutionMerged
		winner = merged

	default:
		return resolveError(conflict, fmt.Errorf("unknown conflict_type %q", conflict.ConflictType))
	}

	if stateDeleted(winner) {
		if err := r.deleteEntity(ctx, userID, conflict); err != nil {
			return resolveError(conflict, err)
		}
		return resolved(conflict, models.ResolutionDeleted)
	}

	if err := r.persist(ctx, userID, conflict, winner); err != nil {
		if errors.Is(err, errStoredTombstone) {
			return resolved(conflict, models.ResolutionDeleted)
		}
		return resolveError(conflict, err)
	}

	return resolved(conflict, resolution)
}

// persist writes the winning state onto the stored entity. An entity the
// user already deleted is never resurrected by a merge or local-wins
// outcome: persist reports errStoredTombstone and the tombstone wins.
func (r *Resolver) persist(ctx context.Context, userID string, conflict *models.Conflict, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode resolved state: %w", err)
	}

	switch conflict.EntityType {
	case models.EntityFlow:
		flow, err := r.store.GetFlow(ctx, userID, conflict.EntityID)
		if err != nil {
			return err
		}
		if flow.Deleted() {
			return errStoredTombstone
		}
		createdAt := flow.CreatedAt
		if err := json.Unmarshal(data, flow); err != nil {
			return fmt.Errorf("decode resolved state: %w", err)
		}
		// Identity and ownership are never negotiable via conflict data
		flow.ID = conflict.EntityID
		flow.UserID = userID
		flow.CreatedAt = createdAt
		flow.DeletedAt = nil
		flow.UpdatedAt = r.now()
		return r.store.UpdateFlow(ctx, flow)

	case models.EntityEntry:
		entry, err := r.store.GetEntry(ctx, userID, conflict.EntityID)
		if err != nil {
			return err
		}
		if entry.Deleted() {
			return errStoredTombstone
		}
		createdAt := entry.CreatedAt
		if err := json.Unmarshal(data, entry); err != nil {
			return fmt.Errorf("decode resolved state: %w", err)
		}
		entry.ID = conflict.EntityID
		entry.UserID = userID
		entry.CreatedAt = createdAt
		entry.DeletedAt = nil
		entry.UpdatedAt = r.now()
		return r.store.UpdateEntry(ctx, entry)

	default:
		return fmt.Errorf("unknown entity_type %q", conflict.EntityType)
	}
}

func (r *Resolver) deleteEntity(ctx context.Context, userID string, conflict *models.Conflict) error {
	switch conflict.EntityType {
	case models.EntityFlow:
		flow, err := r.store.GetFlow(ctx, userID, conflict.EntityID)
		if err != nil {
			return err
		}
		if flow.Deleted() {
			return nil
		}
		return r.store.SoftDeleteFlow(ctx, userID, conflict.EntityID, r.now())

	case models.EntityEntry:
		entry, err := r.store.GetEntry(ctx, userID, conflict.EntityID)
		if err != nil {
			return err
		}
		if entry.Deleted() {
			return nil
		}
		return r.store.SoftDeleteEntry(ctx, userID, conflict.EntityID, r.now())

	default:
		return fmt.Errorf("unknown entity_type %q", conflict.EntityType)
	}
}

func decodeState(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if state == nil {
		state = map[string]any{}
	}

	return state, nil
}

func stateDeleted(state map[string]any) bool {
	v, ok := state["deleted_at"]
	return ok && v != nil
}

func stateUpdatedAt(state map[string]any) time.Time {
	raw, ok := state["updated_at"].(string)
	if !ok {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}

func resolved(conflict *models.Conflict, resolution string) models.ResolvedConflict {
	return models.ResolvedConflict{
		EntityType: conflict.EntityType,
		EntityID:   conflict.EntityID,
		Resolution: resolution,
		Status:     models.StatusSuccess,
	}
}

func resolveError(conflict *models.Conflict, err error) models.ResolvedConflict {
	return models.ResolvedConflict{
		EntityType: conflict.EntityType,
		EntityID:   conflict.EntityID,
		Status:     models.StatusError,
		Error:      err.Error(),
	}
}
