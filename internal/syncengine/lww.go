package syncengine

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

// LWWRecord is the subset of fields ShouldUpdate consults: the
// effective "updated_at" (created_at for immutable relations), an
// optional server_timestamp, and the entity's identifying key (id or
// date).
type LWWRecord struct {
	UpdatedAt       string
	ServerTimestamp *string
	Key             string
}

// ShouldUpdate implements the three-key deterministic LWW comparison
// (spec §4.5): updated_at, then server_timestamp (falling back to
// updated_at when missing on either side), then the entity key
// lexicographically. Returns true iff remote strictly wins. Given
// identical records it returns false.
func ShouldUpdate(local, remote LWWRecord) bool {
	if local.UpdatedAt != remote.UpdatedAt {
		return remote.UpdatedAt > local.UpdatedAt
	}

	localTS := local.UpdatedAt
	if local.ServerTimestamp != nil {
		localTS = *local.ServerTimestamp
	}
	remoteTS := remote.UpdatedAt
	if remote.ServerTimestamp != nil {
		remoteTS = *remote.ServerTimestamp
	}
	if localTS != remoteTS {
		return remoteTS > localTS
	}

	return remote.Key > local.Key
}

// logConflict always appends one conflict_log row, used by both the
// pull-wins and pull-loses branches so every pull decision is
// auditable.
func logConflict(ctx context.Context, tx *sql.Tx, c clock.Clock, entityType types.EntityType, entityID string, local, remote any, resolution types.Resolution) error {
	const op = "syncengine.logConflict"

	localJSON, err := json.Marshal(local)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	remoteJSON, err := json.Marshal(remote)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conflict_log (entity_type, entity_id, local_data, remote_data, resolution, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(entityType), entityID, localJSON, remoteJSON, string(resolution), clock.ISO8601Milli(c.Now()))
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// GetConflicts returns conflict_log rows descending by resolved_at.
func GetConflicts(ctx context.Context, s *store.Store, limit int) ([]types.ConflictLogEntry, error) {
	const op = "syncengine.GetConflicts"
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB().QueryContext(ctx, `
		SELECT id, entity_type, entity_id, local_data, remote_data, resolution, resolved_at
		FROM conflict_log ORDER BY resolved_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []types.ConflictLogEntry
	for rows.Next() {
		var c types.ConflictLogEntry
		var entityType, resolution string
		if err := rows.Scan(&c.ID, &entityType, &c.EntityID, &c.LocalData, &c.RemoteData, &resolution, &c.ResolvedAt); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		c.EntityType = types.EntityType(entityType)
		c.Resolution = types.Resolution(resolution)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearConflicts deletes conflict_log rows older than daysOld.
func ClearConflicts(ctx context.Context, s *store.Store, c clock.Clock, daysOld int) error {
	const op = "syncengine.ClearConflicts"
	cutoff := clock.ISO8601Milli(c.Now().AddDate(0, 0, -daysOld))
	if _, err := s.DB().ExecContext(ctx, `DELETE FROM conflict_log WHERE resolved_at < ?`, cutoff); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}
