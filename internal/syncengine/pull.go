package syncengine

import (
	"context"
	"database/sql"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/entity"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

// checkpointKey is the single recognized sync_state key (spec §4.5).
const checkpointKey = "checkpoint"

// Puller applies server-originated deltas under a checkpoint cursor.
type Puller struct {
	Store     *store.Store
	Entities  *entity.Store
	Transport Transport
	Clock     clock.Clock
	DeviceID  string
}

// NewPuller constructs a Puller.
func NewPuller(s *store.Store, e *entity.Store, t Transport, c clock.Clock, deviceID string) *Puller {
	return &Puller{Store: s, Entities: e, Transport: t, Clock: c, DeviceID: deviceID}
}

// Pull fetches and applies server deltas, advancing the checkpoint once
// per page, looping while the server reports more pages (spec §4.5
// Pull). Only the pull path moves the checkpoint; push never does.
func (p *Puller) Pull(ctx context.Context) PullSummary {
	const op = "syncengine.Pull"

	checkpoint, err := getCheckpoint(ctx, p.Store.DB())
	if err != nil {
		return PullSummary{Success: false, Err: err}
	}

	total := PullSummary{Success: true, NewCheckpoint: derefOr(checkpoint, "")}

	for {
		resp, err := p.Transport.Pull(ctx, PullRequest{DeviceID: p.DeviceID, Checkpoint: checkpoint})
		if err != nil {
			return PullSummary{Success: false, Applied: total.Applied, NewCheckpoint: total.NewCheckpoint, Err: err}
		}

		err = p.Store.WithTx(ctx, func(tx *sql.Tx) error {
			for _, delta := range resp.Changes {
				if err := p.applyDelta(ctx, tx, delta); err != nil {
					return err
				}
			}
			return setCheckpointTx(ctx, tx, resp.NewCheckpoint)
		})
		if err != nil {
			return PullSummary{Success: false, Applied: total.Applied, NewCheckpoint: total.NewCheckpoint, Err: synapseerr.Wrap(op, synapseerr.Of(err), err)}
		}

		total.Applied += len(resp.Changes)
		total.NewCheckpoint = resp.NewCheckpoint

		if !resp.HasMore {
			return total
		}
		checkpoint = &resp.NewCheckpoint
	}
}

// applyDelta dispatches one server delta to the matching entity-table
// raw-apply method, resolving upsert conflicts with ShouldUpdate and
// always recording the decision via logConflict.
func (p *Puller) applyDelta(ctx context.Context, tx *sql.Tx, d Delta) error {
	const op = "syncengine.applyDelta"

	entityType := types.EntityType(d.EntityType)
	switch types.DeltaOperation(d.Operation) {
	case types.DeltaUpsert:
		return p.applyUpsert(ctx, tx, entityType, d)
	case types.DeltaDelete:
		return p.applyDelete(ctx, tx, entityType, d.EntityID, d.UpdatedAt)
	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation, errUnrecognizedOperation(d.Operation))
	}
}

func (p *Puller) applyUpsert(ctx context.Context, tx *sql.Tx, entityType types.EntityType, d Delta) error {
	const op = "syncengine.applyUpsert"

	decoded, err := DecodePayload(entityType, d.Data)
	if err != nil {
		return err
	}

	switch entityType {
	case types.EntityNote:
		remote := decoded.(notePayload)
		local, found, err := p.Entities.GetNoteRaw(ctx, tx, d.EntityID)
		if err != nil {
			return err
		}
		if found && !ShouldUpdate(noteLWW(local), noteLWW(remote)) {
			return logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionLocalWins)
		}
		if found {
			if err := logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionRemoteWins); err != nil {
				return err
			}
		}
		_, err = p.Entities.ApplyNoteUpsertRaw(ctx, tx, remote)
		return err

	case types.EntityRelation:
		remote := decoded.(relationPayload)
		local, found, err := p.Entities.GetRelationRaw(ctx, tx, d.EntityID)
		if err != nil {
			return err
		}
		if found && !ShouldUpdate(relationLWW(local), relationLWW(remote)) {
			return logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionLocalWins)
		}
		if found {
			if err := logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionRemoteWins); err != nil {
				return err
			}
		}
		return p.Entities.ApplyRelationUpsertRaw(ctx, tx, remote)

	case types.EntityReflection:
		remote := decoded.(reflectionPayload)
		local, found, err := p.Entities.GetReflectionRaw(ctx, tx, remote.Date)
		if err != nil {
			return err
		}
		if found && !ShouldUpdate(reflectionLWW(local), reflectionLWW(remote)) {
			return logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionLocalWins)
		}
		if found {
			if err := logConflict(ctx, tx, p.Clock, entityType, d.EntityID, local, remote, types.ResolutionRemoteWins); err != nil {
				return err
			}
		}
		return p.Entities.ApplyReflectionUpsertRaw(ctx, tx, remote)

	case types.EntityNoteKeyword:
		nk := decoded.(noteKeywordPayload)
		return p.Entities.ApplyNoteKeywordUpsertRaw(ctx, tx, nk.NoteID, nk.Keyword, nk.Score, types.Source(nk.Source))

	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation, errUnrecognizedEntity(string(entityType)))
	}
}

func (p *Puller) applyDelete(ctx context.Context, tx *sql.Tx, entityType types.EntityType, entityID, updatedAt string) error {
	const op = "syncengine.applyDelete"

	switch entityType {
	case types.EntityNote:
		return p.Entities.ApplyNoteDeleteRaw(ctx, tx, entityID, updatedAt)
	case types.EntityRelation:
		return p.Entities.ApplyRelationDeleteRaw(ctx, tx, entityID)
	case types.EntityReflection:
		return p.Entities.ApplyReflectionDeleteRaw(ctx, tx, entityID)
	case types.EntityNoteKeyword:
		return p.Entities.ApplyNoteKeywordDeleteRaw(ctx, tx, entityID)
	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation, errUnrecognizedEntity(string(entityType)))
	}
}

func noteLWW(n types.Note) LWWRecord {
	return LWWRecord{UpdatedAt: n.UpdatedAt, ServerTimestamp: n.ServerTimestamp, Key: n.ID}
}

func reflectionLWW(r types.Reflection) LWWRecord {
	return LWWRecord{UpdatedAt: r.UpdatedAt, Key: r.Date}
}

// relationLWW treats a relation's created_at as its effective
// updated_at: relations are immutable once created, so the only way
// two sides can disagree on one is a reused id created at different
// times, which this still resolves deterministically.
func relationLWW(r types.Relation) LWWRecord {
	return LWWRecord{UpdatedAt: r.CreatedAt, Key: r.ID}
}

func getCheckpoint(ctx context.Context, db *sql.DB) (*string, error) {
	const op = "syncengine.getCheckpoint"
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, checkpointKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return &value, nil
}

func setCheckpointTx(ctx context.Context, tx *sql.Tx, value string) error {
	const op = "syncengine.setCheckpointTx"
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		checkpointKey, value)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func errUnrecognizedOperation(op string) error {
	return &unrecognizedError{kind: "operation", value: op}
}

func errUnrecognizedEntity(entityType string) error {
	return &unrecognizedError{kind: "entity_type", value: entityType}
}

type unrecognizedError struct {
	kind  string
	value string
}

func (e *unrecognizedError) Error() string {
	return "unrecognized " + e.kind + " " + e.value
}
