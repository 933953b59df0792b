package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/synapse/internal/idgen"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
	"github.com/untoldecay/synapse/internal/validation"
)

var relationValidators = validation.ChainRelation(validation.NoSelfRelation, validation.ValidRelationType)

// CreateRelation enforces from != to, inserts with a fresh UUIDv7 and
// created_at = now, and emits a change-log insert.
func (s *Store) CreateRelation(ctx context.Context, fromID, toID string, relType types.RelationType, rationale *string, source types.Source) (types.Relation, error) {
	const op = "entity.CreateRelation"

	id, err := idgen.NewUUIDv7()
	if err != nil {
		return types.Relation{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	r := types.Relation{
		ID:           id.String(),
		FromNoteID:   fromID,
		ToNoteID:     toID,
		RelationType: relType,
		Rationale:    rationale,
		Source:       source,
		CreatedAt:    s.now(),
	}
	if err := relationValidators(op, &r); err != nil {
		return types.Relation{}, err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if full, err := s.checkQueueCapacity(ctx, tx); err != nil || full {
			if err != nil {
				return err
			}
			return synapseerr.New(op, synapseerr.KindQueueFull)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relations (id, from_note_id, to_note_id, relation_type, rationale, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.FromNoteID, r.ToNoteID, string(r.RelationType), r.Rationale, string(r.Source), r.CreatedAt); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(r)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityRelation, r.ID, types.OpInsert, payload)
		return err
	})
	if err != nil {
		return types.Relation{}, err
	}
	return r, nil
}

// GetRelation returns the relation with id.
func (s *Store) GetRelation(ctx context.Context, id string) (types.Relation, error) {
	const op = "entity.GetRelation"
	r, err := scanRelation(s.reader().QueryRowContext(ctx, `
		SELECT id, from_note_id, to_note_id, relation_type, rationale, source, created_at
		FROM relations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return types.Relation{}, synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("relation %s not found", id))
	}
	if err != nil {
		return types.Relation{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return r, nil
}

// ListRelationsForNote returns outgoing union incoming relations for
// noteID, ordered by created_at DESC.
func (s *Store) ListRelationsForNote(ctx context.Context, noteID string) ([]types.Relation, error) {
	const op = "entity.ListRelationsForNote"
	rows, err := s.reader().QueryContext(ctx, `
		SELECT id, from_note_id, to_note_id, relation_type, rationale, source, created_at
		FROM relations WHERE from_note_id = ? OR to_note_id = ?
		ORDER BY created_at DESC`, noteID, noteID)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []types.Relation
	for rows.Next() {
		r, err := scanRelationRows(rows)
		if err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RelationExists reports whether a directed relation from -> to (of
// relType if non-nil) exists.
func (s *Store) RelationExists(ctx context.Context, fromID, toID string, relType *types.RelationType) (bool, error) {
	const op = "entity.RelationExists"
	query := `SELECT 1 FROM relations WHERE from_note_id = ? AND to_note_id = ?`
	args := []any{fromID, toID}
	if relType != nil {
		query += ` AND relation_type = ?`
		args = append(args, string(*relType))
	}
	var exists int
	err := s.reader().QueryRowContext(ctx, query+" LIMIT 1", args...).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return true, nil
}

// DeleteRelationsForNote removes every relation touching noteID. The
// note physical-delete path (HardDeleteNote) does not call it and relies
// on the FK cascade instead; this exists for callers operating outside
// that cascade.
func (s *Store) DeleteRelationsForNote(ctx context.Context, tx *sql.Tx, noteID string) error {
	const op = "entity.DeleteRelationsForNote"
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE from_note_id = ? OR to_note_id = ?`, noteID, noteID); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// ApplyRelationUpsertRaw inserts or overwrites a relation from a pull
// delta without emitting a change-log entry.
func (s *Store) ApplyRelationUpsertRaw(ctx context.Context, tx *sql.Tx, r types.Relation) error {
	const op = "entity.ApplyRelationUpsertRaw"
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO relations (id, from_note_id, to_note_id, relation_type, rationale, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_note_id = excluded.from_note_id,
			to_note_id = excluded.to_note_id,
			relation_type = excluded.relation_type,
			rationale = excluded.rationale,
			source = excluded.source,
			created_at = excluded.created_at`,
		r.ID, r.FromNoteID, r.ToNoteID, string(r.RelationType), r.Rationale, string(r.Source), r.CreatedAt); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// ApplyRelationDeleteRaw physically deletes a relation row from a pull
// delta.
func (s *Store) ApplyRelationDeleteRaw(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "entity.ApplyRelationDeleteRaw"
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// GetRelationRaw returns a relation by id within tx, for LWW
// comparison during pull apply. ok is false if no row exists.
func (s *Store) GetRelationRaw(ctx context.Context, tx *sql.Tx, id string) (r types.Relation, ok bool, err error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, from_note_id, to_note_id, relation_type, rationale, source, created_at
		FROM relations WHERE id = ?`, id)
	r, err = scanRelation(row)
	if err == sql.ErrNoRows {
		return types.Relation{}, false, nil
	}
	if err != nil {
		return types.Relation{}, false, synapseerr.Wrap("entity.GetRelationRaw", synapseerr.KindDatabase, err)
	}
	return r, true, nil
}

func scanRelation(row *sql.Row) (types.Relation, error) {
	var r types.Relation
	var relType, source string
	var rationale sql.NullString
	if err := row.Scan(&r.ID, &r.FromNoteID, &r.ToNoteID, &relType, &rationale, &source, &r.CreatedAt); err != nil {
		return types.Relation{}, err
	}
	r.RelationType = types.RelationType(relType)
	r.Source = types.Source(source)
	if rationale.Valid {
		r.Rationale = &rationale.String
	}
	return r, nil
}

func scanRelationRows(rows *sql.Rows) (types.Relation, error) {
	var r types.Relation
	var relType, source string
	var rationale sql.NullString
	if err := rows.Scan(&r.ID, &r.FromNoteID, &r.ToNoteID, &relType, &rationale, &source, &r.CreatedAt); err != nil {
		return types.Relation{}, err
	}
	r.RelationType = types.RelationType(relType)
	r.Source = types.Source(source)
	if rationale.Valid {
		r.Rationale = &rationale.String
	}
	return r, nil
}
