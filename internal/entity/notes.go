package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/idgen"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
	"github.com/untoldecay/synapse/internal/validation"
)

var noteValidators = validation.ChainNote(validation.ImportanceInRange, validation.BodyNonEmpty)

// CreateNote validates, inserts a new note with a fresh UUIDv7, and
// emits a change-log insert with priority note -> 2.
func (s *Store) CreateNote(ctx context.Context, body string, importance int, sourceURL, imagePath *string) (types.Note, error) {
	const op = "entity.CreateNote"

	id, err := idgen.NewUUIDv7()
	if err != nil {
		return types.Note{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	now := s.now()
	n := types.Note{
		ID:         id.String(),
		Body:       body,
		Importance: importance,
		SourceURL:  sourceURL,
		ImagePath:  imagePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := noteValidators(op, &n); err != nil {
		return types.Note{}, err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if full, err := s.checkQueueCapacity(ctx, tx); err != nil || full {
			if err != nil {
				return err
			}
			return synapseerr.New(op, synapseerr.KindQueueFull)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)`,
			n.ID, n.Body, n.Importance, n.SourceURL, n.ImagePath, n.CreatedAt, n.UpdatedAt); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(n)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityNote, n.ID, types.OpInsert, payload)
		return err
	})
	if err != nil {
		return types.Note{}, err
	}
	return n, nil
}

func (s *Store) checkQueueCapacity(ctx context.Context, tx *sql.Tx) (full bool, err error) {
	size, err := s.log.PendingSizeTx(ctx, tx)
	if err != nil {
		return false, err
	}
	return size >= changelog.SyncQueueMaxSize, nil
}

// GetNote returns the note with id, or NotFound if missing or
// soft-deleted.
func (s *Store) GetNote(ctx context.Context, id string) (types.Note, error) {
	const op = "entity.GetNote"
	n, err := s.scanNote(ctx, s.reader().QueryRowContext(ctx, `
		SELECT id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp
		FROM notes WHERE id = ? AND deleted_at IS NULL`, id))
	if err == sql.ErrNoRows {
		return types.Note{}, synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("note %s not found", id))
	}
	if err != nil {
		return types.Note{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return n, nil
}

// GetNoteRaw returns the note with id regardless of deleted_at, used
// internally by the sync engine's LWW comparison. ok is false (with a
// nil error) if no row exists at all.
func (s *Store) GetNoteRaw(ctx context.Context, tx *sql.Tx, id string) (types.Note, bool, error) {
	const op = "entity.GetNoteRaw"
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, `
			SELECT id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp
			FROM notes WHERE id = ?`, id)
	} else {
		row = s.reader().QueryRowContext(ctx, `
			SELECT id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp
			FROM notes WHERE id = ?`, id)
	}
	n, err := s.scanNote(ctx, row)
	if err == sql.ErrNoRows {
		return types.Note{}, false, nil
	}
	if err != nil {
		return types.Note{}, false, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return n, true, nil
}

func (s *Store) scanNote(_ context.Context, row *sql.Row) (types.Note, error) {
	var n types.Note
	var sourceURL, imagePath, deletedAt, serverTS sql.NullString
	if err := row.Scan(&n.ID, &n.Body, &n.Importance, &sourceURL, &imagePath, &n.CreatedAt, &n.UpdatedAt, &deletedAt, &serverTS); err != nil {
		return types.Note{}, err
	}
	if sourceURL.Valid {
		n.SourceURL = &sourceURL.String
	}
	if imagePath.Valid {
		n.ImagePath = &imagePath.String
	}
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.String
	}
	if serverTS.Valid {
		n.ServerTimestamp = &serverTS.String
	}
	return n, nil
}

// UpdateNote applies only the supplied fields, updates updated_at, and
// emits a change-log update. Fails with NotFound if the row is missing
// or soft-deleted.
func (s *Store) UpdateNote(ctx context.Context, id string, u types.NoteUpdate) (types.Note, error) {
	const op = "entity.UpdateNote"

	var updated types.Note
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.scanNote(ctx, tx.QueryRowContext(ctx, `
			SELECT id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp
			FROM notes WHERE id = ? AND deleted_at IS NULL`, id))
		if err == sql.ErrNoRows {
			return synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("note %s not found", id))
		}
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		if full, err := s.checkQueueCapacity(ctx, tx); err != nil || full {
			if err != nil {
				return err
			}
			return synapseerr.New(op, synapseerr.KindQueueFull)
		}

		updated = existing
		if u.Body != nil {
			updated.Body = *u.Body
		}
		if u.Importance != nil {
			updated.Importance = *u.Importance
		}
		if u.SourceURL != nil {
			updated.SourceURL = u.SourceURL
		}
		if u.ImagePath != nil {
			updated.ImagePath = u.ImagePath
		}
		updated.UpdatedAt = s.now()

		if err := noteValidators(op, &updated); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE notes SET body = ?, importance = ?, source_url = ?, image_path = ?, updated_at = ?
			WHERE id = ?`, updated.Body, updated.Importance, updated.SourceURL, updated.ImagePath, updated.UpdatedAt, id); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityNote, id, types.OpUpdate, payload)
		return err
	})
	if err != nil {
		return types.Note{}, err
	}
	return updated, nil
}

// DeleteNote soft-deletes: sets deleted_at = updated_at = now and emits
// a change-log delete. Repeat deletes of an already-deleted note fail
// with NotFound.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	const op = "entity.DeleteNote"

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ? AND deleted_at IS NULL`, id).Scan(&exists); err == sql.ErrNoRows {
			return synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("note %s not found", id))
		} else if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		if full, err := s.checkQueueCapacity(ctx, tx); err != nil || full {
			if err != nil {
				return err
			}
			return synapseerr.New(op, synapseerr.KindQueueFull)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, `UPDATE notes SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, id); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(types.NoteDeletePayload{ID: id, DeletedAt: now})
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityNote, id, types.OpDelete, payload)
		return err
	})
}

// HardDeleteNote physically removes the row. Test-only affordance (spec
// Open Question 3); does not emit a change-log entry.
func (s *Store) HardDeleteNote(ctx context.Context, id string) error {
	const op = "entity.HardDeleteNote"
	_, err := s.reader().ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// ListNotes returns notes matching filters, ordered by updated_at DESC.
func (s *Store) ListNotes(ctx context.Context, f types.ListFilters) ([]types.Note, error) {
	const op = "entity.ListNotes"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp FROM notes WHERE 1=1`
	var args []any
	if !f.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	if f.Importance != nil {
		query += ` AND importance = ?`
		args = append(args, *f.Importance)
	}
	if f.CreatedAfter != nil {
		query += ` AND created_at >= ?`
		args = append(args, *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		query += ` AND created_at < ?`
		args = append(args, *f.CreatedBefore)
	}
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []types.Note
	for rows.Next() {
		var n types.Note
		var sourceURL, imagePath, deletedAt, serverTS sql.NullString
		if err := rows.Scan(&n.ID, &n.Body, &n.Importance, &sourceURL, &imagePath, &n.CreatedAt, &n.UpdatedAt, &deletedAt, &serverTS); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		if sourceURL.Valid {
			n.SourceURL = &sourceURL.String
		}
		if imagePath.Valid {
			n.ImagePath = &imagePath.String
		}
		if deletedAt.Valid {
			n.DeletedAt = &deletedAt.String
		}
		if serverTS.Valid {
			n.ServerTimestamp = &serverTS.String
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// TodayNotes is ListNotes over [midnight, midnight+24h) of the clock's
// current day, interpreted in UTC.
func (s *Store) TodayNotes(ctx context.Context) ([]types.Note, error) {
	now := s.clock.Now().UTC()
	midnight := fmt.Sprintf("%04d-%02d-%02dT00:00:00.000Z", now.Year(), now.Month(), now.Day())
	tomorrow := now.AddDate(0, 0, 1)
	nextMidnight := fmt.Sprintf("%04d-%02d-%02dT00:00:00.000Z", tomorrow.Year(), tomorrow.Month(), tomorrow.Day())

	return s.ListNotes(ctx, types.ListFilters{
		CreatedAfter:  &midnight,
		CreatedBefore: &nextMidnight,
		Limit:         100,
	})
}

// ApplyNoteUpsertRaw inserts or overwrites a note from a pull delta
// without emitting a change-log entry (raw mode, spec §4.5). It does no
// LWW comparison of its own: the row is always written and applied is
// always true, so callers decide beforehand whether the remote copy wins.
func (s *Store) ApplyNoteUpsertRaw(ctx context.Context, tx *sql.Tx, n types.Note) (applied bool, err error) {
	const op = "entity.ApplyNoteUpsertRaw"

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (id, body, importance, source_url, image_path, created_at, updated_at, deleted_at, server_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			importance = excluded.importance,
			source_url = excluded.source_url,
			image_path = excluded.image_path,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			server_timestamp = excluded.server_timestamp`,
		n.ID, n.Body, n.Importance, n.SourceURL, n.ImagePath, n.CreatedAt, n.UpdatedAt, n.DeletedAt, n.ServerTimestamp); err != nil {
		return false, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return true, nil
}

// ApplyNoteDeleteRaw soft-deletes a note from a pull delta: sets
// deleted_at/updated_at/server_timestamp to the delta's updated_at.
func (s *Store) ApplyNoteDeleteRaw(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	const op = "entity.ApplyNoteDeleteRaw"
	if _, err := tx.ExecContext(ctx, `
		UPDATE notes SET deleted_at = ?, updated_at = ?, server_timestamp = ? WHERE id = ?`,
		updatedAt, updatedAt, updatedAt, id); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}
