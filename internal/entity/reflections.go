package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
	"github.com/untoldecay/synapse/internal/validation"
)

// CreateReflection fails with Duplicate if the date already has a row.
func (s *Store) CreateReflection(ctx context.Context, date, content string) (types.Reflection, error) {
	const op = "entity.CreateReflection"

	if err := validation.Date(op, date); err != nil {
		return types.Reflection{}, err
	}
	now := s.now()
	r := types.Reflection{Date: date, Content: content, CreatedAt: now, UpdatedAt: now}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM reflections WHERE date = ?`, date).Scan(&exists)
		if err == nil {
			return synapseerr.Wrap(op, synapseerr.KindDuplicate, fmt.Errorf("reflection for %s already exists", date))
		}
		if err != sql.ErrNoRows {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		if full, err := s.checkQueueCapacity(ctx, tx); err != nil || full {
			if err != nil {
				return err
			}
			return synapseerr.New(op, synapseerr.KindQueueFull)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reflections (date, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			r.Date, r.Content, r.CreatedAt, r.UpdatedAt); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(r)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityReflection, r.Date, types.OpInsert, payload)
		return err
	})
	if err != nil {
		return types.Reflection{}, err
	}
	return r, nil
}

// UpdateReflection fails with NotFound if the date has no row.
func (s *Store) UpdateReflection(ctx context.Context, date, content string) (types.Reflection, error) {
	const op = "entity.UpdateReflection"

	var updated types.Reflection
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var createdAt string
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM reflections WHERE date = ?`, date).Scan(&createdAt)
		if err == sql.ErrNoRows {
			return synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("reflection for %s not found", date))
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

		updated = types.Reflection{Date: date, Content: content, CreatedAt: createdAt, UpdatedAt: s.now()}
		if _, err := tx.ExecContext(ctx, `UPDATE reflections SET content = ?, updated_at = ? WHERE date = ?`, updated.Content, updated.UpdatedAt, date); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		_, err = s.log.AppendTx(ctx, tx, types.EntityReflection, date, types.OpUpdate, payload)
		return err
	})
	if err != nil {
		return types.Reflection{}, err
	}
	return updated, nil
}

// GetReflectionsByRange returns reflections with start <= date <= end,
// ordered by date descending. Requires start <= end.
func (s *Store) GetReflectionsByRange(ctx context.Context, start, end string) ([]types.Reflection, error) {
	const op = "entity.GetReflectionsByRange"
	if start > end {
		return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("start %s must be <= end %s", start, end))
	}

	rows, err := s.reader().QueryContext(ctx, `
		SELECT date, content, created_at, updated_at FROM reflections
		WHERE date >= ? AND date <= ? ORDER BY date DESC`, start, end)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()
	return scanReflections(op, rows)
}

// RecentReflections returns the n most recent reflections.
func (s *Store) RecentReflections(ctx context.Context, n int) ([]types.Reflection, error) {
	const op = "entity.RecentReflections"
	if n <= 0 {
		n = 10
	}
	rows, err := s.reader().QueryContext(ctx, `
		SELECT date, content, created_at, updated_at FROM reflections
		ORDER BY date DESC LIMIT ?`, n)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()
	return scanReflections(op, rows)
}

func scanReflections(op string, rows *sql.Rows) ([]types.Reflection, error) {
	var out []types.Reflection
	for rows.Next() {
		var r types.Reflection
		if err := rows.Scan(&r.Date, &r.Content, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApplyReflectionUpsertRaw inserts or overwrites a reflection from a
// pull delta without emitting a change-log entry.
func (s *Store) ApplyReflectionUpsertRaw(ctx context.Context, tx *sql.Tx, r types.Reflection) error {
	const op = "entity.ApplyReflectionUpsertRaw"
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reflections (date, content, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		r.Date, r.Content, r.CreatedAt, r.UpdatedAt); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// ApplyReflectionDeleteRaw physically deletes a reflection from a pull
// delta.
func (s *Store) ApplyReflectionDeleteRaw(ctx context.Context, tx *sql.Tx, date string) error {
	const op = "entity.ApplyReflectionDeleteRaw"
	if _, err := tx.ExecContext(ctx, `DELETE FROM reflections WHERE date = ?`, date); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// GetReflectionRaw returns a reflection by date within tx, for LWW
// comparison during pull apply.
func (s *Store) GetReflectionRaw(ctx context.Context, tx *sql.Tx, date string) (r types.Reflection, ok bool, err error) {
	row := tx.QueryRowContext(ctx, `SELECT date, content, created_at, updated_at FROM reflections WHERE date = ?`, date)
	if err := row.Scan(&r.Date, &r.Content, &r.CreatedAt, &r.UpdatedAt); err == sql.ErrNoRows {
		return types.Reflection{}, false, nil
	} else if err != nil {
		return types.Reflection{}, false, synapseerr.Wrap("entity.GetReflectionRaw", synapseerr.KindDatabase, err)
	}
	return r, true, nil
}
