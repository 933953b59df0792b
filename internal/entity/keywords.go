package entity

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/untoldecay/synapse/internal/dateutil"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
	"github.com/untoldecay/synapse/internal/validation"
)

// getOrCreateKeywordTx returns the id of the keyword named name,
// creating it if necessary. Keywords are created implicitly while
// applying pull deltas (spec §3).
func getOrCreateKeywordTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	const op = "entity.getOrCreateKeyword"

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM keywords WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO keywords (name) VALUES (?)`, name)
	if err != nil {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return res.LastInsertId()
}

// ApplyNoteKeywordUpsertRaw inserts the underlying keyword row if
// missing, then upserts the junction row. There is no conflict
// resolution for note_keyword rows (spec §4.5).
func (s *Store) ApplyNoteKeywordUpsertRaw(ctx context.Context, tx *sql.Tx, noteID, keywordName string, score float64, source types.Source) error {
	const op = "entity.ApplyNoteKeywordUpsertRaw"

	keywordID, err := getOrCreateKeywordTx(ctx, tx, keywordName)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO note_keywords (note_id, keyword_id, score, source) VALUES (?, ?, ?, ?)
		ON CONFLICT(note_id, keyword_id) DO UPDATE SET score = excluded.score, source = excluded.source`,
		noteID, keywordID, score, string(source)); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// ApplyNoteKeywordDeleteRaw parses the composite id "noteId:keywordId"
// and physically deletes the junction row. keywordId here refers to
// the keyword's surrogate id, matching the delete-path convention the
// spec documents (§9 Design Notes, Open Question 4).
func (s *Store) ApplyNoteKeywordDeleteRaw(ctx context.Context, tx *sql.Tx, compositeID string) error {
	const op = "entity.ApplyNoteKeywordDeleteRaw"

	noteID, keywordID, err := parseNoteKeywordID(op, compositeID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_keywords WHERE note_id = ? AND keyword_id = ?`, noteID, keywordID); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

func parseNoteKeywordID(op, compositeID string) (noteID string, keywordID int64, err error) {
	parts := strings.SplitN(compositeID, ":", 2)
	if len(parts) != 2 {
		return "", 0, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("note_keyword entity id %q must be \"noteId:keywordId\"", compositeID))
	}
	id, convErr := strconv.ParseInt(parts[1], 10, 64)
	if convErr != nil {
		return "", 0, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("note_keyword entity id %q has non-integer keyword id: %w", compositeID, convErr))
	}
	return parts[0], id, nil
}

// NoteKeywordEntityID composes the "noteId:keywordId" entity id
// convention symmetrically for both upsert and delete (see DESIGN.md
// for the Open Question 4 assumption this resolves).
func NoteKeywordEntityID(noteID string, keywordID int64) string {
	return fmt.Sprintf("%s:%d", noteID, keywordID)
}

// WeeklyKeyword is one row of a weeklyKeywords result.
type WeeklyKeyword struct {
	Keyword string
	Count   int
}

// WeeklyKeywords joins notes (undeleted, created within the ISO week's
// Mon-Sun) with note_keywords and keywords, grouped by keyword name,
// ordered by count descending. weekKey has format "YYYY-WW".
func (s *Store) WeeklyKeywords(ctx context.Context, weekKey string) ([]WeeklyKeyword, error) {
	const op = "entity.WeeklyKeywords"

	year, week, err := validation.WeekKey(op, weekKey)
	if err != nil {
		return nil, err
	}
	start, end := dateutil.WeekBounds(year, week)
	startStr := start.Format("2006-01-02T15:04:05.000Z")
	endStr := end.Format("2006-01-02T15:04:05.000Z")

	rows, err := s.reader().QueryContext(ctx, `
		SELECT k.name, COUNT(*) AS cnt
		FROM notes n
		JOIN note_keywords nk ON nk.note_id = n.id
		JOIN keywords k ON k.id = nk.keyword_id
		WHERE n.deleted_at IS NULL AND n.created_at >= ? AND n.created_at < ?
		GROUP BY k.name
		ORDER BY cnt DESC`, startStr, endStr)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []WeeklyKeyword
	for rows.Next() {
		var wk WeeklyKeyword
		if err := rows.Scan(&wk.Keyword, &wk.Count); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		out = append(out, wk)
	}
	return out, rows.Err()
}
