// Package fts implements full-text search over notes.body (C3). The
// FTS5 virtual table and its insert/update/delete triggers are defined
// in internal/store's schema and kept in application code only as the
// query layer — the mirroring itself stays in the database, per the
// teacher's trigger-based design.
//
// Grounded on internal/queries/search.go's bm25()/snippet() query
// shape.
package fts

import (
	"context"
	"database/sql"
	"strings"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

const (
	maxSearchHistory = 50
	snippetTokens    = 32
	snippetOpen      = "<mark>"
	snippetClose     = "</mark>"
	snippetEllipsis  = "..."
)

// Index is the FTS query layer.
type Index struct {
	store *store.Store
	clock clock.Clock
}

func New(s *store.Store, c clock.Clock) *Index {
	return &Index{store: s, clock: c}
}

// Result is one search hit.
type Result struct {
	Note    types.Note
	Snippet string
	Rank    float64
}

// Search matches query against the FTS index, filters deleted_at IS
// NULL, orders by ascending rank (lower = better), and returns up to
// limit results. Empty/whitespace-only queries return nil without
// executing the match.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	const op = "fts.Search"

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := ix.store.DB().QueryContext(ctx, `
		SELECT n.id, n.body, n.importance, n.source_url, n.image_path, n.created_at, n.updated_at, n.deleted_at, n.server_timestamp,
		       snippet(notes_fts, 0, ?, ?, ?, ?) AS snip,
		       bm25(notes_fts) AS rank
		FROM notes_fts
		JOIN notes n ON n.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ? AND n.deleted_at IS NULL
		ORDER BY rank ASC
		LIMIT ?`, snippetOpen, snippetClose, snippetEllipsis, snippetTokens, trimmed, limit)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var n types.Note
		var sourceURL, imagePath, deletedAt, serverTS sql.NullString
		var snip string
		var rank float64
		if err := rows.Scan(&n.ID, &n.Body, &n.Importance, &sourceURL, &imagePath, &n.CreatedAt, &n.UpdatedAt, &deletedAt, &serverTS, &snip, &rank); err != nil {
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
		out = append(out, Result{Note: n, Snippet: snip, Rank: rank})
	}
	return out, rows.Err()
}

// Count returns the number of matching undeleted notes for query, using
// the same filter semantics as Search.
func (ix *Index) Count(ctx context.Context, query string) (int, error) {
	const op = "fts.Count"

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return 0, nil
	}

	var n int
	err := ix.store.DB().QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notes_fts
		JOIN notes n ON n.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ? AND n.deleted_at IS NULL`, trimmed).Scan(&n)
	if err != nil {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return n, nil
}

// SaveHistory trims and stores a non-empty query, then trims rows
// beyond the 50 most recent.
func (ix *Index) SaveHistory(ctx context.Context, query string) error {
	const op = "fts.SaveHistory"

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	return ix.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := clock.ISO8601Milli(ix.clock.Now())
		if _, err := tx.ExecContext(ctx, `INSERT INTO search_history (query, searched_at) VALUES (?, ?)`, trimmed, now); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM search_history WHERE id NOT IN (
				SELECT id FROM search_history ORDER BY searched_at DESC, id DESC LIMIT ?
			)`, maxSearchHistory); err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		return nil
	})
}

// GetHistory returns the n most recent distinct queries, most recent
// first.
func (ix *Index) GetHistory(ctx context.Context, n int) ([]string, error) {
	const op = "fts.GetHistory"
	if n <= 0 {
		n = 10
	}
	rows, err := ix.store.DB().QueryContext(ctx, `
		SELECT query FROM (
			SELECT query, MAX(searched_at) AS latest FROM search_history GROUP BY query
		) ORDER BY latest DESC LIMIT ?`, n)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Suggestions returns distinct history rows whose query starts with
// prefix. SQL LIKE metacharacters in prefix are escaped so user input
// cannot be interpreted as wildcards.
func (ix *Index) Suggestions(ctx context.Context, prefix string, n int) ([]string, error) {
	const op = "fts.Suggestions"
	if n <= 0 {
		n = 5
	}

	escaped := escapeLike(prefix)
	rows, err := ix.store.DB().QueryContext(ctx, `
		SELECT DISTINCT query FROM search_history
		WHERE query LIKE ? ESCAPE '\' LIMIT ?`, escaped+"%", n)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ClearHistory empties the search_history table.
func (ix *Index) ClearHistory(ctx context.Context) error {
	const op = "fts.ClearHistory"
	if _, err := ix.store.DB().ExecContext(ctx, `DELETE FROM search_history`); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}
