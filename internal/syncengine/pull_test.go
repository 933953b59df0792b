package syncengine_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/entity"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/syncengine"
	"github.com/untoldecay/synapse/internal/types"
)

type scriptedTransport struct {
	pages []syncengine.PullResponse
	idx   int
}

func (s *scriptedTransport) Push(ctx context.Context, req syncengine.PushRequest) (syncengine.PushResponse, error) {
	return syncengine.PushResponse{}, nil
}

func (s *scriptedTransport) Pull(ctx context.Context, req syncengine.PullRequest) (syncengine.PullResponse, error) {
	resp := s.pages[s.idx]
	s.idx++
	return resp, nil
}

func setupPuller(t *testing.T, transport syncengine.Transport) (*store.Store, *entity.Store, *syncengine.Puller) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	log := changelog.New(db, c, zerolog.Nop())
	es := entity.New(db, log, c)
	return db, es, syncengine.NewPuller(db, es, transport, c, "device-1")
}

func noteDelta(n types.Note) syncengine.Delta {
	data, _ := json.Marshal(n)
	return syncengine.Delta{
		EntityType:      string(types.EntityNote),
		EntityID:        n.ID,
		Operation:       string(types.DeltaUpsert),
		Data:            data,
		UpdatedAt:       n.UpdatedAt,
		ServerTimestamp: "",
	}
}

func TestPullAppliesUpsertAndAdvancesCheckpoint(t *testing.T) {
	ctx := context.Background()
	n := types.Note{ID: "note-1", Body: "from server", Importance: 1, CreatedAt: "2026-01-01T00:00:00.000Z", UpdatedAt: "2026-01-01T00:00:00.000Z"}
	transport := &scriptedTransport{pages: []syncengine.PullResponse{
		{HasMore: false, NewCheckpoint: "cp-1", Changes: []syncengine.Delta{noteDelta(n)}},
	}}

	db, es, puller := setupPuller(t, transport)

	summary := puller.Pull(ctx)
	require.NoError(t, summary.Err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, "cp-1", summary.NewCheckpoint)

	got, err := es.GetNote(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "from server", got.Body)

	var stored string
	require.NoError(t, db.DB().QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = 'checkpoint'`).Scan(&stored))
	assert.Equal(t, "cp-1", stored)
}

func TestPullDrainsMultiplePages(t *testing.T) {
	ctx := context.Background()
	n1 := types.Note{ID: "note-1", Body: "page one", Importance: 1, CreatedAt: "2026-01-01T00:00:00.000Z", UpdatedAt: "2026-01-01T00:00:00.000Z"}
	n2 := types.Note{ID: "note-2", Body: "page two", Importance: 1, CreatedAt: "2026-01-01T00:00:00.000Z", UpdatedAt: "2026-01-01T00:00:00.000Z"}
	transport := &scriptedTransport{pages: []syncengine.PullResponse{
		{HasMore: true, NewCheckpoint: "cp-1", Changes: []syncengine.Delta{noteDelta(n1)}},
		{HasMore: false, NewCheckpoint: "cp-2", Changes: []syncengine.Delta{noteDelta(n2)}},
	}}

	_, es, puller := setupPuller(t, transport)

	summary := puller.Pull(ctx)
	require.NoError(t, summary.Err)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, "cp-2", summary.NewCheckpoint)

	_, err := es.GetNote(ctx, "note-1")
	require.NoError(t, err)
	_, err = es.GetNote(ctx, "note-2")
	require.NoError(t, err)
}

func TestPullLocalNewerWinsOverRemoteUpsert(t *testing.T) {
	ctx := context.Background()

	stale := types.Note{ID: "note-1", Body: "stale remote edit", Importance: types.ImportanceLow, CreatedAt: "2025-01-01T00:00:00.000Z", UpdatedAt: "2020-01-01T00:00:00.000Z"}
	transport := &scriptedTransport{pages: []syncengine.PullResponse{
		{HasMore: false, NewCheckpoint: "cp-1", Changes: []syncengine.Delta{noteDelta(stale)}},
	}}
	db, es, puller := setupPuller(t, transport)

	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (id, body, importance, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"note-1", "local edit, newer", types.ImportanceLow, "2025-01-01T00:00:00.000Z", "2026-06-01T00:00:00.000Z")
		return err
	}))

	summary := puller.Pull(ctx)
	require.NoError(t, summary.Err)

	got, err := es.GetNote(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "local edit, newer", got.Body, "a remote delta older than the local row must not overwrite it")
}

func TestPullRemoteNewerWinsOverLocalUpsert(t *testing.T) {
	ctx := context.Background()

	fresh := types.Note{ID: "note-1", Body: "remote edit, newer", Importance: types.ImportanceLow, CreatedAt: "2025-01-01T00:00:00.000Z", UpdatedAt: "2026-06-01T00:00:00.000Z"}
	transport := &scriptedTransport{pages: []syncengine.PullResponse{
		{HasMore: false, NewCheckpoint: "cp-1", Changes: []syncengine.Delta{noteDelta(fresh)}},
	}}
	db, es, puller := setupPuller(t, transport)

	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (id, body, importance, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"note-1", "stale local edit", types.ImportanceLow, "2025-01-01T00:00:00.000Z", "2020-01-01T00:00:00.000Z")
		return err
	}))

	summary := puller.Pull(ctx)
	require.NoError(t, summary.Err)

	got, err := es.GetNote(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "remote edit, newer", got.Body, "a remote delta newer than the local row must overwrite it entirely")

	rows, err := db.DB().QueryContext(ctx, `SELECT resolution FROM conflict_log WHERE entity_id = ?`, "note-1")
	require.NoError(t, err)
	defer rows.Close()

	var resolutions []string
	for rows.Next() {
		var r string
		require.NoError(t, rows.Scan(&r))
		resolutions = append(resolutions, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, resolutions, 1, "exactly one conflict_log row must be recorded for this delta")
	assert.Equal(t, string(types.ResolutionRemoteWins), resolutions[0])
}

func relationDelta(r types.Relation) syncengine.Delta {
	data, _ := json.Marshal(r)
	return syncengine.Delta{
		EntityType: string(types.EntityRelation),
		EntityID:   r.ID,
		Operation:  string(types.DeltaUpsert),
		Data:       data,
		UpdatedAt:  r.CreatedAt,
	}
}

func TestPullRelationUpsertUsesCreatedAtForLWW(t *testing.T) {
	ctx := context.Background()

	db, es, puller := setupPuller(t, &scriptedTransport{})

	from, err := es.CreateNote(ctx, "note a", 1, nil, nil)
	require.NoError(t, err)
	to, err := es.CreateNote(ctx, "note b", 1, nil, nil)
	require.NoError(t, err)

	older := types.Relation{ID: "rel-1", FromNoteID: from.ID, ToNoteID: to.ID, RelationType: types.RelationRelated, Source: types.SourceManual, CreatedAt: "2020-01-01T00:00:00.000Z"}
	newer := types.Relation{ID: "rel-1", FromNoteID: from.ID, ToNoteID: to.ID, RelationType: types.RelationRelated, Source: types.SourceManual, CreatedAt: "2026-06-01T00:00:00.000Z"}

	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO relations (id, from_note_id, to_note_id, relation_type, rationale, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			older.ID, older.FromNoteID, older.ToNoteID, string(older.RelationType), nil, string(older.Source), older.CreatedAt)
		return err
	}))

	puller.Transport.(*scriptedTransport).pages = []syncengine.PullResponse{
		{HasMore: false, NewCheckpoint: "cp-1", Changes: []syncengine.Delta{relationDelta(newer)}},
	}

	summary := puller.Pull(ctx)
	require.NoError(t, summary.Err)

	var gotCreatedAt string
	require.NoError(t, db.DB().QueryRowContext(ctx, `SELECT created_at FROM relations WHERE id = ?`, "rel-1").Scan(&gotCreatedAt))
	assert.Equal(t, newer.CreatedAt, gotCreatedAt, "a relation delta with a later created_at must win over the existing row")
}
