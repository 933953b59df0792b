package entity_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/entity"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

func setupEntityStore(t *testing.T, c clock.Clock) (*store.Store, *changelog.Log, *entity.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := changelog.New(db, c, zerolog.Nop())
	return db, log, entity.New(db, log, c)
}

func TestCreateNoteEmitsChangeLogInSameTransaction(t *testing.T) {
	ctx := context.Background()
	c := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	_, log, es := setupEntityStore(t, c)

	n, err := es.CreateNote(ctx, "first note", types.ImportanceMedium, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, types.EntityNote, pending[0].EntityType)
	require.Equal(t, n.ID, pending[0].EntityID)
	require.Equal(t, types.OpInsert, pending[0].Operation)
}

func TestCreateNoteRejectsEmptyBody(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.CreateNote(ctx, "   ", types.ImportanceMedium, nil, nil)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}

func TestCreateNoteRejectsOutOfRangeImportance(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.CreateNote(ctx, "ok", 7, nil, nil)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}

func TestUpdateNoteAppliesOnlyProvidedFields(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	n, err := es.CreateNote(ctx, "original", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	newBody := "revised"
	updated, err := es.UpdateNote(ctx, n.ID, types.NoteUpdate{Body: &newBody})
	require.NoError(t, err)
	require.Equal(t, newBody, updated.Body)
	require.Equal(t, types.ImportanceLow, updated.Importance, "unset fields must remain unchanged")
}

func TestDeleteNoteIsSoftAndIdempotentlyRejected(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	n, err := es.CreateNote(ctx, "to delete", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	require.NoError(t, es.DeleteNote(ctx, n.ID))

	_, err = es.GetNote(ctx, n.ID)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindNotFound, synapseerr.Of(err))

	err = es.DeleteNote(ctx, n.ID)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindNotFound, synapseerr.Of(err))
}

func TestHardDeleteNoteDoesNotEmitChangeLogEntry(t *testing.T) {
	ctx := context.Background()
	_, log, es := setupEntityStore(t, clock.System{})

	n, err := es.CreateNote(ctx, "ephemeral", types.ImportanceLow, nil, nil)
	require.NoError(t, err)
	require.NoError(t, log.MarkSynced(ctx, mustPendingIDs(t, ctx, log)))

	require.NoError(t, es.HardDeleteNote(ctx, n.ID))

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending, "hard delete must not be logged per spec Open Question 3")
}

func mustPendingIDs(t *testing.T, ctx context.Context, log *changelog.Log) []int64 {
	t.Helper()
	entries, err := log.Pending(ctx, 100)
	require.NoError(t, err)
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
