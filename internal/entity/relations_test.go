package entity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

func TestCreateRelationRoundTrips(t *testing.T) {
	ctx := context.Background()
	_, log, es := setupEntityStore(t, clock.System{})

	from, err := es.CreateNote(ctx, "from note", types.ImportanceLow, nil, nil)
	require.NoError(t, err)
	to, err := es.CreateNote(ctx, "to note", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	r, err := es.CreateRelation(ctx, from.ID, to.ID, types.RelationRelated, nil, types.SourceManual)
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	fetched, err := es.GetRelation(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, from.ID, fetched.FromNoteID)
	require.Equal(t, to.ID, fetched.ToNoteID)

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3, "two note inserts plus one relation insert")
}

func TestCreateRelationRejectsSelfRelation(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	n, err := es.CreateNote(ctx, "solo", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	_, err = es.CreateRelation(ctx, n.ID, n.ID, types.RelationRelated, nil, types.SourceManual)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}

func TestCreateRelationRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	from, err := es.CreateNote(ctx, "a", types.ImportanceLow, nil, nil)
	require.NoError(t, err)
	to, err := es.CreateNote(ctx, "b", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	_, err = es.CreateRelation(ctx, from.ID, to.ID, types.RelationType("bogus"), nil, types.SourceManual)
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}

func TestListRelationsForNoteReturnsBothDirections(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	a, err := es.CreateNote(ctx, "a", types.ImportanceLow, nil, nil)
	require.NoError(t, err)
	b, err := es.CreateNote(ctx, "b", types.ImportanceLow, nil, nil)
	require.NoError(t, err)
	c, err := es.CreateNote(ctx, "c", types.ImportanceLow, nil, nil)
	require.NoError(t, err)

	_, err = es.CreateRelation(ctx, a.ID, b.ID, types.RelationRelated, nil, types.SourceManual)
	require.NoError(t, err)
	_, err = es.CreateRelation(ctx, c.ID, a.ID, types.RelationSimilar, nil, types.SourceAI)
	require.NoError(t, err)

	rels, err := es.ListRelationsForNote(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rels, 2, "relations touching a as either endpoint must be returned")
}
