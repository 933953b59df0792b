package entity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/synapseerr"
)

func TestCreateReflectionRejectsDuplicateDate(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.CreateReflection(ctx, "2026-01-01", "first pass")
	require.NoError(t, err)

	_, err = es.CreateReflection(ctx, "2026-01-01", "second pass")
	require.Error(t, err)
	require.Equal(t, synapseerr.KindDuplicate, synapseerr.Of(err))
}

func TestCreateReflectionRejectsMalformedDate(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.CreateReflection(ctx, "2026-02-30", "no such day")
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}

func TestUpdateReflectionRequiresExistingDate(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.UpdateReflection(ctx, "2026-01-01", "edited")
	require.Error(t, err)
	require.Equal(t, synapseerr.KindNotFound, synapseerr.Of(err))
}

func TestRecentReflectionsOrdersByDateDescending(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.CreateReflection(ctx, "2026-01-01", "oldest")
	require.NoError(t, err)
	_, err = es.CreateReflection(ctx, "2026-01-03", "newest")
	require.NoError(t, err)
	_, err = es.CreateReflection(ctx, "2026-01-02", "middle")
	require.NoError(t, err)

	recent, err := es.RecentReflections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "2026-01-03", recent[0].Date)
	require.Equal(t, "2026-01-02", recent[1].Date)
	require.Equal(t, "2026-01-01", recent[2].Date)
}

func TestGetReflectionsByRangeRejectsInvertedRange(t *testing.T) {
	ctx := context.Background()
	_, _, es := setupEntityStore(t, clock.System{})

	_, err := es.GetReflectionsByRange(ctx, "2026-01-10", "2026-01-01")
	require.Error(t, err)
	require.Equal(t, synapseerr.KindValidation, synapseerr.Of(err))
}
