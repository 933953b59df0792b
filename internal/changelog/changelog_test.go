package changelog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/types"
)

func setupLog(t *testing.T) (*store.Store, *changelog.Log) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return db, changelog.New(db, c, zerolog.Nop())
}

func TestPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	_, err := log.Log(ctx, types.EntityNote, "note-1", types.OpInsert, []byte(`{}`))
	require.NoError(t, err)
	_, err = log.Log(ctx, types.EntityReflection, "2026-01-01", types.OpInsert, []byte(`{}`))
	require.NoError(t, err)
	_, err = log.Log(ctx, types.EntitySearchHistory, "q1", types.OpInsert, []byte(`{}`))
	require.NoError(t, err)

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	// reflection (priority 3) drains before note (priority 2) before
	// search_history (priority 1), even though it was logged second.
	if pending[0].EntityType != types.EntityReflection {
		t.Fatalf("expected reflection first, got %s", pending[0].EntityType)
	}
	if pending[1].EntityType != types.EntityNote {
		t.Fatalf("expected note second, got %s", pending[1].EntityType)
	}
	if pending[2].EntityType != types.EntitySearchHistory {
		t.Fatalf("expected search_history last, got %s", pending[2].EntityType)
	}
}

func TestMarkSyncedExcludesFromPending(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	id, err := log.Log(ctx, types.EntityNote, "note-1", types.OpInsert, []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, log.MarkSynced(ctx, []int64{id}))

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestIncrementRetryExcludesAfterMaxRetryCount(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	id, err := log.Log(ctx, types.EntityNote, "note-1", types.OpInsert, []byte(`{}`))
	require.NoError(t, err)

	for i := 0; i < changelog.SyncMaxRetryCount; i++ {
		require.NoError(t, log.IncrementRetry(ctx, id, "transient failure"))
	}

	pending, err := log.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending, "entry should drop out of Pending once retry_count reaches the max")

	failed, err := log.FailedEntries(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, changelog.SyncMaxRetryCount, failed[0].RetryCount)
}

func TestPendingBatchRespectsByteBound(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	big := make([]byte, 900)
	for i := range big {
		big[i] = 'x'
	}
	_, err := log.Log(ctx, types.EntityNote, "note-1", types.OpInsert, big)
	require.NoError(t, err)
	_, err = log.Log(ctx, types.EntityNote, "note-2", types.OpInsert, big)
	require.NoError(t, err)

	batch, err := log.PendingBatch(ctx, 10, 1000)
	require.NoError(t, err)
	require.Len(t, batch, 1, "second entry should not fit the byte budget alongside the first")
}

func TestPendingBatchAlwaysAdmitsFirstOversizedEntry(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	huge := make([]byte, 2_000_000)
	_, err := log.Log(ctx, types.EntityNote, "note-1", types.OpInsert, huge)
	require.NoError(t, err)

	batch, err := log.PendingBatch(ctx, 10, changelog.SyncBatchMaxBytes)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestQueueNotFullWhenEmpty(t *testing.T) {
	ctx := context.Background()
	_, log := setupLog(t)

	status, err := log.QueueStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.Full)

	paused, err := log.ShouldPauseSync(ctx)
	require.NoError(t, err)
	require.False(t, paused)
}
