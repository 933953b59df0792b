package syncengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/untoldecay/synapse/internal/syncengine"
)

func ts(s string) *string { return &s }

func TestShouldUpdateUpdatedAtDecides(t *testing.T) {
	local := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", Key: "a"}
	remote := syncengine.LWWRecord{UpdatedAt: "2026-01-02T00:00:00.000Z", Key: "a"}
	assert.True(t, syncengine.ShouldUpdate(local, remote))
	assert.False(t, syncengine.ShouldUpdate(remote, local))
}

func TestShouldUpdateFallsBackToServerTimestamp(t *testing.T) {
	local := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", ServerTimestamp: ts("2026-01-01T00:00:05.000Z"), Key: "a"}
	remote := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", ServerTimestamp: ts("2026-01-01T00:00:10.000Z"), Key: "a"}
	assert.True(t, syncengine.ShouldUpdate(local, remote))
}

func TestShouldUpdateMissingServerTimestampFallsBackToUpdatedAt(t *testing.T) {
	local := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", Key: "a"}
	remote := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", ServerTimestamp: ts("2025-01-01T00:00:00.000Z"), Key: "a"}
	// remote's effective timestamp (its own server_timestamp) is older than
	// local's effective timestamp (local's updated_at, since local has no
	// server_timestamp), so remote loses.
	assert.False(t, syncengine.ShouldUpdate(local, remote))
}

func TestShouldUpdateTieBreaksOnKey(t *testing.T) {
	local := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", Key: "a"}
	remote := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", Key: "b"}
	assert.True(t, syncengine.ShouldUpdate(local, remote))
	assert.False(t, syncengine.ShouldUpdate(remote, local))
}

func TestShouldUpdateIdenticalReturnsFalse(t *testing.T) {
	rec := syncengine.LWWRecord{UpdatedAt: "2026-01-01T00:00:00.000Z", Key: "a"}
	assert.False(t, syncengine.ShouldUpdate(rec, rec))
}
