package netmonitor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/netmonitor"
)

func TestAlwaysOnlineNeverReportsOffline(t *testing.T) {
	m := netmonitor.AlwaysOnline{}
	assert.False(t, m.IsOffline(context.Background()))
}

func TestNoopAppStateDoesNotPanicOnRegister(t *testing.T) {
	var called bool
	netmonitor.NoopAppState{}.OnForeground(func() { called = true })
	assert.False(t, called, "a no-op registration must never invoke the callback itself")
}

func TestFileSentinelMonitorReflectsFilePresence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.sentinel")
	m := netmonitor.NewFileSentinelMonitor(path, zerolog.Nop())

	assert.False(t, m.IsOffline(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	assert.True(t, m.IsOffline(context.Background()))

	require.NoError(t, os.Remove(path))
	assert.False(t, m.IsOffline(context.Background()))
}

func TestFileSentinelMonitorFiresOnRecoveredTransition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.sentinel")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	m := netmonitor.NewFileSentinelMonitor(path, zerolog.Nop())

	recovered := make(chan struct{}, 1)
	m.OnRecovered(func() { recovered <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	require.NoError(t, os.Remove(path))

	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatal("OnRecovered callback did not fire after sentinel removal")
	}
}
