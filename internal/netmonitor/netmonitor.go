// Package netmonitor provides the orchestrator's NetworkMonitor seam:
// an always-online production default, and a sentinel-file monitor
// for simulating offline conditions in tests and local development.
//
// Grounded on the teacher's cmd/bd/daemon_watcher.go FileWatcher: both
// watch a filesystem path with fsnotify and fall back to polling if
// the watcher cannot be established, debouncing redundant events.
package netmonitor

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// AlwaysOnline never reports offline and never fires OnRecovered; it
// is the production default when no connectivity probe is needed
// because the host platform's HTTP stack already surfaces network
// errors through Transport.
type AlwaysOnline struct{}

func (AlwaysOnline) IsOffline(context.Context) bool { return false }
func (AlwaysOnline) OnRecovered(func())             {}

// FileSentinelMonitor treats the presence of a sentinel file as
// "offline": touch it to simulate a dropped connection, remove it to
// simulate recovery. Falls back to a polling loop if the fsnotify
// watcher cannot be established, following the teacher's
// FileWatcher fallback behavior.
type FileSentinelMonitor struct {
	path         string
	pollInterval time.Duration
	logger       zerolog.Logger

	mu        sync.Mutex
	callbacks []func()
	cancel    context.CancelFunc
}

// NewFileSentinelMonitor constructs a monitor watching path for
// creation (offline) and removal (recovered).
func NewFileSentinelMonitor(path string, logger zerolog.Logger) *FileSentinelMonitor {
	return &FileSentinelMonitor{path: path, pollInterval: 2 * time.Second, logger: logger}
}

func (m *FileSentinelMonitor) IsOffline(context.Context) bool {
	_, err := os.Stat(m.path)
	return err == nil
}

func (m *FileSentinelMonitor) OnRecovered(fn func()) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Start begins watching until ctx is canceled. Safe to call once.
func (m *FileSentinelMonitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Warn().Err(err).Msg("fsnotify unavailable, falling back to polling for offline sentinel")
		go m.pollLoop(ctx)
		return nil
	}
	if err := watcher.Add(parentDir(m.path)); err != nil {
		watcher.Close()
		go m.pollLoop(ctx)
		return nil
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *FileSentinelMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *FileSentinelMonitor) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	wasOffline := m.IsOffline(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != m.path {
				continue
			}
			m.checkTransition(&wasOffline)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("offline sentinel watcher error")
		}
	}
}

func (m *FileSentinelMonitor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	wasOffline := m.IsOffline(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkTransition(&wasOffline)
		}
	}
}

func (m *FileSentinelMonitor) checkTransition(wasOffline *bool) {
	isOffline := m.IsOffline(context.Background())
	if *wasOffline && !isOffline {
		m.mu.Lock()
		callbacks := append([]func(){}, m.callbacks...)
		m.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	}
	*wasOffline = isOffline
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// NoopAppState is the production AppStateMonitor for synctl, a
// headless CLI with no foreground/background lifecycle; callers that
// embed synapse in a GUI or mobile shell should supply their own.
type NoopAppState struct{}

func (NoopAppState) OnForeground(func()) {}
