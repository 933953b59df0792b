// Package orchestrator coordinates a full sync cycle (C6): a staleness-
// bounded lock, pre-acquisition gates (offline, queue-overloaded),
// push-then-pull sequencing, and throttled auto-triggers wired to
// external network/app-state collaborators.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/syncengine"
)

// LockExpiration is how long a held lock is honored before a new
// sync() call treats it as abandoned and forces release (spec §4.6).
const LockExpiration = 5 * time.Minute

// MinSyncInterval throttles auto-triggered sync calls; manual sync
// bypasses this but still honors the lock and gates.
const MinSyncInterval = 30 * time.Second

// SkipReason enumerates why sync() declined to run.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipOffline         SkipReason = "offline"
	SkipQueueOverloaded SkipReason = "queue_overloaded"
	SkipSyncInProgress  SkipReason = "sync_in_progress"
	SkipThrottled       SkipReason = "throttled"
)

// NetworkMonitor reports connectivity and lets the orchestrator
// register a "connection recovered" auto-trigger callback.
type NetworkMonitor interface {
	IsOffline(ctx context.Context) bool
	OnRecovered(fn func())
}

// AppStateMonitor lets the orchestrator register a "moved to
// foreground" auto-trigger callback.
type AppStateMonitor interface {
	OnForeground(fn func())
}

// Result is the aggregate, never-raised outcome of one sync() call.
type Result struct {
	Skipped    bool
	SkipReason SkipReason
	Push       syncengine.PushSummary
	Pull       syncengine.PullSummary
	Success    bool
	Err        error
}

// Orchestrator is the single process-wide sync coordinator.
type Orchestrator struct {
	Log    *changelog.Log
	Pusher *syncengine.Pusher
	Puller *syncengine.Puller
	Clock  clock.Clock
	Net    NetworkMonitor
	App    AppStateMonitor
	Logger zerolog.Logger

	mu           sync.Mutex
	busy         bool
	lockedAt     time.Time
	lastSyncTime time.Time
}

// New constructs an Orchestrator and registers its auto-trigger
// callbacks with net and app, if non-nil.
func New(log *changelog.Log, pusher *syncengine.Pusher, puller *syncengine.Puller, c clock.Clock, net NetworkMonitor, app AppStateMonitor, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{Log: log, Pusher: pusher, Puller: puller, Clock: c, Net: net, App: app, Logger: logger}
	if net != nil {
		net.OnRecovered(func() { o.autoSync(context.Background()) })
	}
	if app != nil {
		app.OnForeground(func() { o.autoSync(context.Background()) })
	}
	return o
}

// autoSync runs sync() but suppresses the call within MinSyncInterval
// of the last successful trigger (spec §4.6 Auto-triggers).
func (o *Orchestrator) autoSync(ctx context.Context) Result {
	o.mu.Lock()
	since := o.Clock.Now().Sub(o.lastSyncTime)
	o.mu.Unlock()
	if o.lastSyncTime != (time.Time{}) && since < MinSyncInterval {
		return Result{Skipped: true, SkipReason: SkipThrottled}
	}
	return o.Sync(ctx)
}

// Sync runs gates, acquires the lock, runs push then pull, and always
// releases the lock via a scope guard. Manual (user-triggered) calls
// should call Sync directly, bypassing the auto-trigger throttle.
func (o *Orchestrator) Sync(ctx context.Context) Result {
	if o.Net != nil && o.Net.IsOffline(ctx) {
		return Result{Skipped: true, SkipReason: SkipOffline}
	}

	overloaded, err := o.Log.ShouldPauseSync(ctx)
	if err != nil {
		return Result{Err: err}
	}
	if overloaded {
		return Result{Skipped: true, SkipReason: SkipQueueOverloaded}
	}

	release, ok := o.tryAcquire()
	if !ok {
		return Result{Skipped: true, SkipReason: SkipSyncInProgress}
	}
	defer release()

	pushResult := o.Pusher.Push(ctx)
	if !pushResult.Success {
		return Result{Push: pushResult, Success: false, Err: pushResult.Err}
	}

	pullResult := o.Puller.Pull(ctx)

	o.mu.Lock()
	o.lastSyncTime = o.Clock.Now()
	o.mu.Unlock()

	return Result{
		Push:    pushResult,
		Pull:    pullResult,
		Success: pushResult.Success && pullResult.Success,
		Err:     pullResult.Err,
	}
}

// tryAcquire takes the lock unless already busy and not stale. A busy
// lock older than LockExpiration is forced open with a warning, per
// spec §4.6.
func (o *Orchestrator) tryAcquire() (release func(), ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.Clock.Now()
	if o.busy {
		if now.Sub(o.lockedAt) < LockExpiration {
			return nil, false
		}
		o.Logger.Warn().Time("locked_at", o.lockedAt).Msg("forcing release of stale sync lock")
	}

	o.busy = true
	o.lockedAt = now
	return func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}, true
}
