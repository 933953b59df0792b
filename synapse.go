// Package synapse provides the public facade over the local data
// engine: open a database, run Notes/Relations/Reflections/Keywords
// CRUD and full-text search, and drive push/pull sync against a
// remote server.
package synapse

import (
	"context"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/entity"
	"github.com/untoldecay/synapse/internal/fts"
	"github.com/untoldecay/synapse/internal/idgen"
	"github.com/untoldecay/synapse/internal/netmonitor"
	"github.com/untoldecay/synapse/internal/orchestrator"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/syncengine"
	"github.com/untoldecay/synapse/internal/types"

	"github.com/rs/zerolog"
)

// Core entity types, re-exported so callers never import internal/types.
type (
	Note               = types.Note
	NoteUpdate         = types.NoteUpdate
	Keyword            = types.Keyword
	NoteKeyword        = types.NoteKeyword
	Relation           = types.Relation
	Reflection         = types.Reflection
	RelationType       = types.RelationType
	Source             = types.Source
	ListFilters        = types.ListFilters
	ChangeLogEntry     = types.ChangeLogEntry
	ConflictLogEntry   = types.ConflictLogEntry
	SearchHistoryEntry = types.SearchHistoryEntry
)

// Importance levels.
const (
	ImportanceLow    = types.ImportanceLow
	ImportanceMedium = types.ImportanceMedium
	ImportanceHigh   = types.ImportanceHigh
)

// Relation type constants.
const (
	RelationRelated     = types.RelationRelated
	RelationParentChild = types.RelationParentChild
	RelationSimilar     = types.RelationSimilar
	RelationCustom      = types.RelationCustom
)

// Source constants.
const (
	SourceAI     = types.SourceAI
	SourceManual = types.SourceManual
)

// Error kinds and sentinels, re-exported from internal/synapseerr.
type Error = synapseerr.Error

var (
	ErrValidation      = synapseerr.ErrValidation
	ErrNotFound        = synapseerr.ErrNotFound
	ErrDuplicate       = synapseerr.ErrDuplicate
	ErrQueueFull       = synapseerr.ErrQueueFull
	ErrNetwork         = synapseerr.ErrNetwork
	ErrTimeout         = synapseerr.ErrTimeout
	ErrUnauthorized    = synapseerr.ErrUnauthorized
	ErrServer          = synapseerr.ErrServer
	ErrConflictResolve = synapseerr.ErrConflictResolve
)

// Engine bundles every component into one handle: the opened
// database, entity CRUD, full-text search, the outgoing change log,
// and (once WithSync is configured) the sync orchestrator.
type Engine struct {
	store     *store.Store
	clock     clock.Clock
	Entities  *entity.Store
	Search    *fts.Index
	Changelog *changelog.Log
	Sync      *orchestrator.Orchestrator
}

// Options configures Open.
type Options struct {
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Open initializes (or reuses) the SQLite database at path, applying
// schema/pragmas/indexes idempotently, and returns a ready Engine
// without sync configured. Call WithSync to enable push/pull.
func Open(ctx context.Context, path string, opts Options) (*Engine, error) {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}

	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	cl := changelog.New(db, c, opts.Logger)
	es := entity.New(db, cl, c)
	idx := fts.New(db, c)

	return &Engine{store: db, clock: c, Entities: es, Search: idx, Changelog: cl}, nil
}

// WithSync wires a transport and device-id secure store into the
// engine's orchestrator, enabling Engine.Sync. net/app may be nil to
// fall back to netmonitor.AlwaysOnline/NoopAppState.
func (e *Engine) WithSync(transport syncengine.Transport, deviceStore idgen.SecureStore, net orchestrator.NetworkMonitor, app orchestrator.AppStateMonitor, logger zerolog.Logger) error {
	deviceID, err := idgen.DeviceID(deviceStore)
	if err != nil {
		return err
	}

	pusher := syncengine.NewPusher(e.Changelog, transport, deviceID)
	puller := syncengine.NewPuller(e.store, e.Entities, transport, e.clock, deviceID)

	if net == nil {
		net = netmonitor.AlwaysOnline{}
	}
	if app == nil {
		app = netmonitor.NoopAppState{}
	}

	e.Sync = orchestrator.New(e.Changelog, pusher, puller, e.clock, net, app, logger)
	return nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Reset closes and re-creates the database, used by administrative
// purge flows (synctl doctor reset).
func (e *Engine) Reset(ctx context.Context) error {
	return e.store.Reset(ctx)
}
