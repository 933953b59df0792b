// Package entity implements Notes/Relations/Reflections/Keywords CRUD
// with soft-delete semantics, validation, and change-log emission (C2).
//
// Grounded on internal/storage/sqlite/issues.go and events.go for
// query style, and internal/validation/issue.go for the validator-chain
// usage pattern before every mutation.
package entity

import (
	"database/sql"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/store"
)

// Store is the entity layer (C2). Every mutating method validates,
// writes the entity row, and appends a change-log row in the same
// transaction via changelog.AppendTx, so the log is always causally
// consistent with the data it describes.
type Store struct {
	db    *store.Store
	log   *changelog.Log
	clock clock.Clock
}

// New constructs an entity Store over db, logging mutations to log.
func New(db *store.Store, log *changelog.Log, c clock.Clock) *Store {
	return &Store{db: db, log: log, clock: c}
}

func (s *Store) now() string {
	return clock.ISO8601Milli(s.clock.Now())
}

// reader is a thin helper so read methods don't need to reach past
// Store into the *sql.DB field directly everywhere.
func (s *Store) reader() *sql.DB { return s.db.DB() }
