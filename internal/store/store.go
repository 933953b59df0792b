// Package store owns the single embedded SQLite file backing the data
// engine: schema creation, pragmas, scoped transactions, and
// administrative reset. Every other package reaches the database only
// through a *Store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/synapse/internal/synapseerr"
)

// Store wraps the single writable *sql.DB handle for synapse.db. Writes
// are serialized through writeMu; SQLite's WAL mode lets readers proceed
// concurrently with an in-flight write.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open creates (if necessary) and initializes the database file at
// path: applies pragmas, creates the schema, and verifies every
// required table is present. Returns *synapseerr.Error{Kind: KindSchema}
// on any initialization failure.
func Open(ctx context.Context, path string) (*Store, error) {
	const op = "store.Open"

	// _txlock=immediate makes every database/sql BEGIN an IMMEDIATE
	// transaction, acquiring the write lock up front instead of on
	// first write.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindSchema, err)
	}
	db.SetMaxOpenConns(8)

	s := &Store{db: db, path: path}

	if err := s.applyPragmas(ctx); err != nil {
		db.Close()
		return nil, synapseerr.Wrap(op, synapseerr.KindSchema, err)
	}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, synapseerr.Wrap(op, synapseerr.KindSchema, err)
	}
	if missing := s.missingTables(ctx); len(missing) > 0 {
		db.Close()
		return nil, synapseerr.Wrap(op, synapseerr.KindSchema,
			fmt.Errorf("missing required tables: %s", strings.Join(missing, ", ")))
	}

	return s, nil
}

func (s *Store) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // ~64 MiB, negative means KiB
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// splitStatements splits a semicolon-terminated batch of DDL statements.
// The schema never contains a semicolon inside a string literal; the
// only inner semicolons end the statements of a trigger body, so a
// CREATE TRIGGER fragment is joined with the following fragments until
// it reaches its closing END.
func splitStatements(batch string) []string {
	raw := strings.Split(batch, ";")
	out := make([]string, 0, len(raw))
	pending := ""
	for _, s := range raw {
		if pending != "" {
			s = pending + ";" + s
			pending = ""
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "CREATE TRIGGER") && !strings.HasSuffix(s, "END") {
			pending = s
			continue
		}
		out = append(out, s)
	}
	return out
}

func (s *Store) missingTables(ctx context.Context) []string {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return requiredTables
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			present[name] = true
		}
	}

	var missing []string
	for _, want := range requiredTables {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	sort.Strings(missing)
	return missing
}

// DB returns the underlying handle for packages (fts, changelog) that
// need to build queries store.go does not wrap directly. Mutating
// queries issued this way still observe writeMu only if routed through
// WithTx; callers performing ad hoc writes outside WithTx are
// responsible for their own serialization.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction, serialized against every other
// write via writeMu so SQLite never sees two writers from this process
// at once (the single-logical-writer requirement). fn's returned error
// (or a panic, re-thrown after rollback) rolls the transaction back;
// otherwise the transaction commits.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	const op = "store.WithTx"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindTransaction, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindTransaction, err)
	}
	return nil
}

// Reset deletes the database file (and its WAL/SHM siblings) and
// re-initializes a fresh schema in its place. Intended for
// administrative purge and test fixtures, never called from the entity
// or sync layers.
func (s *Store) Reset(ctx context.Context) error {
	const op = "store.Reset"

	if err := s.db.Close(); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindSchema, err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(s.path + suffix)
	}

	fresh, err := Open(ctx, s.path)
	if err != nil {
		return err
	}
	s.db = fresh.db
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
