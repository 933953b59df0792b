// Package changelog implements the durable, priority-ordered outgoing
// sync queue (spec §4.4): append-only writes, retry accounting,
// size/byte-bounded batching, capacity gates, stats, and cleanup.
//
// Grounded on the teacher's internal/storage/sqlite/events.go query
// style and, for the queue-specific shape, on the other_examples
// reference repos hyperengineering/recall (store.go: Unsynced,
// MarkSynced, PendingSyncEntries, CompleteSyncEntries, FailSyncEntries)
// and hyperengineering/engram (internal/store sqlite_changelog.go:
// append-only change log with sequence numbers and a checkpoint table).
package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/store"
	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

// Invariant constants, spec §3.
const (
	SyncBatchMaxSize     = 100
	SyncBatchMaxBytes    = 1_048_576
	SyncMaxRetryCount    = 3
	SyncQueueWarningSize = 8_000
	SyncQueueMaxSize     = 10_000

	payloadOverheadBytes = 200 // constant metadata overhead per pendingBatch estimate
)

// Log is the change-log/sync-queue component (C4).
type Log struct {
	store  *store.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// New constructs a Log over store s.
func New(s *store.Store, c clock.Clock, logger zerolog.Logger) *Log {
	return &Log{store: s, clock: c, logger: logger}
}

// Priority returns the drain-order priority class for an entity type:
// reflection/user -> 3 (high), note/relation -> 2 (medium), else -> 1 (low).
func Priority(entityType types.EntityType) int {
	switch entityType {
	case types.EntityReflection, types.EntityUser:
		return 3
	case types.EntityNote, types.EntityRelation:
		return 2
	default:
		return 1
	}
}

// Log validates and inserts a new pending row, returning its id. It
// opens its own transaction; callers needing atomicity with an entity
// write should use AppendTx instead.
func (l *Log) Log(ctx context.Context, entityType types.EntityType, entityID string, op types.Operation, payload []byte) (int64, error) {
	const opName = "changelog.Log"

	if err := validateWrite(opName, entityType, entityID, op); err != nil {
		return 0, err
	}

	size, err := l.PendingSize(ctx)
	if err != nil {
		return 0, err
	}
	if size >= SyncQueueMaxSize {
		return 0, synapseerr.New(opName, synapseerr.KindQueueFull)
	}

	var id int64
	err = l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var appendErr error
		id, appendErr = l.AppendTx(ctx, tx, entityType, entityID, op, payload)
		return appendErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AppendTx inserts a change-log row using the caller's transaction, so
// the entity write and its log row commit or roll back together.
// Callers must have already checked PendingSize themselves if they want
// QueueFull enforced prior to the entity write (see entity.Store).
func (l *Log) AppendTx(ctx context.Context, tx *sql.Tx, entityType types.EntityType, entityID string, op types.Operation, payload []byte) (int64, error) {
	const opName = "changelog.AppendTx"

	if err := validateWrite(opName, entityType, entityID, op); err != nil {
		return 0, err
	}

	now := clock.ISO8601Milli(l.clock.Now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO change_log (entity_type, entity_id, operation, payload, priority, created_at, synced_at, retry_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, NULL)`,
		string(entityType), entityID, string(op), payload, Priority(entityType), now)
	if err != nil {
		return 0, synapseerr.Wrap(opName, synapseerr.KindDatabase, err)
	}
	return res.LastInsertId()
}

func validateWrite(op string, entityType types.EntityType, entityID string, operation types.Operation) error {
	if entityType == "" {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("entity_type must not be empty"))
	}
	if entityID == "" {
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("entity_id must not be empty"))
	}
	switch operation {
	case types.OpInsert, types.OpUpdate, types.OpDelete:
	default:
		return synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("unrecognized operation %q", operation))
	}
	return nil
}

// Pending selects up to limit rows in (priority DESC, created_at ASC)
// order, i.e. strict priority between classes and FIFO within a class.
// limit is capped at SyncBatchMaxSize.
func (l *Log) Pending(ctx context.Context, limit int) ([]types.ChangeLogEntry, error) {
	const op = "changelog.Pending"

	if limit <= 0 || limit > SyncBatchMaxSize {
		limit = SyncBatchMaxSize
	}

	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, entity_type, entity_id, operation, payload, priority, created_at, synced_at, retry_count, last_error
		FROM change_log
		WHERE synced_at IS NULL AND retry_count < ?
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`, SyncMaxRetryCount, limit)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()

	return scanEntries(op, rows)
}

// PendingBatch first fetches up to maxCount pending rows in priority
// order, then streams them into the result while the cumulative
// estimated byte size stays within maxBytes. An entry is always
// admitted if the result is still empty, so a single oversized entry is
// never starved.
func (l *Log) PendingBatch(ctx context.Context, maxCount int, maxBytes int) ([]types.ChangeLogEntry, error) {
	candidates, err := l.Pending(ctx, maxCount)
	if err != nil {
		return nil, err
	}

	var (
		out    []types.ChangeLogEntry
		total  int
	)
	for _, e := range candidates {
		size := len(e.Payload) + payloadOverheadBytes
		if len(out) > 0 && total+size > maxBytes {
			break
		}
		out = append(out, e)
		total += size
	}
	return out, nil
}

// MarkSynced sets synced_at = now for every id. A no-op on empty input;
// fails if ids were supplied but no row matched.
func (l *Log) MarkSynced(ctx context.Context, ids []int64) error {
	const op = "changelog.MarkSynced"
	if len(ids) == 0 {
		return nil
	}

	now := clock.ISO8601Milli(l.clock.Now())
	query, args := buildInQuery(`UPDATE change_log SET synced_at = ? WHERE id IN (%s)`, []any{now}, ids)
	res, err := l.store.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	if affected == 0 {
		return synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("no change_log rows matched %v", ids))
	}
	return nil
}

// IncrementRetry atomically increments retry_count and sets last_error.
// Fails if id does not exist.
func (l *Log) IncrementRetry(ctx context.Context, id int64, lastError string) error {
	const op = "changelog.IncrementRetry"

	res, err := l.store.DB().ExecContext(ctx, `
		UPDATE change_log SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`, lastError, id)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	if affected == 0 {
		return synapseerr.Wrap(op, synapseerr.KindNotFound, fmt.Errorf("change_log id %d not found", id))
	}
	return nil
}

// PendingSize counts rows with synced_at IS NULL (pending + failed).
func (l *Log) PendingSize(ctx context.Context) (int, error) {
	return l.pendingSizeQuerier(ctx, l.store.DB())
}

// PendingSizeTx is PendingSize run against an in-flight transaction, so
// callers (the entity layer) can enforce the QueueFull capacity gate
// atomically with the row they are about to log, inside the same
// WithTx critical section.
func (l *Log) PendingSizeTx(ctx context.Context, tx *sql.Tx) (int, error) {
	return l.pendingSizeQuerier(ctx, tx)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *Log) pendingSizeQuerier(ctx context.Context, q rowQuerier) (int, error) {
	const op = "changelog.PendingSize"
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_log WHERE synced_at IS NULL`).Scan(&n); err != nil {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return n, nil
}

// QueueStatus summarizes queue health for UI display.
type QueueStatus struct {
	Size    int
	Warning bool
	Full    bool
	Message string
}

func (l *Log) QueueStatus(ctx context.Context) (QueueStatus, error) {
	size, err := l.PendingSize(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	qs := QueueStatus{Size: size}
	switch {
	case size >= SyncQueueMaxSize:
		qs.Full = true
		qs.Warning = true
		qs.Message = fmt.Sprintf("sync queue full (%d pending); writes are blocked until sync drains it", size)
	case size >= SyncQueueWarningSize:
		qs.Warning = true
		qs.Message = fmt.Sprintf("sync queue is large (%d pending); sync soon to avoid hitting the limit", size)
	default:
		qs.Message = "healthy"
	}
	return qs, nil
}

// ShouldPauseSync reports whether the queue has reached SyncQueueMaxSize.
func (l *Log) ShouldPauseSync(ctx context.Context) (bool, error) {
	size, err := l.PendingSize(ctx)
	if err != nil {
		return false, err
	}
	return size >= SyncQueueMaxSize, nil
}

// FailedEntries selects rows with retry_count >= SyncMaxRetryCount,
// ordered newest first.
func (l *Log) FailedEntries(ctx context.Context) ([]types.ChangeLogEntry, error) {
	const op = "changelog.FailedEntries"
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT id, entity_type, entity_id, operation, payload, priority, created_at, synced_at, retry_count, last_error
		FROM change_log
		WHERE synced_at IS NULL AND retry_count >= ?
		ORDER BY created_at DESC`, SyncMaxRetryCount)
	if err != nil {
		return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()
	return scanEntries(op, rows)
}

// ResetRetry clears retry_count/last_error for the given ids, or for
// every failed row if ids is empty.
func (l *Log) ResetRetry(ctx context.Context, ids []int64) error {
	const op = "changelog.ResetRetry"
	if len(ids) == 0 {
		_, err := l.store.DB().ExecContext(ctx, `
			UPDATE change_log SET retry_count = 0, last_error = NULL WHERE synced_at IS NULL AND retry_count >= ?`, SyncMaxRetryCount)
		if err != nil {
			return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		return nil
	}
	query, args := buildInQuery(`UPDATE change_log SET retry_count = 0, last_error = NULL WHERE id IN (%s)`, nil, ids)
	if _, err := l.store.DB().ExecContext(ctx, query, args...); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	return nil
}

// CleanupOld deletes synced rows older than days, logging how many rows
// were removed. Never touches pending or failed rows.
func (l *Log) CleanupOld(ctx context.Context, days int) (int64, error) {
	const op = "changelog.CleanupOld"
	if days <= 0 {
		return 0, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("days must be > 0"))
	}

	cutoff := clock.ISO8601Milli(l.clock.Now().Add(-time.Duration(days) * 24 * time.Hour))
	res, err := l.store.DB().ExecContext(ctx, `
		DELETE FROM change_log WHERE synced_at IS NOT NULL AND synced_at < ?`, cutoff)
	if err != nil {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	l.logger.Info().Int64("removed", n).Int("days", days).Msg("change_log cleanup complete")
	return n, nil
}

// Stats reports aggregate counts; ByEntityType/ByOperation are computed
// over pending rows only.
type Stats struct {
	Total        int
	Pending      int
	Synced       int
	Failed       int
	ByEntityType map[string]int
	ByOperation  map[string]int
}

func (l *Log) GetStats(ctx context.Context) (Stats, error) {
	const op = "changelog.GetStats"
	var s Stats
	s.ByEntityType = map[string]int{}
	s.ByOperation = map[string]int{}

	row := l.store.DB().QueryRowContext(ctx, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN synced_at IS NULL AND retry_count < ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN synced_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS synced,
			COALESCE(SUM(CASE WHEN synced_at IS NULL AND retry_count >= ? THEN 1 ELSE 0 END), 0) AS failed
		FROM change_log`, SyncMaxRetryCount, SyncMaxRetryCount)
	if err := row.Scan(&s.Total, &s.Pending, &s.Synced, &s.Failed); err != nil {
		return Stats{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}

	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT entity_type, COUNT(*) FROM change_log WHERE synced_at IS NULL AND retry_count < ? GROUP BY entity_type`, SyncMaxRetryCount)
	if err != nil {
		return Stats{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return Stats{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		s.ByEntityType[t] = c
	}
	rows.Close()

	rows, err = l.store.DB().QueryContext(ctx, `
		SELECT operation, COUNT(*) FROM change_log WHERE synced_at IS NULL AND retry_count < ? GROUP BY operation`, SyncMaxRetryCount)
	if err != nil {
		return Stats{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return Stats{}, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		s.ByOperation[t] = c
	}

	return s, nil
}

func scanEntries(op string, rows *sql.Rows) ([]types.ChangeLogEntry, error) {
	var out []types.ChangeLogEntry
	for rows.Next() {
		var e types.ChangeLogEntry
		var entityType, operation string
		var syncedAt, lastError sql.NullString
		if err := rows.Scan(&e.ID, &entityType, &e.EntityID, &operation, &e.Payload, &e.Priority, &e.CreatedAt, &syncedAt, &e.RetryCount, &lastError); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindDatabase, err)
		}
		e.EntityType = types.EntityType(entityType)
		e.Operation = types.Operation(operation)
		if syncedAt.Valid {
			e.SyncedAt = &syncedAt.String
		}
		if lastError.Valid {
			e.LastError = &lastError.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildInQuery(format string, prefix []any, ids []int64) (string, []any) {
	placeholders := ""
	args := append([]any{}, prefix...)
	for i, id := range ids {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}
	return fmt.Sprintf(format, placeholders), args
}
