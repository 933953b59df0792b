package syncengine

import (
	"context"

	"github.com/untoldecay/synapse/internal/changelog"
	"github.com/untoldecay/synapse/internal/types"
)

// Pusher drains the outgoing change log against a Transport.
type Pusher struct {
	Log       *changelog.Log
	Transport Transport
	DeviceID  string
}

// NewPusher constructs a Pusher.
func NewPusher(log *changelog.Log, t Transport, deviceID string) *Pusher {
	return &Pusher{Log: log, Transport: t, DeviceID: deviceID}
}

// Push drains the change log in successive byte/size-bounded batches
// (spec §4.5 Push): fetch pendingBatch(100, 1MiB); if empty, return
// success with zero counts; otherwise POST, partition results by
// entity_id into markSynced/incrementRetry, and recurse while pending
// rows remain. A transport failure aborts the whole push without any
// further DB mutation for that batch; batches already applied stay
// applied (the change log's own synced_at/retry_count bookkeeping
// makes each batch idempotent on retry).
func (p *Pusher) Push(ctx context.Context) PushSummary {
	total := PushSummary{Success: true}

	for {
		batch, err := p.Log.PendingBatch(ctx, changelog.SyncBatchMaxSize, changelog.SyncBatchMaxBytes)
		if err != nil {
			return PushSummary{Success: false, Pushed: total.Pushed, Failed: total.Failed, Err: err}
		}
		if len(batch) == 0 {
			return total
		}

		req := PushRequest{DeviceID: p.DeviceID, Changes: toWireChanges(batch)}
		resp, err := p.Transport.Push(ctx, req)
		if err != nil {
			return PushSummary{Success: false, Pushed: total.Pushed, Failed: total.Failed, Err: err}
		}

		succeeded, failed := partitionResults(batch, resp.Results)

		if len(succeeded) > 0 {
			if err := p.Log.MarkSynced(ctx, succeeded); err != nil {
				return PushSummary{Success: false, Pushed: total.Pushed, Failed: total.Failed, Err: err}
			}
		}
		for _, f := range failed {
			msg := f.errMsg
			if msg == "" {
				msg = "Unknown error"
			}
			if err := p.Log.IncrementRetry(ctx, f.id, msg); err != nil {
				return PushSummary{Success: false, Pushed: total.Pushed, Failed: total.Failed, Err: err}
			}
		}

		total.Pushed += len(succeeded)
		total.Failed += len(failed)

		if len(batch) < changelog.SyncBatchMaxSize {
			// short batch: nothing more was waiting when we read it.
			remaining, err := p.Log.PendingBatch(ctx, 1, changelog.SyncBatchMaxBytes)
			if err != nil {
				return PushSummary{Success: false, Pushed: total.Pushed, Failed: total.Failed, Err: err}
			}
			if len(remaining) == 0 {
				return total
			}
		}
	}
}

type failedPush struct {
	id     int64
	errMsg string
}

func partitionResults(batch []types.ChangeLogEntry, results []PushResult) (succeeded []int64, failed []failedPush) {
	byEntity := make(map[string]PushResult, len(results))
	for _, r := range results {
		byEntity[r.EntityID] = r
	}
	for _, entry := range batch {
		r, ok := byEntity[entry.EntityID]
		if !ok || !r.Success {
			msg := ""
			if ok {
				msg = r.Error
			}
			failed = append(failed, failedPush{id: entry.ID, errMsg: msg})
			continue
		}
		succeeded = append(succeeded, entry.ID)
	}
	return succeeded, failed
}

func toWireChanges(entries []types.ChangeLogEntry) []ChangeWire {
	out := make([]ChangeWire, 0, len(entries))
	for _, e := range entries {
		out = append(out, ChangeWire{
			ID:         e.ID,
			EntityType: string(e.EntityType),
			EntityID:   e.EntityID,
			Operation:  string(e.Operation),
			Payload:    e.Payload,
			Priority:   e.Priority,
			CreatedAt:  e.CreatedAt,
			RetryCount: e.RetryCount,
		})
	}
	return out
}
