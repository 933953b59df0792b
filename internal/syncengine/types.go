// Package syncengine implements the push/pull replication protocol
// (C5): draining the change log to a server, pulling server deltas
// under a checkpoint cursor, and resolving upsert conflicts with a
// deterministic three-key Last-Write-Wins rule.
//
// Grounded on the other_examples reference repos hyperengineering/recall
// and hyperengineering/engram for the client-side queue-draining shape,
// and on erauner12-toolbridge-api's internal/httpapi/sync_notes.go and
// router.go for the push/pull wire-shape (generalized from that
// service's map[string]any payloads to the typed Delta below, since the
// spec requires one deterministic payload format per entity type). No
// server is implemented here, per spec Non-goals; the wire types exist
// only to drive an HTTP client against an external server.
package syncengine

import (
	"context"
	"encoding/json"

	"github.com/untoldecay/synapse/internal/types"
)

// ChangeWire is the over-the-wire shape of one change_log row in a push
// request (spec §6).
type ChangeWire struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  string          `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
	Priority   int             `json:"priority"`
	CreatedAt  string          `json:"created_at"`
	RetryCount int             `json:"retry_count"`
}

// PushRequest is the POST /sync/push request body.
type PushRequest struct {
	DeviceID string       `json:"device_id"`
	Changes  []ChangeWire `json:"changes"`
}

// PushResult is one entry of a PushResponse's per-item results.
type PushResult struct {
	EntityID string `json:"entity_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// PushResponse is the POST /sync/push response body.
type PushResponse struct {
	SuccessCount  int          `json:"success_count"`
	FailureCount  int          `json:"failure_count"`
	Results       []PushResult `json:"results"`
	NewCheckpoint string       `json:"new_checkpoint"`
}

// PullRequest is the POST /sync/pull request body.
type PullRequest struct {
	DeviceID   string  `json:"device_id"`
	Checkpoint *string `json:"checkpoint,omitempty"`
}

// Delta is a single server-originated change descriptor.
type Delta struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Operation       string          `json:"operation"`
	Data            json.RawMessage `json:"data,omitempty"`
	UpdatedAt       string          `json:"updated_at"`
	ServerTimestamp string          `json:"server_timestamp"`
}

// PullResponse is the POST /sync/pull response body.
type PullResponse struct {
	HasMore       bool    `json:"has_more"`
	Changes       []Delta `json:"changes"`
	NewCheckpoint string  `json:"new_checkpoint"`
	TotalChanges  int     `json:"total_changes"`
}

// Transport is the narrow interface the engine drives; HTTPTransport is
// the production implementation, tests supply an in-memory fake or an
// httptest.Server-backed HTTPTransport.
type Transport interface {
	Push(ctx context.Context, req PushRequest) (PushResponse, error)
	Pull(ctx context.Context, req PullRequest) (PullResponse, error)
}

// TokenSource resolves the bearer access token. Token absence fails
// locally with ErrUnauthorized before any request is issued (spec §6
// Authorization).
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PushSummary is the aggregate result of a (possibly multi-batch) push.
type PushSummary struct {
	Success bool
	Pushed  int
	Failed  int
	Err     error
}

// PullSummary is the aggregate result of a (possibly multi-page) pull.
type PullSummary struct {
	Success      bool
	Applied      int
	NewCheckpoint string
	Err          error
}

// applied entity snapshots decoded from a Delta's Data field, one
// variant per entity type (spec §9 "tagged sum").
type notePayload = types.Note
type relationPayload = types.Relation
type reflectionPayload = types.Reflection

type noteKeywordPayload struct {
	NoteID  string  `json:"note_id"`
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}
