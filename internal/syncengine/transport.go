package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/untoldecay/synapse/internal/synapseerr"
)

// Default/sync timeouts, grounded on erauner12-toolbridge-api's
// DefaultTimeout/HTTPClient constructor-option pattern
// (internal/linear/client.go's NewClient/WithHTTPClient).
const (
	DefaultTimeout = 10 * time.Second
	SyncTimeout    = 60 * time.Second
)

// HTTPTransport is the production Transport, issuing POST requests
// against a configured base URL with a bearer token from tokens.
type HTTPTransport struct {
	BaseURL string
	Tokens  TokenSource
	Client  *http.Client
}

// NewHTTPTransport constructs an HTTPTransport with SyncTimeout applied
// to its underlying http.Client.
func NewHTTPTransport(baseURL string, tokens TokenSource) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Tokens:  tokens,
		Client:  &http.Client{Timeout: SyncTimeout},
	}
}

func (t *HTTPTransport) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	var resp PushResponse
	err := t.post(ctx, "/sync/push", req, &resp)
	return resp, err
}

func (t *HTTPTransport) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	var resp PullResponse
	err := t.post(ctx, "/sync/pull", req, &resp)
	return resp, err
}

func (t *HTTPTransport) post(ctx context.Context, path string, body, out any) error {
	const op = "syncengine.HTTPTransport"

	token, err := t.Tokens.Token(ctx)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindUnauthorized, err)
	}
	if token == "" {
		return synapseerr.New(op, synapseerr.KindUnauthorized)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindNetwork, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return synapseerr.Wrap(op, synapseerr.KindTimeout, err)
		}
		return synapseerr.Wrap(op, synapseerr.KindNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return synapseerr.Wrap(op, synapseerr.KindNetwork, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return synapseerr.New(op, synapseerr.KindUnauthorized)
	}
	if resp.StatusCode >= 500 {
		return synapseerr.Wrap(op, synapseerr.KindServer, fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode >= 400 {
		return synapseerr.Wrap(op, synapseerr.KindNetwork, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return synapseerr.Wrap(op, synapseerr.KindNetwork, err)
	}
	return nil
}

// RetryTransport wraps a Transport with exponential backoff: each Push
// or Pull call is retried on network, server and timeout failures,
// within the attempt limit of its NewBackOff policy. It does not replace
// the change-log's own per-row retry_count bookkeeping, which still
// lives entirely on the change-log row. The orchestrator does not wrap
// its transport in a RetryTransport on its own.
type RetryTransport struct {
	Inner    Transport
	NewBackOff func() backoff.BackOff
}

// NewRetryTransport wraps inner with a default exponential backoff
// policy capped at three attempts.
func NewRetryTransport(inner Transport) *RetryTransport {
	return &RetryTransport{
		Inner: inner,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = SyncTimeout
			return backoff.WithMaxRetries(b, 2)
		},
	}
}

// isRetriableKind reports whether a transport failure is transient and
// worth another attempt. Timeouts are retriable on both push and pull;
// the change-log's retry_count bookkeeping only increments on push.
func isRetriableKind(kind synapseerr.Kind) bool {
	return kind == synapseerr.KindServer || kind == synapseerr.KindNetwork || kind == synapseerr.KindTimeout
}

func (t *RetryTransport) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	var resp PushResponse
	err := backoff.Retry(func() error {
		var innerErr error
		resp, innerErr = t.Inner.Push(ctx, req)
		if isRetriableKind(synapseerr.Of(innerErr)) {
			return innerErr // retriable
		}
		if innerErr != nil {
			return backoff.Permanent(innerErr)
		}
		return nil
	}, t.NewBackOff())
	return resp, err
}

func (t *RetryTransport) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	var resp PullResponse
	err := backoff.Retry(func() error {
		var innerErr error
		resp, innerErr = t.Inner.Pull(ctx, req)
		if isRetriableKind(synapseerr.Of(innerErr)) {
			return innerErr
		}
		if innerErr != nil {
			return backoff.Permanent(innerErr)
		}
		return nil
	}, t.NewBackOff())
	return resp, err
}
