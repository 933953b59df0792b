package syncengine

import (
	"context"

	"github.com/untoldecay/synapse/internal/idgen"
	"github.com/untoldecay/synapse/internal/synapseerr"
)

// SecureStoreTokenSource reads the persisted bearer token stored under
// the "access_token" secure-storage key (spec §6 Persisted state layout: "Secure storage holds:
// device_id, and the bearer access token"). Retrieving that token in
// the first place, via whatever OAuth/login flow an embedding
// application uses, is out of scope per spec §2 — this type only
// reads back what was already stored.
type SecureStoreTokenSource struct {
	Store idgen.SecureStore
}

// NewSecureStoreTokenSource wraps store as a TokenSource.
func NewSecureStoreTokenSource(store idgen.SecureStore) *SecureStoreTokenSource {
	return &SecureStoreTokenSource{Store: store}
}

func (t *SecureStoreTokenSource) Token(_ context.Context) (string, error) {
	const op = "syncengine.SecureStoreTokenSource.Token"
	token, ok, err := t.Store.Get("access_token")
	if err != nil {
		return "", synapseerr.Wrap(op, synapseerr.KindDatabase, err)
	}
	if !ok {
		return "", synapseerr.New(op, synapseerr.KindUnauthorized)
	}
	return token, nil
}
