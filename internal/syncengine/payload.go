package syncengine

import (
	"encoding/json"
	"fmt"

	"github.com/untoldecay/synapse/internal/synapseerr"
	"github.com/untoldecay/synapse/internal/types"
)

// DecodePayload dispatches on entityType to the correctly typed
// snapshot, rather than leaving the caller to interpret an untyped map
// (spec §9 Design Notes: "dynamic payloads... tagged sum").
func DecodePayload(entityType types.EntityType, data json.RawMessage) (any, error) {
	const op = "syncengine.DecodePayload"

	switch entityType {
	case types.EntityNote:
		var n notePayload
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("decode note payload: %w", err))
		}
		return n, nil
	case types.EntityRelation:
		var r relationPayload
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("decode relation payload: %w", err))
		}
		return r, nil
	case types.EntityReflection:
		var r reflectionPayload
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("decode reflection payload: %w", err))
		}
		return r, nil
	case types.EntityNoteKeyword:
		var nk noteKeywordPayload
		if err := json.Unmarshal(data, &nk); err != nil {
			return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("decode note_keyword payload: %w", err))
		}
		return nk, nil
	default:
		return nil, synapseerr.Wrap(op, synapseerr.KindValidation, fmt.Errorf("unrecognized entity_type %q", entityType))
	}
}
