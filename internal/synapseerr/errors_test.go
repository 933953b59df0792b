package synapseerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/untoldecay/synapse/internal/synapseerr"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, synapseerr.Wrap("op", synapseerr.KindNotFound, nil))
}

func TestErrorIsSentinel(t *testing.T) {
	err := synapseerr.Wrap("entity.GetNote", synapseerr.KindNotFound, errors.New("no rows"))
	assert.True(t, errors.Is(err, synapseerr.ErrNotFound))
	assert.False(t, errors.Is(err, synapseerr.ErrValidation))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := synapseerr.Wrap("store.Open", synapseerr.KindDatabase, inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "store.Open")
	assert.Contains(t, err.Error(), "disk full")
}

func TestOfWalksChain(t *testing.T) {
	base := synapseerr.New("changelog.Log", synapseerr.KindQueueFull)
	wrapped := fmt.Errorf("append: %w", base)
	assert.Equal(t, synapseerr.KindQueueFull, synapseerr.Of(wrapped))
	assert.Equal(t, synapseerr.KindUnknown, synapseerr.Of(errors.New("plain")))
}
