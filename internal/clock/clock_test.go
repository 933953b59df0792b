package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/clock"
)

func TestISO8601MilliRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 5, 14, 30, 0, 123_000_000, time.UTC)
	formatted := clock.ISO8601Milli(at)
	assert.Equal(t, "2026-03-05T14:30:00.123Z", formatted)

	parsed, err := clock.ParseISO8601(formatted)
	require.NoError(t, err)
	assert.True(t, at.Equal(parsed))
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fixed{At: at}
	assert.True(t, c.Now().Equal(at))
	assert.True(t, c.Now().Equal(at))
}

func TestSequenceClockRepeatsLastInstant(t *testing.T) {
	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	c := &clock.Sequence{Instants: []time.Time{first, second}}

	assert.True(t, c.Now().Equal(first))
	assert.True(t, c.Now().Equal(second))
	assert.True(t, c.Now().Equal(second))
}
