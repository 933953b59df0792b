package idgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/synapse/internal/idgen"
)

func TestNewUUIDv7VersionAndVariant(t *testing.T) {
	id, err := idgen.NewUUIDv7()
	require.NoError(t, err)

	bytes := id[:]
	assert.Equal(t, byte(0x70), bytes[6]&0xF0, "version nibble must be 7")
	assert.Equal(t, byte(0x80), bytes[8]&0xC0, "variant bits must be RFC 4122")
}

func TestNewUUIDv7MonotonicWithinMillisecond(t *testing.T) {
	const n = 64
	ids := make([]string, n)
	for i := range ids {
		id, err := idgen.NewUUIDv7()
		require.NoError(t, err)
		ids[i] = id.String()
	}
	for i := 1; i < n; i++ {
		assert.Less(t, ids[i-1], ids[i], "uuidv7 strings must sort lexicographically in generation order")
	}
}

type memSecureStore struct {
	values map[string]string
}

func newMemSecureStore() *memSecureStore { return &memSecureStore{values: map[string]string{}} }

func (m *memSecureStore) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSecureStore) Set(key, value string) error {
	m.values[key] = value
	return nil
}

func TestDeviceIDPersists(t *testing.T) {
	store := newMemSecureStore()

	first, err := idgen.DeviceID(store)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := idgen.DeviceID(store)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
