package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	key := Key("a sanitized user prompt")
	require.NoError(t, s.Put(key, `{"type":"object"}`))

	value, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, `{"type":"object"}`, value)
}

func TestGetMissReturnsFalse(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get(Key("never stored"))
	assert.False(t, ok)
}

func TestKeyIsStableAndInputDependent(t *testing.T) {
	a := Key("same input")
	b := Key("same input")
	c := Key("different input")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	key := Key("input")
	require.NoError(t, s.Put(key, "first"))
	require.NoError(t, s.Put(key, "second"))

	value, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "second", value)
}
