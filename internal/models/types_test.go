package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueRoundTripsThroughScan(t *testing.T) {
	original := JSONMap{"attempt": float64(2), "reason": "timeout"}

	raw, err := original.Value()
	require.NoError(t, err)
	require.NotNil(t, raw)

	var scanned JSONMap
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, original, scanned)
}

func TestJSONMap_NilValueIsNilDriverValue(t *testing.T) {
	var m JSONMap
	raw, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestJSONMap_ScanNilClearsMap(t *testing.T) {
	m := JSONMap{"a": 1}
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestJSONMap_ScanNonBytesIsNoOp(t *testing.T) {
	m := JSONMap{"a": 1}
	require.NoError(t, m.Scan(42))
	assert.Equal(t, JSONMap{"a": 1}, m)
}
