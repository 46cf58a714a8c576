package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDSortsByCreation(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		parsed, err := uuid.Parse(next)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 4.3, Round1(17.0/4.0))
	assert.Equal(t, 3.7, Round1(11.0/3.0))
	assert.Equal(t, 5.0, Round1(5))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
