package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceIDs(t *testing.T) {
	gen := SequenceIDs("movie")

	first, err := gen.Generate(nil)
	require.NoError(t, err)
	second, err := gen.Generate(nil)
	require.NoError(t, err)

	assert.Equal(t, "movie-1", first)
	assert.Equal(t, "movie-2", second)
}
