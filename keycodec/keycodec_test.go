package keycodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/zarrs-cache/keycodec"
)

func TestParse_ValidKey(t *testing.T) {
	c, ok := keycodec.Parse("temperature/2.2.2")
	require.True(t, ok)
	assert.Equal(t, "temperature", c.Array)
	assert.Equal(t, []int{2, 2, 2}, c.Coords)
}

func TestParse_NegativeCoordinate(t *testing.T) {
	c, ok := keycodec.Parse("temperature/-1.0.3")
	require.True(t, ok)
	assert.Equal(t, []int{-1, 0, 3}, c.Coords)
}

func TestParse_Rejects(t *testing.T) {
	cases := []string{
		"no-slash-here",
		"temperature/2.2.2/extra",
		"temperature/2.x.2",
		"",
	}
	for _, in := range cases {
		_, ok := keycodec.Parse(in)
		assert.False(t, ok, "expected parse failure for %q", in)
	}
}

func TestFormat_RoundTrips(t *testing.T) {
	key := keycodec.Format("temperature", []int{2, 2, 2})
	assert.Equal(t, "temperature/2.2.2", key)

	c, ok := keycodec.Parse(key)
	require.True(t, ok)
	assert.Equal(t, key, c.Key())
}

func TestNeighbors_DistanceOne(t *testing.T) {
	c, ok := keycodec.Parse("temperature/2.2.2")
	require.True(t, ok)

	neighbors := keycodec.Neighbors(c, 1, 0)

	keys := make([]string, len(neighbors))
	for i, n := range neighbors {
		keys[i] = n.Key()
	}

	assert.Contains(t, keys, "temperature/3.2.2")
	assert.Contains(t, keys, "temperature/1.2.2")
	assert.Contains(t, keys, "temperature/2.3.2")
	assert.Contains(t, keys, "temperature/2.1.2")
	assert.Contains(t, keys, "temperature/2.2.3")
	assert.Contains(t, keys, "temperature/2.2.1")
	assert.Len(t, keys, 6)
}

func TestNeighbors_SkipsNegativeResults(t *testing.T) {
	c, ok := keycodec.Parse("temperature/0.0.0")
	require.True(t, ok)

	neighbors := keycodec.Neighbors(c, 1, 0)
	for _, n := range neighbors {
		for _, v := range n.Coords {
			assert.GreaterOrEqual(t, v, 0)
		}
	}
	assert.Len(t, neighbors, 3) // only the +1 direction in each of 3 dims
}

func TestNeighbors_TruncatesToMaxResults(t *testing.T) {
	c, ok := keycodec.Parse("temperature/5.5.5")
	require.True(t, ok)

	neighbors := keycodec.Neighbors(c, 2, 3)
	assert.Len(t, neighbors, 3)
}

func TestSequential_CumulativeStride(t *testing.T) {
	c, ok := keycodec.Parse("temperature/0.0.0")
	require.True(t, ok)

	successors := keycodec.Sequential(c, 3)
	require.Len(t, successors, 3)

	assert.Equal(t, []int{0, 0, 1}, successors[0].Coords)
	assert.Equal(t, []int{0, 0, 3}, successors[1].Coords)
	assert.Equal(t, []int{0, 0, 6}, successors[2].Coords)
}

func TestParse_ChunkPrefixedGrammar(t *testing.T) {
	c, ok := keycodec.Parse("temperature/chunk_2.2.2")
	require.True(t, ok)
	assert.Equal(t, "temperature", c.Array)
	assert.Equal(t, []int{2, 2, 2}, c.Coords)
	assert.True(t, c.Prefixed)
}

func TestKey_RoundTripsChunkPrefix(t *testing.T) {
	c, ok := keycodec.Parse("temperature/chunk_2.2.2")
	require.True(t, ok)
	assert.Equal(t, "temperature/chunk_2.2.2", c.Key())
}

func TestNeighbors_PreservesChunkPrefix(t *testing.T) {
	c, ok := keycodec.Parse("temperature/chunk_2.2.2")
	require.True(t, ok)

	neighbors := keycodec.Neighbors(c, 1, 0)
	keys := make([]string, len(neighbors))
	for i, n := range neighbors {
		keys[i] = n.Key()
	}

	assert.ElementsMatch(t, []string{
		"temperature/chunk_3.2.2",
		"temperature/chunk_1.2.2",
		"temperature/chunk_2.3.2",
		"temperature/chunk_2.1.2",
		"temperature/chunk_2.2.3",
		"temperature/chunk_2.2.1",
	}, keys)
}

func TestParseStrict_Error(t *testing.T) {
	_, err := keycodec.ParseStrict("not-a-chunk-key")
	assert.Error(t, err)
}
