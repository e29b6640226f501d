package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksEvenDivision(t *testing.T) {
	chunks := splitChunks(800_000_000, 8)

	require.Len(t, chunks, 8)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ID)
		assert.Equal(t, int64(100_000_000), chunk.Size())
	}
	assert.Equal(t, int64(0), chunks[0].StartByte)
	assert.Equal(t, int64(799_999_999), chunks[7].EndByte)
}

func TestSplitChunksLastAbsorbsRemainder(t *testing.T) {
	chunks := splitChunks(10, 3)

	require.Len(t, chunks, 3)
	assert.Equal(t, int64(3), chunks[0].Size())
	assert.Equal(t, int64(3), chunks[1].Size())
	assert.Equal(t, int64(4), chunks[2].Size())
}

func TestSplitChunksSingle(t *testing.T) {
	chunks := splitChunks(5000, 1)

	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].StartByte)
	assert.Equal(t, int64(4999), chunks[0].EndByte)
}

// The ranges of one task must be disjoint, contiguous, and span the whole
// file regardless of how the division rounds.
func TestSplitChunksDisjointAndContiguous(t *testing.T) {
	for _, tc := range []struct {
		size int64
		n    int
	}{
		{1, 4}, {7, 3}, {1024, 8}, {999_999, 7}, {4096, 4096},
	} {
		chunks := splitChunks(tc.size, tc.n)
		var covered int64
		var next int64 = 0
		for _, chunk := range chunks {
			require.Equal(t, next, chunk.StartByte, "size=%d n=%d", tc.size, tc.n)
			require.GreaterOrEqual(t, chunk.EndByte, chunk.StartByte)
			covered += chunk.Size()
			next = chunk.EndByte + 1
		}
		require.Equal(t, tc.size, covered, "size=%d n=%d", tc.size, tc.n)
	}
}
