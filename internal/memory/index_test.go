package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_Search(t *testing.T) {
	var ix flatIndex
	require.NoError(t, ix.add([][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}))

	hits, err := ix.search([]float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].seq)
	assert.Equal(t, 2, hits[1].seq)
	assert.InDelta(t, 0.8, hits[1].score, 1e-6)
}

func TestFlatIndex_TiesKeepInsertionOrder(t *testing.T) {
	var ix flatIndex
	require.NoError(t, ix.add([][]float32{{1, 0}, {1, 0}, {1, 0}}))

	hits, err := ix.search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].seq, hits[1].seq, hits[2].seq})
}

func TestFlatIndex_ClampsK(t *testing.T) {
	var ix flatIndex
	require.NoError(t, ix.add([][]float32{{1, 0}}))

	hits, err := ix.search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = ix.search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	var ix flatIndex
	require.NoError(t, ix.add([][]float32{{1, 0}}))

	err := ix.add([][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, ix.len())

	_, err = ix.search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_RejectsMixedBatch(t *testing.T) {
	var ix flatIndex
	err := ix.add([][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, ix.len())
	assert.Equal(t, 0, ix.dim)
}

func TestFlatIndex_Truncate(t *testing.T) {
	var ix flatIndex
	require.NoError(t, ix.add([][]float32{{1, 0}, {0, 1}}))
	ix.truncate(1)
	assert.Equal(t, 1, ix.len())
	ix.truncate(0)
	assert.Equal(t, 0, ix.dim)
}
