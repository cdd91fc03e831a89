package vectorindex

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
)

func newTestIndex(t *testing.T, kind string, dimension int) *Index {
	t.Helper()
	dir := t.TempDir()
	config := &common.IndexConfig{
		Type:      kind,
		NList:     4,
		NProbe:    2,
		IndexPath: filepath.Join(dir, "vectors.bin"),
		IDMapPath: filepath.Join(dir, "id_map.json"),
	}
	idx, err := NewIndex(dimension, config, arbor.NewLogger())
	require.NoError(t, err)
	return idx
}

// axisVector returns a unit vector along the given axis with slight noise
// on a second axis so vectors are distinct
func axisVector(dimension, axis int, noise float32) []float32 {
	vec := make([]float32, dimension)
	vec[axis] = 1
	vec[(axis+1)%dimension] = noise
	return vec
}

func TestIndex_SearchBeforeAdd(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 8)

	hits, err := idx.Search(axisVector(8, 0, 0), 5)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_AddAndSearch(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 8)

	vectors := [][]float32{
		axisVector(8, 0, 0),
		axisVector(8, 1, 0),
		axisVector(8, 2, 0),
	}
	ids := []string{"chunk_a", "chunk_b", "chunk_c"}
	require.NoError(t, idx.Add(vectors, ids))

	hits, err := idx.Search(axisVector(8, 1, 0.1), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "chunk_b", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.01)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestIndex_IDMapConsistency(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 4)

	for batch := 0; batch < 5; batch++ {
		var vectors [][]float32
		var ids []string
		for i := 0; i < 3; i++ {
			vectors = append(vectors, axisVector(4, (batch+i)%4, 0.2))
			ids = append(ids, fmt.Sprintf("chunk_%d_%d", batch, i))
		}
		require.NoError(t, idx.Add(vectors, ids))

		idx.mu.RLock()
		assert.Equal(t, len(idx.vectors), len(idx.idMap))
		idx.mu.RUnlock()
	}
	assert.Equal(t, 15, idx.Count())
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 8)

	err := idx.Add([][]float32{make([]float32, 4)}, []string{"chunk_x"})
	assert.Error(t, err)

	_, err = idx.Search(make([]float32, 4), 5)
	assert.Error(t, err)
}

func TestIndex_Remove(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 4)

	vectors := [][]float32{axisVector(4, 0, 0), axisVector(4, 1, 0), axisVector(4, 2, 0)}
	require.NoError(t, idx.Add(vectors, []string{"a", "b", "c"}))

	require.NoError(t, idx.Remove([]string{"b"}))
	assert.Equal(t, 2, idx.Count())

	hits, err := idx.Search(axisVector(4, 1, 0), 3)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "b", hit.ChunkID)
	}
}

func TestIndex_IVFLazyTraining(t *testing.T) {
	idx := newTestIndex(t, KindIVF, 8)
	assert.False(t, idx.Trained())

	var vectors [][]float32
	var ids []string
	for i := 0; i < 16; i++ {
		vectors = append(vectors, axisVector(8, i%8, float32(i)*0.01))
		ids = append(ids, fmt.Sprintf("chunk_%d", i))
	}
	require.NoError(t, idx.Add(vectors, ids))
	assert.True(t, idx.Trained())

	hits, err := idx.Search(axisVector(8, 3, 0), 4)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := &common.IndexConfig{
		Type:      KindFlat,
		IndexPath: filepath.Join(dir, "vectors.bin"),
		IDMapPath: filepath.Join(dir, "id_map.json"),
	}
	logger := arbor.NewLogger()

	idx, err := NewIndex(4, config, logger)
	require.NoError(t, err)

	vectors := [][]float32{axisVector(4, 0, 0.3), axisVector(4, 2, 0.1)}
	require.NoError(t, idx.Add(vectors, []string{"first", "second"}))
	require.NoError(t, idx.Save())

	restored, err := NewIndex(4, config, logger)
	require.NoError(t, err)
	require.NoError(t, restored.Load())

	assert.Equal(t, 2, restored.Count())
	hits, err := restored.Search(axisVector(4, 2, 0), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "second", hits[0].ChunkID)
}

func TestIndex_LoadMissingFilesStartsEmpty(t *testing.T) {
	idx := newTestIndex(t, KindFlat, 4)
	assert.NoError(t, idx.Load())
	assert.Equal(t, 0, idx.Count())
}

func TestIndex_LoadIDMapMismatchFails(t *testing.T) {
	dir := t.TempDir()
	config := &common.IndexConfig{
		Type:      KindFlat,
		IndexPath: filepath.Join(dir, "vectors.bin"),
		IDMapPath: filepath.Join(dir, "id_map.json"),
	}
	logger := arbor.NewLogger()

	idx, err := NewIndex(4, config, logger)
	require.NoError(t, err)
	require.NoError(t, idx.Add([][]float32{axisVector(4, 0, 0)}, []string{"only"}))
	require.NoError(t, idx.Save())

	// Corrupt the id map so it no longer matches the vector count
	require.NoError(t, writeJSON(config.IDMapPath, []string{"only", "extra"}))

	restored, err := NewIndex(4, config, logger)
	require.NoError(t, err)
	assert.Error(t, restored.Load())
}

func writeJSON(path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	normalized := Normalize(vec)

	var sum float64
	for _, v := range normalized {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	// Zero vectors pass through unchanged
	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
