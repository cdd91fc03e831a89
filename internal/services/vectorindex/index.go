// Package vectorindex provides an in-process similarity index over
// L2-normalized embedding vectors. Two index kinds are supported: flat
// (exact inner-product scan) and ivf (k-means clustered, probing a subset
// of clusters per search). Vectors and the slot-to-chunk-id map are
// persisted together and must stay consistent.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Index kinds
const (
	KindFlat = "flat"
	KindIVF  = "ivf"
)

// Index implements the VectorIndex interface
type Index struct {
	mu        sync.RWMutex
	dimension int
	kind      string
	nlist     int
	nprobe    int

	vectors [][]float32
	idMap   []string

	// IVF state; empty until training completes
	trained     bool
	centroids   [][]float32
	assignments []int

	indexPath string
	idMapPath string
	logger    arbor.ILogger
}

// NewIndex creates a vector index from configuration
func NewIndex(dimension int, config *common.IndexConfig, logger arbor.ILogger) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}

	kind := config.Type
	if kind != KindFlat && kind != KindIVF {
		return nil, fmt.Errorf("unknown index type %q", kind)
	}

	nlist := config.NList
	if nlist <= 0 {
		nlist = 64
	}
	nprobe := config.NProbe
	if nprobe <= 0 {
		nprobe = 8
	}

	idx := &Index{
		dimension: dimension,
		kind:      kind,
		nlist:     nlist,
		nprobe:    nprobe,
		trained:   kind == KindFlat, // Flat indexes need no training
		indexPath: config.IndexPath,
		idMapPath: config.IDMapPath,
		logger:    logger,
	}

	logger.Debug().
		Str("type", kind).
		Int("dimension", dimension).
		Msg("Vector index created")

	return idx, nil
}

// Add inserts vectors with their chunk ids. Vectors are normalized before
// insertion. IVF training is triggered lazily on the first non-empty batch.
func (idx *Index) Add(vectors [][]float32, ids []string) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("vector count %d does not match id count %d", len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	for i, vec := range vectors {
		if len(vec) != idx.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				interfaces.ErrDimensionMismatch, i, len(vec), idx.dimension)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.kind == KindIVF && !idx.trained {
		if err := idx.trainLocked(vectors); err != nil {
			return fmt.Errorf("failed to train index: %w", err)
		}
	}

	for i, vec := range vectors {
		normalized := Normalize(vec)
		idx.vectors = append(idx.vectors, normalized)
		idx.idMap = append(idx.idMap, ids[i])
		if idx.kind == KindIVF {
			idx.assignments = append(idx.assignments, idx.nearestCentroid(normalized))
		}
	}

	idx.logger.Debug().
		Int("added", len(vectors)).
		Int("total", len(idx.vectors)).
		Msg("Added vectors to index")

	return nil
}

// Search returns up to k hits ordered by descending score. An empty index
// returns no hits; a dimension mismatch returns an error.
func (idx *Index) Search(query []float32, k int) ([]interfaces.SearchHit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, expected %d",
			interfaces.ErrDimensionMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return nil, nil
	}

	normalized := Normalize(query)

	var candidates []int
	if idx.kind == KindIVF && idx.trained && len(idx.centroids) > 0 {
		candidates = idx.probeClusters(normalized)
	} else {
		candidates = make([]int, len(idx.vectors))
		for i := range idx.vectors {
			candidates[i] = i
		}
	}

	hits := make([]interfaces.SearchHit, 0, len(candidates))
	for _, slot := range candidates {
		hits = append(hits, interfaces.SearchHit{
			ChunkID: idx.idMap[slot],
			Score:   float64(dot(normalized, idx.vectors[slot])),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove retires vectors for the given chunk ids
func (idx *Index) Remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	retire := make(map[string]bool, len(ids))
	for _, id := range ids {
		retire[id] = true
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	vectors := idx.vectors[:0]
	idMap := idx.idMap[:0]
	assignments := idx.assignments[:0]
	removed := 0
	for i, id := range idx.idMap {
		if retire[id] {
			removed++
			continue
		}
		vectors = append(vectors, idx.vectors[i])
		idMap = append(idMap, id)
		if idx.kind == KindIVF && i < len(idx.assignments) {
			assignments = append(assignments, idx.assignments[i])
		}
	}
	idx.vectors = vectors
	idx.idMap = idMap
	if idx.kind == KindIVF {
		idx.assignments = assignments
	}

	if removed > 0 {
		idx.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(idx.vectors)).
			Msg("Retired vectors from index")
	}
	return nil
}

// Reset drops all vectors, the id map, and any training state
func (idx *Index) Reset() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = nil
	idx.idMap = nil
	idx.assignments = nil
	idx.centroids = nil
	idx.trained = idx.kind == KindFlat

	idx.logger.Info().Msg("Vector index reset")
	return nil
}

// Count returns the number of indexed vectors
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Trained reports whether the index has completed training
func (idx *Index) Trained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

// probeClusters returns slots belonging to the nprobe clusters whose
// centroids are nearest the query
func (idx *Index) probeClusters(query []float32) []int {
	type centroidScore struct {
		cluster int
		score   float32
	}

	scores := make([]centroidScore, len(idx.centroids))
	for c, centroid := range idx.centroids {
		scores[c] = centroidScore{cluster: c, score: dot(query, centroid)}
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	probe := idx.nprobe
	if probe > len(scores) {
		probe = len(scores)
	}

	selected := make(map[int]bool, probe)
	for _, cs := range scores[:probe] {
		selected[cs.cluster] = true
	}

	var slots []int
	for slot, cluster := range idx.assignments {
		if selected[cluster] {
			slots = append(slots, slot)
		}
	}
	return slots
}

// nearestCentroid returns the cluster whose centroid has the highest
// inner product with the vector
func (idx *Index) nearestCentroid(vec []float32) int {
	best := 0
	bestScore := float32(math.Inf(-1))
	for c, centroid := range idx.centroids {
		if score := dot(vec, centroid); score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// Normalize returns an L2-normalized copy of the vector. Zero vectors are
// returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Ensure Index implements the interface
var _ interfaces.VectorIndex = (*Index)(nil)
