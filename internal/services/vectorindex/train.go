package vectorindex

import (
	"fmt"
	"math/rand"
)

const kmeansIterations = 10

// trainLocked runs k-means over the training batch to place cluster
// centroids. Called with the write lock held, exactly once per index
// lifetime: the index moves from untrained to trained and stays there
// until Reset. A batch smaller than nlist shrinks the cluster count
// rather than failing.
func (idx *Index) trainLocked(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("cannot train on an empty batch")
	}

	normalized := make([][]float32, len(vectors))
	for i, vec := range vectors {
		normalized[i] = Normalize(vec)
	}

	k := idx.nlist
	if k > len(normalized) {
		k = len(normalized)
	}

	// Seed centroids from distinct training vectors
	rng := rand.New(rand.NewSource(42))
	perm := rng.Perm(len(normalized))
	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		centroids[c] = append([]float32(nil), normalized[perm[c]]...)
	}

	assignments := make([]int, len(normalized))
	for iter := 0; iter < kmeansIterations; iter++ {
		// Assign each vector to its nearest centroid
		changed := false
		for i, vec := range normalized {
			best := 0
			bestScore := dot(vec, centroids[0])
			for c := 1; c < k; c++ {
				if score := dot(vec, centroids[c]); score > bestScore {
					bestScore = score
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as normalized cluster means
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, idx.dimension)
		}
		for i, vec := range normalized {
			c := assignments[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid
				continue
			}
			mean := make([]float32, idx.dimension)
			for d := range mean {
				mean[d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = Normalize(mean)
		}
	}

	idx.centroids = centroids
	idx.trained = true

	idx.logger.Info().
		Int("clusters", k).
		Int("training_vectors", len(normalized)).
		Msg("Vector index trained")

	return nil
}
