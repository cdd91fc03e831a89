package interfaces

// SearchHit is one raw similarity match from the vector index
type SearchHit struct {
	ChunkID string
	Score   float64
}

// VectorIndex persists embeddings and an opaque chunk-id mapping.
// All mutation is serialized by the implementation; searches may proceed
// concurrently against the last committed state.
//
// Invariant: after any sequence of Add calls, Count() equals the length of
// the id map. Loading a persisted index whose id map does not match the
// vector count is a fatal configuration error.
type VectorIndex interface {
	// Add inserts normalized vectors with their chunk ids. Training of
	// cluster-based index types happens lazily on the first non-empty batch.
	Add(vectors [][]float32, ids []string) error

	// Search returns up to k hits ordered by descending score.
	// An empty index returns no hits, not an error.
	Search(query []float32, k int) ([]SearchHit, error)

	// Remove retires vectors for the given chunk ids
	Remove(ids []string) error

	// Reset drops all vectors and the id map
	Reset() error

	// Save persists the vectors and id map together
	Save() error

	// Load restores a persisted index; validates vector/id-map consistency
	Load() error

	// Count returns the number of indexed vectors
	Count() int

	// Trained reports whether the index has completed training
	// (always true for flat indexes)
	Trained() bool
}
