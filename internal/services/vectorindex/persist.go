package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Vectors persist in a small binary format: a magic marker, the dimension
// and count as uint32, then count*dimension little-endian float32 values.
// The id map persists as a JSON string array alongside. Both files are
// written together; a count mismatch on load is a fatal configuration
// error because slot positions would no longer resolve to chunk ids.

var indexMagic = [4]byte{'R', 'V', 'I', '1'}

// Save persists the vectors and id map together
func (idx *Index) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.indexPath == "" || idx.idMapPath == "" {
		return fmt.Errorf("index persistence paths not configured")
	}

	if err := os.MkdirAll(filepath.Dir(idx.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f, err := os.Create(idx.indexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	header := []uint32{uint32(idx.dimension), uint32(len(idx.vectors))}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}

	buf := make([]byte, 4)
	for _, vec := range idx.vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := f.Write(buf); err != nil {
				return fmt.Errorf("failed to write vector data: %w", err)
			}
		}
	}

	idMapData, err := json.Marshal(idx.idMap)
	if err != nil {
		return fmt.Errorf("failed to encode id map: %w", err)
	}
	if err := os.WriteFile(idx.idMapPath, idMapData, 0644); err != nil {
		return fmt.Errorf("failed to write id map: %w", err)
	}

	idx.logger.Info().
		Int("vectors", len(idx.vectors)).
		Str("index_path", idx.indexPath).
		Msg("Vector index saved")

	return nil
}

// Load restores a persisted index. Missing files leave the index empty;
// an id map that does not match the vector count is a fatal error.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	data, err := os.ReadFile(idx.indexPath)
	if os.IsNotExist(err) {
		idx.logger.Debug().Str("index_path", idx.indexPath).Msg("No persisted index found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index file: %w", err)
	}

	if len(data) < 12 || [4]byte(data[:4]) != indexMagic {
		return fmt.Errorf("index file %s is corrupt or has an unknown format", idx.indexPath)
	}

	dimension := int(binary.LittleEndian.Uint32(data[4:8]))
	count := int(binary.LittleEndian.Uint32(data[8:12]))
	if dimension != idx.dimension {
		return fmt.Errorf("persisted index dimension %d does not match configured dimension %d",
			dimension, idx.dimension)
	}

	expected := 12 + count*dimension*4
	if len(data) != expected {
		return fmt.Errorf("index file %s is truncated: have %d bytes, want %d", idx.indexPath, len(data), expected)
	}

	vectors := make([][]float32, count)
	offset := 12
	for i := 0; i < count; i++ {
		vec := make([]float32, dimension)
		for d := 0; d < dimension; d++ {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		vectors[i] = vec
	}

	idMapData, err := os.ReadFile(idx.idMapPath)
	if err != nil {
		return fmt.Errorf("failed to read id map (index has %d vectors): %w", count, err)
	}
	var idMap []string
	if err := json.Unmarshal(idMapData, &idMap); err != nil {
		return fmt.Errorf("failed to decode id map: %w", err)
	}

	if len(idMap) != count {
		return fmt.Errorf("id map length %d does not match index count %d", len(idMap), count)
	}

	idx.vectors = vectors
	idx.idMap = idMap

	// Rebuild IVF training state from the loaded vectors
	if idx.kind == KindIVF {
		idx.trained = false
		idx.centroids = nil
		idx.assignments = nil
		if count > 0 {
			if err := idx.trainLocked(vectors); err != nil {
				return fmt.Errorf("failed to retrain loaded index: %w", err)
			}
			idx.assignments = make([]int, count)
			for i, vec := range vectors {
				idx.assignments[i] = idx.nearestCentroid(vec)
			}
		}
	}

	idx.logger.Info().
		Int("vectors", count).
		Str("index_path", idx.indexPath).
		Msg("Vector index loaded")

	return nil
}
