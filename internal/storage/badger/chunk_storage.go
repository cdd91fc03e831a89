package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChunkStorage implements the ChunkStorage interface for Badger
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChunkStorage) SaveChunk(chunk *models.Chunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
		return fmt.Errorf("failed to save chunk: %w", err)
	}
	return nil
}

func (s *ChunkStorage) SaveChunks(chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if err := s.SaveChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChunkStorage) GetChunk(id string) (*models.Chunk, error) {
	var chunk models.Chunk
	if err := s.db.Store().Get(id, &chunk); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("chunk not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &chunk, nil
}

// GetChunks returns chunks for the given ids, preserving id order.
// Missing ids are skipped rather than failing the whole lookup.
func (s *ChunkStorage) GetChunks(ids []string) ([]*models.Chunk, error) {
	chunks := make([]*models.Chunk, 0, len(ids))
	for _, id := range ids {
		var chunk models.Chunk
		err := s.db.Store().Get(id, &chunk)
		if err == badgerhold.ErrNotFound {
			s.logger.Warn().Str("chunk_id", id).Msg("Indexed chunk missing from storage")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, nil
}

func (s *ChunkStorage) GetChunksBySource(sourceFile string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	err := s.db.Store().Find(&chunks, badgerhold.Where("SourceFile").Eq(sourceFile).Index("SourceFile"))
	if err != nil {
		return nil, fmt.Errorf("failed to find chunks for source: %w", err)
	}

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

func (s *ChunkStorage) DeleteChunk(id string) error {
	if err := s.db.Store().Delete(id, &models.Chunk{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete chunk: %w", err)
	}
	return nil
}

// DeleteChunksBySource removes all chunks for a source file and returns the
// number deleted. Used to retire superseded chunks on re-ingestion.
func (s *ChunkStorage) DeleteChunksBySource(sourceFile string) (int, error) {
	chunks, err := s.GetChunksBySource(sourceFile)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, chunk := range chunks {
		if err := s.DeleteChunk(chunk.ID); err != nil {
			s.logger.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Failed to delete superseded chunk")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().
			Str("source_file", sourceFile).
			Int("deleted", deleted).
			Msg("Deleted superseded chunks")
	}
	return deleted, nil
}

func (s *ChunkStorage) CountChunks() (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

func (s *ChunkStorage) GetStats() (*models.ChunkStats, error) {
	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, nil); err != nil {
		return nil, fmt.Errorf("failed to load chunks for stats: %w", err)
	}

	bySource := make(map[string]int)
	for i := range chunks {
		bySource[chunks[i].SourceFile]++
	}

	return &models.ChunkStats{
		TotalChunks:    len(chunks),
		ChunksBySource: bySource,
		LastUpdated:    time.Now(),
	}, nil
}

func (s *ChunkStorage) ClearAll() error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, nil); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	s.logger.Info().Msg("Cleared all chunks")
	return nil
}

// Ensure ChunkStorage implements the interface
var _ interfaces.ChunkStorage = (*ChunkStorage)(nil)
