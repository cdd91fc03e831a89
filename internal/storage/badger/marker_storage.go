package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MarkerStorage implements the MarkerStorage interface for Badger
type MarkerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMarkerStorage creates a new MarkerStorage instance
func NewMarkerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MarkerStorage {
	return &MarkerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MarkerStorage) SaveMarker(marker *models.ProcessedMarker) error {
	if marker.FileName == "" {
		return fmt.Errorf("marker file name is required")
	}

	if marker.ProcessedAt.IsZero() {
		marker.ProcessedAt = time.Now()
	}

	if err := s.db.Store().Upsert(marker.FileName, marker); err != nil {
		return fmt.Errorf("failed to save processed marker: %w", err)
	}
	return nil
}

func (s *MarkerStorage) GetMarker(fileName string) (*models.ProcessedMarker, error) {
	var marker models.ProcessedMarker
	err := s.db.Store().Get(fileName, &marker)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed marker: %w", err)
	}
	return &marker, nil
}

func (s *MarkerStorage) DeleteMarker(fileName string) error {
	err := s.db.Store().Delete(fileName, &models.ProcessedMarker{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete processed marker: %w", err)
	}
	return nil
}

func (s *MarkerStorage) ListMarkers() ([]*models.ProcessedMarker, error) {
	var markers []models.ProcessedMarker
	err := s.db.Store().Find(&markers, badgerhold.Where("FileName").Ne("").SortBy("ProcessedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list processed markers: %w", err)
	}

	result := make([]*models.ProcessedMarker, len(markers))
	for i := range markers {
		result[i] = &markers[i]
	}
	return result, nil
}

// Ensure MarkerStorage implements the interface
var _ interfaces.MarkerStorage = (*MarkerStorage)(nil)
