package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// VersionStorage implements the VersionStorage interface for Badger
type VersionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVersionStorage creates a new VersionStorage instance
func NewVersionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VersionStorage {
	return &VersionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *VersionStorage) SaveVersion(record *models.VersionRecord) error {
	if record.FileName == "" {
		return fmt.Errorf("version record file name is required")
	}

	record.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(record.FileName, record); err != nil {
		return fmt.Errorf("failed to save version record: %w", err)
	}
	return nil
}

func (s *VersionStorage) GetVersion(fileName string) (*models.VersionRecord, error) {
	var record models.VersionRecord
	err := s.db.Store().Get(fileName, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version record: %w", err)
	}
	return &record, nil
}

func (s *VersionStorage) DeleteVersion(fileName string) error {
	err := s.db.Store().Delete(fileName, &models.VersionRecord{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete version record: %w", err)
	}
	return nil
}

func (s *VersionStorage) ListVersions() ([]*models.VersionRecord, error) {
	var records []models.VersionRecord
	err := s.db.Store().Find(&records, badgerhold.Where("FileName").Ne("").SortBy("UpdatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list version records: %w", err)
	}

	result := make([]*models.VersionRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *VersionStorage) AppendHistory(entry *models.VersionHistoryEntry) error {
	entry.RecordedAt = time.Now()
	if err := s.db.Store().Insert(badgerhold.NextSequence(), entry); err != nil {
		return fmt.Errorf("failed to append version history: %w", err)
	}
	return nil
}

func (s *VersionStorage) GetHistory(fileName string) ([]*models.VersionHistoryEntry, error) {
	var entries []models.VersionHistoryEntry
	err := s.db.Store().Find(&entries,
		badgerhold.Where("FileName").Eq(fileName).Index("FileName").SortBy("RecordedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to get version history: %w", err)
	}

	result := make([]*models.VersionHistoryEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// Ensure VersionStorage implements the interface
var _ interfaces.VersionStorage = (*VersionStorage)(nil)
