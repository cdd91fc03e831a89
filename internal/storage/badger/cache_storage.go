package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CacheStorage implements the CacheStorage interface for Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// GetEntry returns a cache entry if present and unexpired. Expired entries
// are deleted on read.
func (s *CacheStorage) GetEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(key, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.Expired() {
		if delErr := s.db.Store().Delete(key, &models.CacheEntry{}); delErr != nil && delErr != badgerhold.ErrNotFound {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("Failed to delete expired cache entry")
		}
		return nil, interfaces.ErrCacheMiss
	}

	return &entry, nil
}

func (s *CacheStorage) SetEntry(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("cache entry key is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) DeleteEntry(ctx context.Context, key string) error {
	err := s.db.Store().Delete(key, &models.CacheEntry{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PurgeExpired removes all expired entries and returns the number purged
func (s *CacheStorage) PurgeExpired(ctx context.Context) (int, error) {
	var entries []models.CacheEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("ExpiresAt").Lt(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to find expired cache entries: %w", err)
	}

	purged := 0
	for i := range entries {
		if err := s.db.Store().Delete(entries[i].Key, &models.CacheEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("key", entries[i].Key).Msg("Failed to purge cache entry")
			continue
		}
		purged++
	}

	if purged > 0 {
		s.logger.Debug().Int("purged", purged).Msg("Purged expired cache entries")
	}
	return purged, nil
}

// Ensure CacheStorage implements the interface
var _ interfaces.CacheStorage = (*CacheStorage)(nil)
