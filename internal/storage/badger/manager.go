package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	chunk   interfaces.ChunkStorage
	version interfaces.VersionStorage
	marker  interfaces.MarkerStorage
	history interfaces.HistoryStorage
	cache   interfaces.CacheStorage
	kv      interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		chunk:   NewChunkStorage(db, logger),
		version: NewVersionStorage(db, logger),
		marker:  NewMarkerStorage(db, logger),
		history: NewHistoryStorage(db, logger),
		cache:   NewCacheStorage(db, logger),
		kv:      NewKVStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ChunkStorage returns the Chunk storage interface
func (m *Manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunk
}

// VersionStorage returns the Version storage interface
func (m *Manager) VersionStorage() interfaces.VersionStorage {
	return m.version
}

// MarkerStorage returns the processed-marker storage interface
func (m *Manager) MarkerStorage() interfaces.MarkerStorage {
	return m.marker
}

// HistoryStorage returns the conversation history storage interface
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// CacheStorage returns the Cache storage interface
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
