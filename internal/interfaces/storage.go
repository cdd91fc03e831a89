package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// ChunkStorage - interface for document chunk persistence
type ChunkStorage interface {
	SaveChunk(chunk *models.Chunk) error
	SaveChunks(chunks []*models.Chunk) error
	GetChunk(id string) (*models.Chunk, error)
	GetChunks(ids []string) ([]*models.Chunk, error)
	GetChunksBySource(sourceFile string) ([]*models.Chunk, error)
	DeleteChunk(id string) error
	DeleteChunksBySource(sourceFile string) (int, error)
	CountChunks() (int, error)
	GetStats() (*models.ChunkStats, error)
	ClearAll() error
}

// VersionStorage - interface for document version record persistence
type VersionStorage interface {
	SaveVersion(record *models.VersionRecord) error
	GetVersion(fileName string) (*models.VersionRecord, error)
	DeleteVersion(fileName string) error
	ListVersions() ([]*models.VersionRecord, error)
	AppendHistory(entry *models.VersionHistoryEntry) error
	GetHistory(fileName string) ([]*models.VersionHistoryEntry, error)
}

// MarkerStorage - interface for processed-marker persistence
type MarkerStorage interface {
	SaveMarker(marker *models.ProcessedMarker) error
	GetMarker(fileName string) (*models.ProcessedMarker, error)
	DeleteMarker(fileName string) error
	ListMarkers() ([]*models.ProcessedMarker, error)
}

// HistoryStorage - interface for durable conversation turn persistence
type HistoryStorage interface {
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	RecentTurns(ctx context.Context, deviceID string, limit int) ([]*models.ConversationTurn, error)
	DeleteTurns(ctx context.Context, deviceID string) error
}

// CacheStorage - interface for namespaced TTL cache entries
type CacheStorage interface {
	GetEntry(ctx context.Context, key string) (*models.CacheEntry, error)
	SetEntry(ctx context.Context, entry *models.CacheEntry) error
	DeleteEntry(ctx context.Context, key string) error
	PurgeExpired(ctx context.Context) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	ChunkStorage() ChunkStorage
	VersionStorage() VersionStorage
	MarkerStorage() MarkerStorage
	HistoryStorage() HistoryStorage
	CacheStorage() CacheStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
