package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// memCacheStorage is an in-memory CacheStorage honoring expiry on read
type memCacheStorage struct {
	entries map[string]*models.CacheEntry
}

func newMemCacheStorage() *memCacheStorage {
	return &memCacheStorage{entries: make(map[string]*models.CacheEntry)}
}

func (m *memCacheStorage) GetEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	if entry.Expired() {
		delete(m.entries, key)
		return nil, interfaces.ErrCacheMiss
	}
	return entry, nil
}

func (m *memCacheStorage) SetEntry(ctx context.Context, entry *models.CacheEntry) error {
	m.entries[entry.Key] = entry
	return nil
}

func (m *memCacheStorage) DeleteEntry(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memCacheStorage) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	for key, entry := range m.entries {
		if entry.Expired() {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

func newTestService(t *testing.T, enabled bool) (*Service, *memCacheStorage) {
	t.Helper()
	storage := newMemCacheStorage()
	config := &common.CacheConfig{
		Enabled:      enabled,
		ResponseTTL:  86400,
		EmbeddingTTL: 86400,
		QueryTTL:     3600,
	}
	return NewService(storage, config, arbor.NewLogger()), storage
}

func TestCache_RoundTrip(t *testing.T) {
	service, _ := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, models.CacheNamespaceResponse, "what is the leave policy", []byte("answer")))

	value, err := service.Get(ctx, models.CacheNamespaceResponse, "what is the leave policy")
	require.NoError(t, err)
	assert.Equal(t, []byte("answer"), value)
}

func TestCache_NormalizedKeysShareEntries(t *testing.T) {
	service, _ := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, models.CacheNamespaceResponse, "What Is The   Leave Policy", []byte("answer")))

	value, err := service.Get(ctx, models.CacheNamespaceResponse, "what is the leave policy")
	require.NoError(t, err)
	assert.Equal(t, []byte("answer"), value)
}

func TestCache_NamespacesAreIsolated(t *testing.T) {
	service, _ := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, models.CacheNamespaceResponse, "input", []byte("response")))

	_, err := service.Get(ctx, models.CacheNamespaceQuery, "input")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestCache_MissAndInvalidate(t *testing.T) {
	service, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := service.Get(ctx, models.CacheNamespaceResponse, "never stored")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	require.NoError(t, service.Set(ctx, models.CacheNamespaceResponse, "input", []byte("value")))
	require.NoError(t, service.Invalidate(ctx, models.CacheNamespaceResponse, "input"))

	_, err = service.Get(ctx, models.CacheNamespaceResponse, "input")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestCache_DisabledAlwaysMisses(t *testing.T) {
	service, storage := newTestService(t, false)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, models.CacheNamespaceResponse, "input", []byte("value")))
	assert.Empty(t, storage.entries)

	_, err := service.Get(ctx, models.CacheNamespaceResponse, "input")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestCache_NamespaceTTLs(t *testing.T) {
	service, storage := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, service.Set(ctx, models.CacheNamespaceQuery, "how many sick days", []byte("analysis")))

	entry, ok := storage.entries[cacheKey(models.CacheNamespaceQuery, "how many sick days")]
	require.True(t, ok)
	ttl := entry.ExpiresAt.Sub(entry.CreatedAt)
	assert.Equal(t, 3600*time.Second, ttl)
}
