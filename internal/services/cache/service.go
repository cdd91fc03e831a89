// Package cache provides namespaced TTL caching over badger-backed
// storage. Keys are derived from a normalized and hashed form of the input
// text so equivalent queries share entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service implements the CacheService interface
type Service struct {
	storage interfaces.CacheStorage
	config  *common.CacheConfig
	logger  arbor.ILogger
}

// NewService creates a cache service
func NewService(storage interfaces.CacheStorage, config *common.CacheConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// Get returns the cached value for the namespaced input, or ErrCacheMiss.
// A disabled cache always misses.
func (s *Service) Get(ctx context.Context, namespace models.CacheNamespace, input string) ([]byte, error) {
	if !s.config.Enabled {
		return nil, interfaces.ErrCacheMiss
	}

	entry, err := s.storage.GetEntry(ctx, cacheKey(namespace, input))
	if errors.Is(err, interfaces.ErrCacheMiss) {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	s.logger.Debug().
		Str("namespace", string(namespace)).
		Msg("Cache hit")

	return entry.Value, nil
}

// Set stores a value under the namespaced input with the namespace TTL.
// A disabled cache or a zero TTL makes this a no-op.
func (s *Service) Set(ctx context.Context, namespace models.CacheNamespace, input string, value []byte) error {
	if !s.config.Enabled {
		return nil
	}

	ttl := s.ttlFor(namespace)
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	entry := &models.CacheEntry{
		Key:       cacheKey(namespace, input),
		Namespace: namespace,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.storage.SetEntry(ctx, entry); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	s.logger.Debug().
		Str("namespace", string(namespace)).
		Dur("ttl", ttl).
		Msg("Cache entry stored")

	return nil
}

// Invalidate removes a cached value
func (s *Service) Invalidate(ctx context.Context, namespace models.CacheNamespace, input string) error {
	if err := s.storage.DeleteEntry(ctx, cacheKey(namespace, input)); err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}
	return nil
}

// ttlFor maps a namespace to its configured TTL
func (s *Service) ttlFor(namespace models.CacheNamespace) time.Duration {
	var seconds int
	switch namespace {
	case models.CacheNamespaceResponse:
		seconds = s.config.ResponseTTL
	case models.CacheNamespaceEmbedding:
		seconds = s.config.EmbeddingTTL
	case models.CacheNamespaceQuery:
		seconds = s.config.QueryTTL
	}
	return time.Duration(seconds) * time.Second
}

// cacheKey builds "namespace:sha256(normalized input)". Normalization
// lowercases and collapses whitespace so trivially reworded lookups of the
// same text share an entry.
func cacheKey(namespace models.CacheNamespace, input string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), " "))
	sum := sha256.Sum256([]byte(normalized))
	return string(namespace) + ":" + hex.EncodeToString(sum[:])
}

// Ensure Service implements the interface
var _ interfaces.CacheService = (*Service)(nil)
