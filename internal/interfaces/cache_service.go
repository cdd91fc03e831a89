package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// CacheService provides namespaced TTL caching keyed by a normalized and
// hashed form of the input text. Namespaces (query, embedding, response,
// health) carry distinct TTLs from configuration.
type CacheService interface {
	// Get returns the cached value for the namespaced input, or ErrCacheMiss
	Get(ctx context.Context, namespace models.CacheNamespace, input string) ([]byte, error)

	// Set stores a value under the namespaced input with the namespace TTL
	Set(ctx context.Context, namespace models.CacheNamespace, input string, value []byte) error

	// Invalidate removes a cached value
	Invalidate(ctx context.Context, namespace models.CacheNamespace, input string) error
}
