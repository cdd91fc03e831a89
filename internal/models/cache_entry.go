package models

import (
	"time"
)

// CacheNamespace distinguishes the kinds of cached values, each with its own TTL
type CacheNamespace string

const (
	CacheNamespaceQuery     CacheNamespace = "query"
	CacheNamespaceEmbedding CacheNamespace = "embedding"
	CacheNamespaceResponse  CacheNamespace = "response"
)

// CacheEntry is one namespaced value with an absolute expiry
type CacheEntry struct {
	Key       string         `json:"key" badgerhold:"key"` // namespace:sha256(normalized input)
	Namespace CacheNamespace `json:"namespace"`
	Value     []byte         `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the entry's TTL has elapsed
func (e *CacheEntry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}
