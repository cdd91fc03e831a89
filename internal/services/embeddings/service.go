// Package embeddings sits between the ingestion/retrieval pipeline and the
// embedding provider. It batches texts adaptively by mean length, rate
// limits provider calls, L2-normalizes every returned vector, and caches
// query embeddings.
package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/vectorindex"
	"golang.org/x/time/rate"
)

// Batch sizes by mean text length. Shorter texts pack more per provider
// call; long texts shrink the batch to stay under payload limits.
const (
	batchSizeShort  = 32 // mean length < 500
	batchSizeMedium = 16 // mean length < 1000
	batchSizeLong   = 8
)

// Service implements the EmbeddingService interface
type Service struct {
	llm       interfaces.LLMService
	cache     interfaces.CacheService
	limiter   *rate.Limiter
	dimension int
	model     string
	logger    arbor.ILogger
}

// NewService creates an embedding service. The cache is optional; pass nil
// to disable query embedding caching.
func NewService(llm interfaces.LLMService, cache interfaces.CacheService, config *common.EmbeddingsConfig, logger arbor.ILogger) (*Service, error) {
	if llm == nil {
		return nil, fmt.Errorf("LLM service is required for the embedding service")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", config.Dimension)
	}

	limit := rate.Inf
	if config.RateLimit != "" {
		interval, err := time.ParseDuration(config.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding rate limit '%s': %w", config.RateLimit, err)
		}
		if interval > 0 {
			limit = rate.Every(interval)
		}
	}

	service := &Service{
		llm:       llm,
		cache:     cache,
		limiter:   rate.NewLimiter(limit, 1),
		dimension: config.Dimension,
		model:     config.Model,
		logger:    logger,
	}

	logger.Debug().
		Str("model", config.Model).
		Int("dimension", config.Dimension).
		Msg("Embedding service created")

	return service, nil
}

// EmbedChunks generates embeddings for chunk contents. Vector order matches
// chunk order.
func (s *Service) EmbedChunks(ctx context.Context, chunks []*models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	return s.EmbedTexts(ctx, texts)
}

// EmbedTexts generates normalized embeddings for the given texts, batching
// provider calls by mean text length.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := batchSizeFor(texts)
	startTime := time.Now()
	s.logger.Debug().
		Int("texts", len(texts)).
		Int("batch_size", batchSize).
		Msg("Embedding texts")

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limiter interrupted: %w", err)
		}

		batch, err := s.llm.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}

		for i, vec := range batch {
			if len(vec) != s.dimension {
				return nil, fmt.Errorf("%w: text %d produced dimension %d, expected %d",
					interfaces.ErrDimensionMismatch, start+i, len(vec), s.dimension)
			}
			vectors = append(vectors, vectorindex.Normalize(vec))
		}
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding texts completed")

	return vectors, nil
}

// EmbedQuery generates a normalized embedding for a search query. A
// dimension mismatch from the provider degrades to a zero vector with a
// warning so the search path returns no hits instead of failing the turn.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := s.cachedQueryVector(ctx, query); ok {
		return cached, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter interrupted: %w", err)
	}

	vec, err := s.llm.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, interfaces.ErrDimensionMismatch) {
			s.logger.Warn().
				Err(err).
				Msg("Query embedding dimension mismatch, degrading to zero vector")
			return make([]float32, s.dimension), nil
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if len(vec) != s.dimension {
		s.logger.Warn().
			Int("got", len(vec)).
			Int("expected", s.dimension).
			Msg("Query embedding dimension mismatch, degrading to zero vector")
		return make([]float32, s.dimension), nil
	}

	normalized := vectorindex.Normalize(vec)
	s.storeQueryVector(ctx, query, normalized)
	return normalized, nil
}

// ModelName returns the configured embedding model name
func (s *Service) ModelName() string {
	return s.model
}

// Dimension returns the embedding vector dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable reports whether the underlying provider responds to a health probe
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.llm.HealthCheck(ctx) == nil
}

func (s *Service) cachedQueryVector(ctx context.Context, query string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, models.CacheNamespaceEmbedding, query)
	if err != nil {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) != s.dimension {
		return nil, false
	}

	s.logger.Debug().Msg("Query embedding served from cache")
	return vec, true
}

func (s *Service) storeQueryVector(ctx context.Context, query string, vec []float32) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, models.CacheNamespaceEmbedding, query, data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache query embedding")
	}
}

// batchSizeFor selects the provider batch size from the mean text length
func batchSizeFor(texts []string) int {
	total := 0
	for _, text := range texts {
		total += len(text)
	}
	mean := total / len(texts)

	switch {
	case mean < 500:
		return batchSizeShort
	case mean < 1000:
		return batchSizeMedium
	default:
		return batchSizeLong
	}
}

// Ensure Service implements the interface
var _ interfaces.EmbeddingService = (*Service)(nil)
