// Package retriever embeds a query, searches the vector index, and shapes
// the raw hits with adaptive thresholding and source prioritization.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service implements the RetrieverService interface
type Service struct {
	index    interfaces.VectorIndex
	embedder interfaces.EmbeddingService
	chunks   interfaces.ChunkStorage
	config   *common.RetrievalConfig
	logger   arbor.ILogger
}

// NewService creates a retriever service
func NewService(index interfaces.VectorIndex, embedder interfaces.EmbeddingService, chunks interfaces.ChunkStorage, config *common.RetrievalConfig, logger arbor.ILogger) *Service {
	return &Service{
		index:    index,
		embedder: embedder,
		chunks:   chunks,
		config:   config,
		logger:   logger,
	}
}

// Search embeds the query and returns up to topK ranked results.
//
// Raw candidates are fetched with headroom (min(2*topK, cap)) and filtered
// by an adaptive threshold of max(static floor, best*0.7). If fewer than 2
// candidates survive while more than 2 exist, the filter relaxes to the
// static floor alone so one strong outlier cannot empty the context.
// Results from prioritized source files get their score boosted before the
// final sort and truncation.
func (s *Service) Search(ctx context.Context, query string, topK int, prioritizeFiles []string) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = s.config.TopK
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidateCount := 2 * topK
	if candidateCount > s.config.CandidateCap {
		candidateCount = s.config.CandidateCap
	}

	hits, err := s.index.Search(vec, candidateCount)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	if len(hits) == 0 {
		s.logger.Debug().Msg("Index search returned no candidates")
		return nil, nil
	}

	survivors := applyAdaptiveThreshold(hits, s.config.SimilarityFloor)
	if len(survivors) == 0 {
		s.logger.Debug().
			Int("candidates", len(hits)).
			Msg("No candidates above similarity floor")
		return nil, nil
	}

	results, err := s.loadResults(survivors)
	if err != nil {
		return nil, err
	}

	s.boostPrioritized(results, prioritizeFiles)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug().
		Int("candidates", len(hits)).
		Int("results", len(results)).
		Msg("Retrieval completed")

	return results, nil
}

// applyAdaptiveThreshold keeps hits above max(floor, best*0.7), relaxing to
// the static floor when the adaptive cutoff would leave fewer than 2 of
// more than 2 candidates.
func applyAdaptiveThreshold(hits []interfaces.SearchHit, floor float64) []interfaces.SearchHit {
	best := hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score > best {
			best = hit.Score
		}
	}

	threshold := best * 0.7
	if threshold < floor {
		threshold = floor
	}

	survivors := keepAbove(hits, threshold)
	if len(survivors) < 2 && len(hits) > 2 {
		survivors = keepAbove(hits, floor)
	}
	return survivors
}

func keepAbove(hits []interfaces.SearchHit, threshold float64) []interfaces.SearchHit {
	var out []interfaces.SearchHit
	for _, hit := range hits {
		if hit.Score >= threshold {
			out = append(out, hit)
		}
	}
	return out
}

// loadResults resolves surviving hits to stored chunks, dropping ids the
// chunk store no longer has.
func (s *Service) loadResults(hits []interfaces.SearchHit) ([]models.RetrievalResult, error) {
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ChunkID
		scores[hit.ChunkID] = hit.Score
	}

	chunks, err := s.chunks.GetChunks(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for search hits: %w", err)
	}

	results := make([]models.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, models.RetrievalResult{
			Chunk: *chunk,
			Score: scores[chunk.ID],
		})
	}
	return results, nil
}

// boostPrioritized multiplies scores of results from prioritized source
// files by the configured boost, capped at 1.0
func (s *Service) boostPrioritized(results []models.RetrievalResult, prioritizeFiles []string) {
	if len(prioritizeFiles) == 0 {
		return
	}

	prioritized := make(map[string]bool, len(prioritizeFiles))
	for _, file := range prioritizeFiles {
		prioritized[file] = true
	}

	boost := s.config.PriorityBoost
	if boost <= 0 {
		boost = 1.2
	}

	for i := range results {
		if !prioritized[results[i].Chunk.SourceFile] {
			continue
		}
		score := results[i].Score * boost
		if score > 1.0 {
			score = 1.0
		}
		results[i].Score = score
		results[i].Prioritized = true
	}
}

// Ensure Service implements the interface
var _ interfaces.RetrieverService = (*Service)(nil)
