// Package contextbuilder turns ranked retrieval results into a bounded
// evidence string plus a deduplicated source list. The token budget is
// converted to characters with a ratio measured against a sample string at
// construction, so swapping the token estimator adjusts packing without
// touching call sites.
package contextbuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	// minViableChars is the smallest truncated chunk worth including
	minViableChars = 300

	retryAttempts  = 3
	retryBaseDelay = 200 * time.Millisecond
)

// Service implements the ContextService interface
type Service struct {
	retriever     interfaces.RetrieverService
	maxDocuments  int
	charsPerToken float64
	topics        []topicRule
	logger        arbor.ILogger
}

type topicRule struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

type topicMapFile struct {
	Topics []topicRule `yaml:"topics"`
}

// defaultTopics covers the common HR document families when no topic map
// file is configured
var defaultTopics = []topicRule{
	{Topic: "leave policy", Keywords: []string{"sick", "pto", "vacation", "holiday", "leave", "time off", "maternity", "paternity"}},
	{Topic: "compensation policy", Keywords: []string{"salary", "pay", "payroll", "bonus", "reimbursement", "expenses", "expense"}},
	{Topic: "conduct policy", Keywords: []string{"harassment", "complaint", "grievance", "discipline", "dress code"}},
	{Topic: "benefits policy", Keywords: []string{"insurance", "benefit", "benefits", "medical", "health plan"}},
	{Topic: "working hours policy", Keywords: []string{"overtime", "working hours", "shift", "remote work", "work from home"}},
}

// NewService creates a context assembly service. When no topic map file is
// configured the built-in map is used; an unreadable file logs a warning and
// disables query rewriting.
func NewService(retriever interfaces.RetrieverService, config *common.ContextConfig, logger arbor.ILogger) *Service {
	maxDocuments := config.MaxDocuments
	if maxDocuments <= 0 {
		maxDocuments = 5
	}

	service := &Service{
		retriever:     retriever,
		maxDocuments:  maxDocuments,
		charsPerToken: estimateCharsPerToken(),
		logger:        logger,
	}

	if config.TopicMapPath != "" {
		topics, err := loadTopicMap(config.TopicMapPath)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", config.TopicMapPath).
				Msg("Topic map unavailable, query rewriting disabled")
		} else {
			service.topics = topics
		}
	} else {
		service.topics = defaultTopics
	}

	logger.Debug().
		Float64("chars_per_token", service.charsPerToken).
		Int("topics", len(service.topics)).
		Msg("Context builder created")

	return service
}

// Build retrieves relevant chunks and packs them into a context string
// within maxTokens. Persistent retrieval failure yields an empty bundle,
// never an error that would abort the turn.
func (s *Service) Build(ctx context.Context, query string, maxTokens int, prioritizeFiles []string) *models.ContextBundle {
	budget := int(float64(maxTokens) * s.charsPerToken)
	rewritten := s.rewriteQuery(query)

	results, err := s.searchWithRetry(ctx, rewritten, prioritizeFiles)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Msg("Retrieval failed after retries, returning empty context")
		return &models.ContextBundle{}
	}
	if len(results) == 0 {
		return &models.ContextBundle{}
	}

	return s.pack(results, budget)
}

// rewriteQuery prefixes a detected topic keyword to bias retrieval toward
// the right document family
func (s *Service) rewriteQuery(query string) string {
	lowered := strings.ToLower(query)
	for _, rule := range s.topics {
		for _, keyword := range rule.Keywords {
			if containsWord(lowered, strings.ToLower(keyword)) {
				s.logger.Debug().
					Str("topic", rule.Topic).
					Str("keyword", keyword).
					Msg("Query rewritten with topic prefix")
				return rule.Topic + ": " + query
			}
		}
	}
	return query
}

// searchWithRetry runs retrieval with bounded attempts and exponential backoff
func (s *Service) searchWithRetry(ctx context.Context, query string, prioritizeFiles []string) ([]models.RetrievalResult, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		results, err := s.retriever.Search(ctx, query, s.maxDocuments, prioritizeFiles)
		if err == nil {
			return results, nil
		}
		lastErr = err
		s.logger.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Msg("Retrieval attempt failed")
	}
	return nil, fmt.Errorf("retrieval failed after %d attempts: %w", retryAttempts, lastErr)
}

// pack fills the character budget greedily in score order. A chunk that
// would overflow is truncated at a sentence or whitespace boundary when the
// remaining budget is still worth filling, and dropped otherwise.
func (s *Service) pack(results []models.RetrievalResult, budget int) *models.ContextBundle {
	var builder strings.Builder
	var sources []models.SourceRef
	seen := make(map[string]bool)

	for _, result := range results {
		block := formatBlock(&result.Chunk)
		separator := 0
		if builder.Len() > 0 {
			separator = 2
		}

		included := false
		if builder.Len()+separator+len(block) <= budget {
			if separator > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(block)
			included = true
		} else {
			remaining := budget - builder.Len() - separator
			if remaining >= minViableChars {
				if separator > 0 {
					builder.WriteString("\n\n")
				}
				builder.WriteString(truncateAtBoundary(block, remaining))
				included = true
			}
		}

		if !included {
			continue
		}

		key := result.Chunk.Title + "\x00" + result.Chunk.SourceFile
		if !seen[key] {
			seen[key] = true
			sources = append(sources, models.SourceRef{
				Title:      result.Chunk.Title,
				SourceFile: result.Chunk.SourceFile,
				Score:      result.Score,
			})
		}
	}

	bundle := &models.ContextBundle{
		Context: builder.String(),
		Sources: sources,
	}

	s.logger.Debug().
		Int("context_chars", len(bundle.Context)).
		Int("sources", len(bundle.Sources)).
		Msg("Context assembled")

	return bundle
}

// formatBlock renders one chunk as a titled evidence block
func formatBlock(chunk *models.Chunk) string {
	return "[" + chunk.Title + "]\n" + chunk.Content
}

// truncateAtBoundary cuts text to at most limit characters, preferring a
// sentence end and falling back to whitespace before a hard cut
func truncateAtBoundary(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, ".!?"); idx >= minViableChars/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}

// containsWord reports whether text contains word bounded by non-letters
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordChar(rune(text[idx-1]))
		afterOK := end == len(text) || !isWordChar(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// estimateCharsPerToken measures the character-to-token ratio of a fixed
// sample using the same word-level estimator the prompt budget uses
func estimateCharsPerToken() float64 {
	const sample = "Employees accrue twelve days of paid sick leave per calendar year. " +
		"Unused days carry over up to a maximum of thirty days, subject to manager approval " +
		"and the conditions described in the leave policy."

	tokens := estimateTokens(sample)
	if tokens == 0 {
		return 4.0
	}
	return float64(len(sample)) / float64(tokens)
}

// estimateTokens approximates tokenizer output as words plus punctuation runs
func estimateTokens(text string) int {
	tokens := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case isWordChar(r):
			if !inWord {
				tokens++
				inWord = true
			}
		default:
			tokens++
			inWord = false
		}
	}
	return tokens
}

// loadTopicMap reads the YAML keyword-to-topic map
func loadTopicMap(path string) ([]topicRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file topicMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topic map: %w", err)
	}
	return file.Topics, nil
}

// Ensure Service implements the interface
var _ interfaces.ContextService = (*Service)(nil)
