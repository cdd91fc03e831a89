// Package chat orchestrates one conversational turn as an explicit state
// machine: cache lookup, health check, query analysis, context assembly,
// prompt construction, generation with bounded retry, and escalation
// handling. Every turn produces some response; there is no path that
// discards a turn silently.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/analysis"
)

// escalationSentinel is the in-band marker the model emits to signal that
// a human should follow up. It is stripped from the final answer.
const escalationSentinel = "[ESCALATE_TO_HR]"

const escalationSuffix = "\n\nI've flagged this for the HR team so someone can follow up with you directly."

type turnState string

const (
	stateCacheCheck   turnState = "cache_check"
	stateHealthCheck  turnState = "health_check"
	stateAnalyze      turnState = "analyze"
	stateFileRefresh  turnState = "file_refresh"
	stateHistoryLoad  turnState = "history_load"
	stateContextBuild turnState = "context_build"
	statePromptBuild  turnState = "prompt_build"
	stateGenerate     turnState = "generate"
	statePostProcess  turnState = "post_process"
	stateCacheWrite   turnState = "cache_write"
	stateReturn       turnState = "return"
)

// turn carries the mutable state of one conversational turn through the
// state machine
type turn struct {
	deviceID    string
	query       string
	opts        *interfaces.AskOptions
	started     time.Time
	prioritized []string
	analysis    *models.QueryAnalysis
	turns       []*models.ConversationTurn
	bundle      *models.ContextBundle
	messages    []interfaces.Message
	rawAnswer   string
	generateErr error
	retryCount  int
	result      *models.TurnResult
}

// Service implements the ChatService interface
type Service struct {
	llm        interfaces.LLMService
	analyzer   interfaces.AnalysisService
	history    interfaces.HistoryService
	contextSvc interfaces.ContextService
	cache      interfaces.CacheService
	status     interfaces.StatusService
	notifier   interfaces.NotificationService
	ingest     interfaces.IngestService
	config     *common.Config
	logger     arbor.ILogger

	// Injectable for tests; defaults to a context-aware sleep
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates the conversation orchestrator. cache may be nil when
// caching is disabled; ingest may be nil when uploaded-file refresh is not
// wired.
func NewService(
	llm interfaces.LLMService,
	analyzer interfaces.AnalysisService,
	history interfaces.HistoryService,
	contextSvc interfaces.ContextService,
	cache interfaces.CacheService,
	status interfaces.StatusService,
	notifier interfaces.NotificationService,
	ingest interfaces.IngestService,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		llm:        llm,
		analyzer:   analyzer,
		history:    history,
		contextSvc: contextSvc,
		cache:      cache,
		status:     status,
		notifier:   notifier,
		ingest:     ingest,
		config:     config,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Ask runs one full turn for the given device and query
func (s *Service) Ask(ctx context.Context, deviceID string, query string, opts *interfaces.AskOptions) (*models.TurnResult, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if opts == nil {
		opts = &interfaces.AskOptions{}
	}

	t := &turn{
		deviceID: deviceID,
		query:    strings.TrimSpace(query),
		opts:     opts,
		started:  time.Now(),
	}

	state := stateCacheCheck
	for state != stateReturn {
		switch state {
		case stateCacheCheck:
			state = s.cacheCheck(ctx, t)
		case stateHealthCheck:
			state = s.healthCheck(ctx, t)
		case stateAnalyze:
			state = s.analyze(ctx, t)
		case stateFileRefresh:
			state = s.fileRefresh(ctx, t)
		case stateHistoryLoad:
			state = s.historyLoad(ctx, t)
		case stateContextBuild:
			state = s.contextBuild(ctx, t)
		case statePromptBuild:
			state = s.promptBuild(t)
		case stateGenerate:
			state = s.generate(ctx, t)
		case statePostProcess:
			state = s.postProcess(ctx, t)
		case stateCacheWrite:
			state = s.cacheWrite(ctx, t)
		default:
			return nil, fmt.Errorf("unknown turn state %q", state)
		}
	}

	return s.finish(ctx, t), nil
}

// HealthCheck verifies the generation provider is reachable
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.llm.HealthCheck(ctx)
}

// cacheCheck short-circuits the turn when an identical query was answered
// within the response TTL
func (s *Service) cacheCheck(ctx context.Context, t *turn) turnState {
	if s.cache == nil {
		return stateHealthCheck
	}

	payload, err := s.cache.Get(ctx, models.CacheNamespaceResponse, t.query)
	if err != nil {
		return stateHealthCheck
	}

	var cached models.TurnResult
	if err := json.Unmarshal(payload, &cached); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding undecodable cached response")
		return stateHealthCheck
	}

	cached.Cached = true
	t.result = &cached
	s.logger.Debug().Str("device_id", t.deviceID).Msg("Response cache hit")
	return stateReturn
}

// healthCheck returns a fixed service-unavailable response when the
// generation provider is degraded; no further stages run
func (s *Service) healthCheck(ctx context.Context, t *turn) turnState {
	health := s.status.LLMHealth(ctx)
	if health.Healthy {
		return stateAnalyze
	}

	s.logger.Warn().
		Str("device_id", t.deviceID).
		Str("detail", health.Detail).
		Msg("Generation provider unhealthy, short-circuiting turn")

	t.result = &models.TurnResult{
		Content:  msgServiceUnavailable,
		Language: "en",
		Intent:   analysis.IntentUnknown,
		Error:    errCodeServiceUnavailable,
	}
	return stateReturn
}

// analyze runs language, intent, and entity analysis. A pure greeting
// skips generation entirely and returns a canned reply.
func (s *Service) analyze(ctx context.Context, t *turn) turnState {
	t.analysis = s.lookupAnalysis(ctx, t.query)

	if t.analysis.Intent == analysis.IntentGreeting && t.retryCount == 0 {
		t.result = &models.TurnResult{
			Content:          msgGreeting,
			Language:         t.analysis.Language,
			Intent:           t.analysis.Intent,
			IntentConfidence: t.analysis.IntentConfidence,
			Entities:         t.analysis.Entities,
		}
		return stateReturn
	}

	return stateFileRefresh
}

// lookupAnalysis returns the cached analysis for the query, running the
// analyzer on a miss. Retries re-entering from the analysis stage read the
// entry written on the first pass instead of re-analyzing.
func (s *Service) lookupAnalysis(ctx context.Context, query string) *models.QueryAnalysis {
	if s.cache != nil {
		if payload, err := s.cache.Get(ctx, models.CacheNamespaceQuery, query); err == nil {
			var cached models.QueryAnalysis
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached
			}
			s.logger.Warn().Msg("Discarding undecodable cached query analysis")
		}
	}

	result := s.analyzer.Analyze(query)

	if s.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, models.CacheNamespaceQuery, query, payload); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to cache query analysis")
			}
		}
	}
	return result
}

// fileRefresh ingests any just-uploaded files before retrieval so their
// chunks are searchable this turn. Ingestion failures are absorbed; the
// turn proceeds against the existing index.
func (s *Service) fileRefresh(ctx context.Context, t *turn) turnState {
	t.prioritized = t.prioritized[:0]
	for _, path := range t.opts.PrioritizeFiles {
		t.prioritized = append(t.prioritized, filepath.Base(path))
		if s.ingest == nil {
			continue
		}
		if _, err := s.ingest.ProcessFile(ctx, path, false); err != nil {
			s.logger.Warn().
				Err(err).
				Str("file", path).
				Msg("Failed to refresh uploaded file before retrieval")
		}
	}
	return stateHistoryLoad
}

// historyLoad fetches the recent conversation window; failure degrades to
// an empty history
func (s *Service) historyLoad(ctx context.Context, t *turn) turnState {
	turns, err := s.history.Recent(ctx, t.deviceID)
	if err != nil {
		s.logger.Warn().Err(err).Str("device_id", t.deviceID).Msg("Failed to load conversation history")
		turns = nil
	}
	t.turns = turns
	return stateContextBuild
}

func (s *Service) contextBuild(ctx context.Context, t *turn) turnState {
	t.bundle = s.contextSvc.Build(ctx, t.query, s.config.Context.MaxTokens, t.prioritized)
	return statePromptBuild
}

// promptBuild assembles the ordered message list: system instruction with
// evidence, the recent history, then the current query
func (s *Service) promptBuild(t *turn) turnState {
	messages := make([]interfaces.Message, 0, len(t.turns)*2+2)
	messages = append(messages, interfaces.Message{
		Role:    "system",
		Content: s.buildSystemPrompt(t.analysis.Language, t.bundle.Context),
	})
	for _, turn := range t.turns {
		messages = append(messages,
			interfaces.Message{Role: "user", Content: turn.UserQuery},
			interfaces.Message{Role: "assistant", Content: turn.AssistantResponse},
		)
	}
	messages = append(messages, interfaces.Message{Role: "user", Content: t.query})

	t.messages = messages
	return stateGenerate
}

// generate invokes the model. Transient failures trigger exponential
// backoff and re-entry from Analyze with the retry count preserved;
// non-transient or exhausted failures fall through to PostProcess.
func (s *Service) generate(ctx context.Context, t *turn) turnState {
	answer, err := s.llm.Chat(ctx, t.messages)
	if err == nil {
		t.rawAnswer = answer
		t.generateErr = nil
		return statePostProcess
	}
	t.generateErr = err

	if isTransient(err) && t.retryCount < s.maxRetries() {
		delay := time.Duration(1<<t.retryCount) * time.Second
		t.retryCount++
		s.logger.Warn().
			Err(err).
			Int("retry", t.retryCount).
			Dur("backoff", delay).
			Msg("Transient generation failure, retrying turn")
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return statePostProcess
		}
		return stateAnalyze
	}

	return statePostProcess
}

// postProcess shapes the final answer: taxonomy message on generation
// failure, otherwise sentinel stripping and the escalation flow
func (s *Service) postProcess(ctx context.Context, t *turn) turnState {
	if t.generateErr != nil {
		code, message := classifyTerminal(t.generateErr)
		s.logger.Error().
			Err(t.generateErr).
			Str("code", code).
			Int("retries", t.retryCount).
			Msg("Generation failed")
		t.result = s.newResult(t, message)
		t.result.Error = code
		return stateCacheWrite
	}

	answer := strings.TrimSpace(t.rawAnswer)
	escalated := strings.Contains(answer, escalationSentinel)
	if escalated {
		answer = strings.TrimSpace(strings.ReplaceAll(answer, escalationSentinel, ""))
		if s.config.Escalation.Enabled && len(s.config.Escalation.Recipients) > 0 {
			answer += escalationSuffix
			s.notifyEscalation(t.deviceID, t.query, answer)
		}
	}

	t.result = s.newResult(t, answer)
	t.result.Escalated = escalated
	return stateCacheWrite
}

// cacheWrite stores successful, non-escalated answers. Escalated answers
// are regenerated every time so each request reaches the notifier.
func (s *Service) cacheWrite(ctx context.Context, t *turn) turnState {
	if s.cache == nil || t.result.Error != "" || t.result.Escalated {
		return stateReturn
	}

	payload, err := json.Marshal(t.result)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode turn result for caching")
		return stateReturn
	}
	if err := s.cache.Set(ctx, models.CacheNamespaceResponse, t.query, payload); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache turn result")
	}
	return stateReturn
}

// finish stamps the response time, records the turn, and returns the result
func (s *Service) finish(ctx context.Context, t *turn) *models.TurnResult {
	t.result.ResponseTime = time.Since(t.started).Seconds()
	s.recordTurn(ctx, t)

	s.logger.Info().
		Str("device_id", t.deviceID).
		Str("intent", t.result.Intent).
		Bool("cached", t.result.Cached).
		Bool("escalated", t.result.Escalated).
		Str("error", t.result.Error).
		Float64("response_time", t.result.ResponseTime).
		Msg("Turn completed")

	return t.result
}

// recordTurn appends the exchange to the device history; failure is logged,
// never propagated
func (s *Service) recordTurn(ctx context.Context, t *turn) {
	record := &models.ConversationTurn{
		ID:                common.NewTurnID(),
		DeviceID:          t.deviceID,
		UserQuery:         t.query,
		AssistantResponse: t.result.Content,
		Language:          t.result.Language,
		Sources:           t.result.Sources,
		Intent:            t.result.Intent,
		IntentConfidence:  t.result.IntentConfidence,
		Entities:          t.result.Entities,
		Timestamp:         time.Now(),
		ResponseTime:      t.result.ResponseTime,
	}
	if err := s.history.Append(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("device_id", t.deviceID).Msg("Failed to record conversation turn")
	}
}

// notifyEscalation hands the escalation to the notifier without blocking
// turn completion
func (s *Service) notifyEscalation(deviceID, query, answer string) {
	if s.notifier == nil {
		return
	}
	common.SafeGo(s.logger, "sendEscalation", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendEscalation(ctx, deviceID, query, answer); err != nil {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Escalation notification failed")
		}
	})
}

// newResult builds a TurnResult carrying the turn's analysis and sources
func (s *Service) newResult(t *turn, content string) *models.TurnResult {
	result := &models.TurnResult{
		Content:          content,
		Language:         t.analysis.Language,
		Intent:           t.analysis.Intent,
		IntentConfidence: t.analysis.IntentConfidence,
		Entities:         t.analysis.Entities,
	}
	if t.bundle != nil {
		result.Sources = t.bundle.Sources
	}
	return result
}

func (s *Service) buildSystemPrompt(language string, evidence string) string {
	var b strings.Builder
	b.WriteString("You are a helpful HR assistant for employees. ")
	b.WriteString("Answer using only the reference material below. ")
	b.WriteString("If the material does not cover the question, say so rather than inventing policy details.\n")
	b.WriteString("If the employee asks to speak with a person, raises a complaint or grievance, or the question needs HR judgement, include the marker ")
	b.WriteString(escalationSentinel)
	b.WriteString(" in your reply.\n")

	switch language {
	case "hi":
		b.WriteString("Reply in Hindi.\n")
	case "hi-Latn":
		b.WriteString("Reply in romanized Hindi, the way the employee wrote.\n")
	default:
		b.WriteString("Reply in English.\n")
	}

	if evidence != "" {
		b.WriteString("\nReference material:\n")
		b.WriteString(evidence)
	} else {
		b.WriteString("\nNo reference material matched this question.")
	}
	return b.String()
}

func (s *Service) maxRetries() int {
	if s.config.LLM.MaxRetries < 0 {
		return 0
	}
	return s.config.LLM.MaxRetries
}

// sleepContext sleeps for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure Service implements the interface
var _ interfaces.ChatService = (*Service)(nil)
