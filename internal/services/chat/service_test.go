package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/analysis"
)

// scriptedLLM returns queued answers or errors per Chat call
type scriptedLLM struct {
	mu        sync.Mutex
	answers   []string
	errs      []error
	calls     int
	healthErr error
	messages  [][]interfaces.Message
}

func (l *scriptedLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.calls
	l.calls++
	l.messages = append(l.messages, messages)
	if idx < len(l.errs) && l.errs[idx] != nil {
		return "", l.errs[idx]
	}
	if idx < len(l.answers) {
		return l.answers[idx], nil
	}
	return "fallback answer", nil
}

func (l *scriptedLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (l *scriptedLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (l *scriptedLLM) HealthCheck(ctx context.Context) error { return l.healthErr }
func (l *scriptedLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeCloud }
func (l *scriptedLLM) Close() error                          { return nil }

// memHistory is an in-memory HistoryService
type memHistory struct {
	mu    sync.Mutex
	turns map[string][]*models.ConversationTurn
}

func newMemHistory() *memHistory {
	return &memHistory{turns: map[string][]*models.ConversationTurn{}}
}

func (h *memHistory) Append(ctx context.Context, turn *models.ConversationTurn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[turn.DeviceID] = append(h.turns[turn.DeviceID], turn)
	return nil
}

func (h *memHistory) Recent(ctx context.Context, deviceID string) ([]*models.ConversationTurn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*models.ConversationTurn(nil), h.turns[deviceID]...), nil
}

func (h *memHistory) Clear(ctx context.Context, deviceID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, deviceID)
	return nil
}

func (h *memHistory) count(deviceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns[deviceID])
}

// stubContext returns a fixed bundle and records the prioritized files
type stubContext struct {
	bundle      *models.ContextBundle
	calls       int
	prioritized []string
}

func (c *stubContext) Build(ctx context.Context, query string, maxTokens int, prioritizeFiles []string) *models.ContextBundle {
	c.calls++
	c.prioritized = prioritizeFiles
	if c.bundle != nil {
		return c.bundle
	}
	return &models.ContextBundle{}
}

// memCache is a map-backed CacheService
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemCache() *memCache { return &memCache{values: map[string][]byte{}} }

func (c *memCache) key(ns models.CacheNamespace, input string) string {
	return string(ns) + ":" + input
}

func (c *memCache) Get(ctx context.Context, ns models.CacheNamespace, input string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[c.key(ns, input)]
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return value, nil
}

func (c *memCache) Set(ctx context.Context, ns models.CacheNamespace, input string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[c.key(ns, input)] = value
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, ns models.CacheNamespace, input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, c.key(ns, input))
	return nil
}

// countingAnalyzer wraps a real analyzer and counts Analyze calls
type countingAnalyzer struct {
	inner interfaces.AnalysisService
	calls int
}

func (a *countingAnalyzer) Analyze(query string) *models.QueryAnalysis {
	a.calls++
	return a.inner.Analyze(query)
}
func (a *countingAnalyzer) DetectLanguage(query string) string { return a.inner.DetectLanguage(query) }
func (a *countingAnalyzer) ClassifyIntent(query string) *models.IntentResult {
	return a.inner.ClassifyIntent(query)
}
func (a *countingAnalyzer) ExtractEntities(query string) []models.Entity {
	return a.inner.ExtractEntities(query)
}

// stubStatus reports a fixed health state without probing
type stubStatus struct {
	healthy bool
}

func (s *stubStatus) GetState() interfaces.AppState { return interfaces.StateIdle }
func (s *stubStatus) SetState(state interfaces.AppState, metadata map[string]interface{}) {}
func (s *stubStatus) GetStatus() map[string]interface{} { return map[string]interface{}{} }
func (s *stubStatus) LLMHealth(ctx context.Context) *interfaces.HealthStatus {
	return &interfaces.HealthStatus{Healthy: s.healthy, CheckedAt: time.Now()}
}

// recordingNotifier signals when an escalation is delivered
type recordingNotifier struct {
	sent chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan string, 1)}
}

func (n *recordingNotifier) SendEscalation(ctx context.Context, deviceID, query, answer string) error {
	n.sent <- query
	return nil
}

// recordingIngest tracks refreshed file paths
type recordingIngest struct {
	mu    sync.Mutex
	paths []string
}

func (i *recordingIngest) ProcessDirectory(ctx context.Context, dir string, force bool) (*models.IngestResult, error) {
	return &models.IngestResult{}, nil
}

func (i *recordingIngest) ProcessFile(ctx context.Context, path string, force bool) (*models.FileResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.paths = append(i.paths, path)
	return &models.FileResult{FileName: path}, nil
}

type harness struct {
	service  *Service
	llm      *scriptedLLM
	history  *memHistory
	context  *stubContext
	cache    *memCache
	status   *stubStatus
	notifier *recordingNotifier
	ingest   *recordingIngest
	config   *common.Config
	sleeps   []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := arbor.NewLogger()

	h := &harness{
		llm:      &scriptedLLM{},
		history:  newMemHistory(),
		context:  &stubContext{},
		cache:    newMemCache(),
		status:   &stubStatus{healthy: true},
		notifier: newRecordingNotifier(),
		ingest:   &recordingIngest{},
		config:   common.NewDefaultConfig(),
	}

	h.service = NewService(
		h.llm,
		analysis.NewService(logger),
		h.history,
		h.context,
		h.cache,
		h.status,
		h.notifier,
		h.ingest,
		h.config,
		logger,
	)
	h.service.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func TestAsk_HappyPath(t *testing.T) {
	h := newHarness(t)
	h.llm.answers = []string{"You get 12 sick days per year."}
	h.context.bundle = &models.ContextBundle{
		Context: "[Leave Policy]\nEmployees get 12 sick days per year.",
		Sources: []models.SourceRef{{Title: "Leave Policy", SourceFile: "leave.md", Score: 0.9}},
	}

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.Equal(t, "You get 12 sick days per year.", result.Content)
	assert.Equal(t, analysis.IntentLeaveQuery, result.Intent)
	assert.False(t, result.Escalated)
	assert.False(t, result.Cached)
	assert.Empty(t, result.Error)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "leave.md", result.Sources[0].SourceFile)

	// The turn lands in the device history
	assert.Equal(t, 1, h.history.count("device-1"))
}

func TestAsk_PromptCarriesContextAndHistory(t *testing.T) {
	h := newHarness(t)
	h.llm.answers = []string{"first answer", "second answer"}
	h.context.bundle = &models.ContextBundle{Context: "[Leave Policy]\nTwelve sick days."}

	ctx := context.Background()
	_, err := h.service.Ask(ctx, "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	_, err = h.service.Ask(ctx, "device-1", "What about casual leave allowance?", nil)
	require.NoError(t, err)

	require.Len(t, h.llm.messages, 2)
	second := h.llm.messages[1]

	// system + prior user/assistant pair + current query
	require.Len(t, second, 4)
	assert.Equal(t, "system", second[0].Role)
	assert.Contains(t, second[0].Content, "Twelve sick days")
	assert.Contains(t, second[0].Content, escalationSentinel)
	assert.Equal(t, "How many sick days do I get?", second[1].Content)
	assert.Equal(t, "first answer", second[2].Content)
	assert.Equal(t, "What about casual leave allowance?", second[3].Content)
}

func TestAsk_CachedTurn(t *testing.T) {
	h := newHarness(t)
	h.llm.answers = []string{"You get 12 sick days per year."}

	ctx := context.Background()
	first, err := h.service.Ask(ctx, "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := h.service.Ask(ctx, "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Less(t, second.ResponseTime, 0.5)

	// Generation ran exactly once
	assert.Equal(t, 1, h.llm.calls)

	// Cached replays are still part of the conversation record
	assert.Equal(t, 2, h.history.count("device-1"))
}

func TestAsk_UnhealthyProviderShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.status.healthy = false

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.Equal(t, msgServiceUnavailable, result.Content)
	assert.Equal(t, errCodeServiceUnavailable, result.Error)
	assert.Equal(t, 0, h.llm.calls)
	assert.Equal(t, 0, h.context.calls)
}

func TestAsk_GreetingShortCircuits(t *testing.T) {
	h := newHarness(t)

	result, err := h.service.Ask(context.Background(), "device-1", "hello!", nil)
	require.NoError(t, err)

	assert.Equal(t, msgGreeting, result.Content)
	assert.Equal(t, analysis.IntentGreeting, result.Intent)
	assert.Equal(t, 0, h.llm.calls)
	assert.Equal(t, 0, h.context.calls)
}

func TestAsk_EscalationRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.config.Escalation.Enabled = true
	h.config.Escalation.Recipients = []string{"hr@example.com"}
	h.llm.answers = []string{"I understand your concern. " + escalationSentinel + " A specialist should review this."}

	result, err := h.service.Ask(context.Background(), "device-1", "I want to raise a harassment complaint", nil)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.NotContains(t, result.Content, escalationSentinel)
	assert.Contains(t, result.Content, "follow up with you directly")

	select {
	case query := <-h.notifier.sent:
		assert.Equal(t, "I want to raise a harassment complaint", query)
	case <-time.After(2 * time.Second):
		t.Fatal("escalation notification was never sent")
	}

	// Escalated answers are not cached
	_, err = h.cache.Get(context.Background(), models.CacheNamespaceResponse, "I want to raise a harassment complaint")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestAsk_EscalationDisabledStripsSentinelOnly(t *testing.T) {
	h := newHarness(t)
	h.llm.answers = []string{escalationSentinel + " Please contact HR about this."}

	result, err := h.service.Ask(context.Background(), "device-1", "I want to escalate this issue", nil)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, "Please contact HR about this.", result.Content)
	assert.NotContains(t, result.Content, "follow up with you directly")
}

func TestAsk_TransientErrorRetriesWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.llm.errs = []error{
		fmt.Errorf("connection reset by peer"),
		fmt.Errorf("request timed out"),
	}
	h.llm.answers = []string{"", "", "Recovered answer."}

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Recovered answer.", result.Content)
	assert.Empty(t, result.Error)
	assert.Equal(t, 3, h.llm.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, h.sleeps)
}

func TestAsk_AnalysisCachedAcrossRetries(t *testing.T) {
	h := newHarness(t)
	analyzer := &countingAnalyzer{inner: analysis.NewService(arbor.NewLogger())}
	h.service.analyzer = analyzer
	h.llm.errs = []error{fmt.Errorf("request timed out")}
	h.llm.answers = []string{"", "Recovered answer."}

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)
	require.Equal(t, "Recovered answer.", result.Content)
	require.Equal(t, 2, h.llm.calls)

	// The retry re-enters from analysis but reads the query-namespace entry
	// written on the first pass
	assert.Equal(t, 1, analyzer.calls)
	_, err = h.cache.Get(context.Background(), models.CacheNamespaceQuery, "How many sick days do I get?")
	assert.NoError(t, err)
}

func TestAsk_RetriesExhausted(t *testing.T) {
	h := newHarness(t)
	h.llm.errs = []error{
		fmt.Errorf("request timed out"),
		fmt.Errorf("request timed out"),
		fmt.Errorf("request timed out"),
	}

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.Equal(t, msgGenerationFailed, result.Content)
	assert.Equal(t, errCodeGeneration, result.Error)
	assert.Equal(t, 3, h.llm.calls)

	// Degraded turns are recorded but never cached
	assert.Equal(t, 1, h.history.count("device-1"))
	_, err = h.cache.Get(context.Background(), models.CacheNamespaceResponse, "How many sick days do I get?")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestAsk_AuthenticationErrorNotRetried(t *testing.T) {
	h := newHarness(t)
	h.llm.errs = []error{fmt.Errorf("401 unauthorized: invalid api key")}

	result, err := h.service.Ask(context.Background(), "device-1", "How many sick days do I get?", nil)
	require.NoError(t, err)

	assert.Equal(t, msgAuthentication, result.Content)
	assert.Equal(t, errCodeAuthentication, result.Error)
	assert.Equal(t, 1, h.llm.calls)
	assert.Empty(t, h.sleeps)
	assert.Equal(t, 1, h.history.count("device-1"))
}

func TestAsk_ContextTooLargeError(t *testing.T) {
	h := newHarness(t)
	h.llm.errs = []error{fmt.Errorf("request exceeds maximum context length")}

	result, err := h.service.Ask(context.Background(), "device-1", "Summarize every policy we have", nil)
	require.NoError(t, err)

	assert.Equal(t, msgContextTooLarge, result.Content)
	assert.Equal(t, errCodeContextTooLarge, result.Error)
	assert.Equal(t, 1, h.llm.calls)
}

func TestAsk_FileRefreshPrioritizesUploads(t *testing.T) {
	h := newHarness(t)
	h.llm.answers = []string{"Answer grounded in the upload."}

	opts := &interfaces.AskOptions{PrioritizeFiles: []string{"/uploads/new-policy.pdf"}}
	_, err := h.service.Ask(context.Background(), "device-1", "What does the new policy say?", opts)
	require.NoError(t, err)

	require.Len(t, h.ingest.paths, 1)
	assert.Equal(t, "/uploads/new-policy.pdf", h.ingest.paths[0])

	// Retrieval sees the base name, matching chunk source files
	assert.Equal(t, []string{"new-policy.pdf"}, h.context.prioritized)
}

func TestAsk_EmptyInputsRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Ask(context.Background(), "", "question", nil)
	assert.Error(t, err)

	_, err = h.service.Ask(context.Background(), "device-1", "   ", nil)
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		message   string
		transient bool
	}{
		{"connection refused", true},
		{"request timed out", true},
		{"rate limit exceeded", true},
		{"googleapi: Error 429: RESOURCE_EXHAUSTED", true},
		{"context deadline exceeded", true},
		{"401 unauthorized", false},
		{"invalid argument", false},
		{"something strange", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransient(fmt.Errorf("%s", tt.message)))
		})
	}
}

func TestClassifyTerminal(t *testing.T) {
	code, message := classifyTerminal(fmt.Errorf("403 permission denied"))
	assert.Equal(t, errCodeAuthentication, code)
	assert.Equal(t, msgAuthentication, message)

	code, message = classifyTerminal(fmt.Errorf("prompt exceeds token limit"))
	assert.Equal(t, errCodeContextTooLarge, code)
	assert.Equal(t, msgContextTooLarge, message)

	code, message = classifyTerminal(fmt.Errorf("400 invalid request body"))
	assert.Equal(t, errCodeInvalidRequest, code)
	assert.Equal(t, msgInvalidRequest, message)

	code, message = classifyTerminal(fmt.Errorf("wires crossed"))
	assert.Equal(t, errCodeGeneration, code)
	assert.Equal(t, msgGenerationFailed, message)

	assert.True(t, strings.HasPrefix(message, "Something went wrong"))
}
