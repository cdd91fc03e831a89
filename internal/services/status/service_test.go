package status

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// probeLLM counts health checks and can fail on demand
type probeLLM struct {
	probes int
	err    error
}

func (p *probeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (p *probeLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (p *probeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", nil
}
func (p *probeLLM) HealthCheck(ctx context.Context) error {
	p.probes++
	return p.err
}
func (p *probeLLM) GetMode() interfaces.LLMMode { return interfaces.LLMModeCloud }
func (p *probeLLM) Close() error                { return nil }

func TestStateTransitions(t *testing.T) {
	service := NewService(&probeLLM{}, 300, arbor.NewLogger())

	assert.Equal(t, interfaces.StateIdle, service.GetState())

	service.SetState(interfaces.StateIngesting, map[string]interface{}{"files": 3})
	assert.Equal(t, interfaces.StateIngesting, service.GetState())

	status := service.GetStatus()
	assert.Equal(t, "ingesting", status["state"])
	assert.Equal(t, 3, status["files"])
}

func TestLLMHealth_CachesResult(t *testing.T) {
	llm := &probeLLM{}
	service := NewService(llm, 300, arbor.NewLogger())
	ctx := context.Background()

	first := service.LLMHealth(ctx)
	require.True(t, first.Healthy)
	assert.Equal(t, 1, llm.probes)

	// Fresh cache short-circuits the probe
	second := service.LLMHealth(ctx)
	assert.Equal(t, 1, llm.probes)
	assert.Equal(t, first.CheckedAt, second.CheckedAt)
}

func TestLLMHealth_RefreshesAfterTTL(t *testing.T) {
	llm := &probeLLM{}
	service := NewService(llm, 300, arbor.NewLogger())
	ctx := context.Background()

	service.LLMHealth(ctx)

	// Age the cached result past the TTL
	service.healthMu.Lock()
	service.health.CheckedAt = time.Now().Add(-10 * time.Minute)
	service.healthMu.Unlock()

	service.LLMHealth(ctx)
	assert.Equal(t, 2, llm.probes)
}

func TestLLMHealth_UnhealthyDetail(t *testing.T) {
	llm := &probeLLM{err: fmt.Errorf("provider timeout")}
	service := NewService(llm, 300, arbor.NewLogger())

	result := service.LLMHealth(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Detail, "provider timeout")

	status := service.GetStatus()
	assert.Equal(t, false, status["llm_healthy"])
}
