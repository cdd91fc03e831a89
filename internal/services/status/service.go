// Package status tracks coarse application state and caches LLM health
// probe results so turn handling does not probe the provider on every
// request.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Service implements the StatusService interface
type Service struct {
	llm       interfaces.LLMService
	healthTTL time.Duration
	logger    arbor.ILogger

	mu       sync.RWMutex
	state    interfaces.AppState
	metadata map[string]interface{}
	changed  time.Time

	healthMu sync.Mutex
	health   *interfaces.HealthStatus
}

// NewService creates a status service. healthTTLSeconds bounds how long a
// probe result stays fresh.
func NewService(llm interfaces.LLMService, healthTTLSeconds int, logger arbor.ILogger) *Service {
	if healthTTLSeconds <= 0 {
		healthTTLSeconds = 300
	}
	return &Service{
		llm:       llm,
		healthTTL: time.Duration(healthTTLSeconds) * time.Second,
		logger:    logger,
		state:     interfaces.StateIdle,
		changed:   time.Now(),
	}
}

// GetState returns the current application state
func (s *Service) GetState() interfaces.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the application state with optional metadata
func (s *Service) SetState(state interfaces.AppState, metadata map[string]interface{}) {
	s.mu.Lock()
	previous := s.state
	s.state = state
	s.metadata = metadata
	s.changed = time.Now()
	s.mu.Unlock()

	if previous != state {
		s.logger.Info().
			Str("from", string(previous)).
			Str("to", string(state)).
			Msg("Application state changed")
	}
}

// GetStatus returns a snapshot of state, metadata, and the last health result
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	status := map[string]interface{}{
		"state":         string(s.state),
		"state_changed": s.changed,
	}
	for key, value := range s.metadata {
		status[key] = value
	}
	s.mu.RUnlock()

	s.healthMu.Lock()
	if s.health != nil {
		status["llm_healthy"] = s.health.Healthy
		status["llm_checked_at"] = s.health.CheckedAt
	}
	s.healthMu.Unlock()

	return status
}

// LLMHealth returns the cached health probe result, refreshing it when the
// cached value is older than the TTL
func (s *Service) LLMHealth(ctx context.Context) *interfaces.HealthStatus {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if s.health != nil && time.Since(s.health.CheckedAt) < s.healthTTL {
		return s.health
	}

	result := &interfaces.HealthStatus{
		Healthy:   true,
		CheckedAt: time.Now(),
	}
	if err := s.llm.HealthCheck(ctx); err != nil {
		result.Healthy = false
		result.Detail = err.Error()
		s.logger.Warn().Err(err).Msg("LLM health probe failed")
	}

	s.health = result
	return result
}

// Ensure Service implements the interface
var _ interfaces.StatusService = (*Service)(nil)
