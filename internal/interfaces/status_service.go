package interfaces

import (
	"context"
	"time"
)

// AppState represents the application state
type AppState string

const (
	StateIdle      AppState = "idle"
	StateIngesting AppState = "ingesting"
	StateDegraded  AppState = "degraded"
)

// HealthStatus is a cached LLM health probe result
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// StatusService tracks application state and caches LLM health probes
type StatusService interface {
	GetState() AppState
	SetState(state AppState, metadata map[string]interface{})
	GetStatus() map[string]interface{}

	// LLMHealth returns the cached health probe result, refreshing it when
	// the cached value is older than the configured TTL
	LLMHealth(ctx context.Context) *HealthStatus
}
