package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// AskOptions carries optional per-turn parameters
type AskOptions struct {
	// PrioritizeFiles boosts retrieval scores for these source files
	// (typically documents the user just uploaded)
	PrioritizeFiles []string
}

// ChatService orchestrates a conversational turn: cache lookup, health
// check, query analysis, context assembly, generation with retry, and
// escalation detection. Every turn produces some response; there is no
// path that discards a turn silently.
type ChatService interface {
	// Ask runs one full turn for the given device and query
	Ask(ctx context.Context, deviceID string, query string, opts *AskOptions) (*models.TurnResult, error)

	// HealthCheck verifies the generation provider is reachable
	HealthCheck(ctx context.Context) error
}
