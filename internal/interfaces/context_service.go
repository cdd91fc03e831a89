package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// ContextService assembles a token-bounded evidence string for a query
type ContextService interface {
	// Build retrieves relevant chunks and packs them into a context string
	// within maxTokens. Persistent retrieval failure yields an empty bundle,
	// never an error that would abort the turn.
	Build(ctx context.Context, query string, maxTokens int, prioritizeFiles []string) *models.ContextBundle
}
