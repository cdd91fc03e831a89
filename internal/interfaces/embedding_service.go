package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// EmbeddingService generates vector embeddings
type EmbeddingService interface {
	// Generate embeddings for chunk contents, batched by mean text length
	EmbedChunks(ctx context.Context, chunks []*models.Chunk) ([][]float32, error)

	// Generate embeddings for raw texts
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Generate query embedding; degrades to a zero vector on dimension mismatch
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
