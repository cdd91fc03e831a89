package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// RetrieverService embeds a query and searches the vector index with
// adaptive threshold filtering and source prioritization
type RetrieverService interface {
	// Search returns up to topK results above the adaptive similarity
	// threshold. Results whose source file appears in prioritizeFiles get a
	// score boost and float to the top without excluding other evidence.
	Search(ctx context.Context, query string, topK int, prioritizeFiles []string) ([]models.RetrievalResult, error)
}
