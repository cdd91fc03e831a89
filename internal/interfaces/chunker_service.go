package interfaces

import (
	"github.com/ternarybob/respondeo/internal/models"
)

// ChunkerService splits extracted document text into bounded chunks
type ChunkerService interface {
	// Chunk splits text into overlap-prefixed chunks for one source file
	Chunk(title, text, sourceFile string) []*models.Chunk

	// Parameters returns the configured chunk size and overlap
	Parameters() (chunkSize, chunkOverlap int)
}
