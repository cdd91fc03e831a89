package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// IngestService composes extraction, chunking, embedding, and indexing over
// a directory or single file. Per-file failures are isolated; one file's
// error never aborts processing of sibling files.
type IngestService interface {
	// ProcessDirectory ingests every supported file under dir with a bounded
	// worker pool. Unmodified files with a valid processed marker are skipped
	// unless forceReprocess is set.
	ProcessDirectory(ctx context.Context, dir string, forceReprocess bool) (*models.IngestResult, error)

	// ProcessFile ingests a single file
	ProcessFile(ctx context.Context, path string, forceReprocess bool) (*models.FileResult, error)
}
