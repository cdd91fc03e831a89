package models

import (
	"time"
)

// FileResult records the outcome of ingesting one source file
type FileResult struct {
	FileName   string        `json:"file_name"`
	Chunks     int           `json:"chunks"`
	Embeddings int           `json:"embeddings"`
	Skipped    bool          `json:"skipped"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IngestResult aggregates the outcome of a directory ingestion run
type IngestResult struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
	Duration  time.Duration `json:"duration"`
}
