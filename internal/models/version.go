package models

import (
	"time"
)

// VersionRecord tracks the content hash of a source file.
// One record exists per file name; it is used only to decide re-ingestion,
// never to reconstruct content.
type VersionRecord struct {
	FileName     string            `json:"file_name" badgerhold:"key"`
	ContentHash  string            `json:"content_hash"`
	LastModified time.Time         `json:"last_modified"`
	Size         int64             `json:"size"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// VersionHistoryEntry records one observed version of a file
type VersionHistoryEntry struct {
	ID          uint64    `json:"id" badgerhold:"key"`
	FileName    string    `json:"file_name" badgerhold:"index"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ProcessedMarker is the durable record proving a source file has been
// ingested at a given modification time, with the chunking parameters used.
type ProcessedMarker struct {
	FileName       string    `json:"file_name" badgerhold:"key"`
	ChunkCount     int       `json:"chunk_count"`
	EmbeddingCount int       `json:"embedding_count"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	SourceModTime  time.Time `json:"source_mod_time"`
	ProcessedAt    time.Time `json:"processed_at"`
}
