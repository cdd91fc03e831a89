package models

import (
	"time"
)

// Chunk represents a bounded-size segment of a source document.
// Chunks are immutable once created; a content change in the source file
// produces new chunks that supersede the old ones.
type Chunk struct {
	ID         string    `json:"id" badgerhold:"key"` // chunk_{uuid}
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	SourceFile string    `json:"source_file" badgerhold:"index"`
	ChunkIndex int       `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkStats represents statistics about stored chunks
type ChunkStats struct {
	TotalChunks    int            `json:"total_chunks"`
	ChunksBySource map[string]int `json:"chunks_by_source"`
	LastUpdated    time.Time      `json:"last_updated"`
}
