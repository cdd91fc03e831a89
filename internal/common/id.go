package common

import (
	"github.com/google/uuid"
)

// NewChunkID generates a unique chunk ID with the "chunk_" prefix
// Format: chunk_<uuid>
func NewChunkID() string {
	return "chunk_" + uuid.New().String()
}

// NewTurnID generates a unique conversation turn ID with the "turn_" prefix
func NewTurnID() string {
	return "turn_" + uuid.New().String()
}
