package interfaces

import (
	"errors"
)

// Sentinel errors shared across services
var (
	// ErrIndexUnavailable is returned when the vector index cannot serve a request
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch is returned when a vector does not match the configured dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrServiceUnavailable is returned when the LLM service fails its health check
	ErrServiceUnavailable = errors.New("llm service unavailable")

	// ErrCacheMiss is returned when a cache lookup finds no fresh entry
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotProcessed is returned when no processed marker exists for a file
	ErrNotProcessed = errors.New("file not processed")
)
