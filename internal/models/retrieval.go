package models

// RetrievalResult is one scored chunk produced per query. Ephemeral, never persisted.
type RetrievalResult struct {
	Chunk       Chunk   `json:"chunk"`
	Score       float64 `json:"score"`
	Prioritized bool    `json:"prioritized"`
}

// SourceRef identifies a source document contributing to an answer
type SourceRef struct {
	Title      string  `json:"title"`
	SourceFile string  `json:"source_file"`
	Score      float64 `json:"score"`
}

// ContextBundle is the bounded evidence string plus deduplicated sources
// for one conversational turn.
type ContextBundle struct {
	Context string      `json:"context"`
	Sources []SourceRef `json:"sources"`
}
