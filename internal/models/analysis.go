package models

// Entity is a span of interest extracted from a user query
type Entity struct {
	Type  string `json:"type"` // date, day_count, policy, email
	Value string `json:"value"`
}

// IntentResult holds the classified intent of a query with its confidence
type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// QueryAnalysis aggregates the per-turn analysis sub-steps.
// Any sub-step failure is substituted with the safe defaults here.
type QueryAnalysis struct {
	Language string   `json:"language"`
	Intent   string   `json:"intent"`
	IntentConfidence float64 `json:"intent_confidence"`
	Entities []Entity `json:"entities"`
}
