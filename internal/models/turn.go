package models

import (
	"time"
)

// ConversationTurn is one completed question/answer exchange for a device.
// Append-only; a bounded window of recent turns is retained per device.
type ConversationTurn struct {
	ID                string      `json:"id" badgerhold:"key"` // turn_{uuid}
	DeviceID          string      `json:"device_id" badgerhold:"index"`
	UserQuery         string      `json:"user_query"`
	AssistantResponse string      `json:"assistant_response"`
	Language          string      `json:"language"`
	Sources           []SourceRef `json:"sources,omitempty"`
	Intent            string      `json:"intent"`
	IntentConfidence  float64     `json:"intent_confidence"`
	Entities          []Entity    `json:"entities,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
	ResponseTime      float64     `json:"response_time"` // Seconds
}

// TurnResult is the record returned to the application layer for one turn
type TurnResult struct {
	Content          string      `json:"content"`
	Language         string      `json:"language"`
	Sources          []SourceRef `json:"sources,omitempty"`
	ResponseTime     float64     `json:"response_time"`
	Escalated        bool        `json:"escalated"`
	Intent           string      `json:"intent"`
	IntentConfidence float64     `json:"intent_confidence"`
	Entities         []Entity    `json:"entities,omitempty"`
	Cached           bool        `json:"cached"`
	Error            string      `json:"error,omitempty"`
}
