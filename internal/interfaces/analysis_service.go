package interfaces

import (
	"github.com/ternarybob/respondeo/internal/models"
)

// AnalysisService performs lightweight query analysis.
// Each sub-step absorbs its own failures and returns safe defaults
// ("en", intent "unknown" with zero confidence, no entities).
type AnalysisService interface {
	// Analyze runs language detection, intent classification, and entity
	// extraction for a query
	Analyze(query string) *models.QueryAnalysis

	// DetectLanguage returns an ISO 639-1 language code ("en" on failure)
	DetectLanguage(query string) string

	// ClassifyIntent returns the query intent with a confidence score
	ClassifyIntent(query string) *models.IntentResult

	// ExtractEntities returns spans of interest found in the query
	ExtractEntities(query string) []models.Entity
}
