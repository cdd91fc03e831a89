// Package analysis performs lightweight query analysis: language detection,
// intent classification, and entity extraction. Every sub-step absorbs its
// own failures and falls back to safe defaults so analysis never aborts a
// conversation turn.
package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Intent labels
const (
	IntentGreeting          = "greeting"
	IntentLeaveQuery        = "leave_query"
	IntentPolicyQuery       = "policy_query"
	IntentComplaint         = "complaint"
	IntentEscalationRequest = "escalation_request"
	IntentUnknown           = "unknown"
)

// ConfidenceThreshold is the minimum confidence at which an intent label
// is considered reliable by downstream consumers.
const ConfidenceThreshold = 0.6

// intentRule scores a query against one intent
type intentRule struct {
	intent     string
	pattern    *regexp.Regexp
	confidence float64
}

var intentRules = []intentRule{
	{IntentEscalationRequest, regexp.MustCompile(`(?i)\b(speak|talk|connect)\s+(to|with)\s+(a\s+)?(human|person|hr|manager|someone)\b|\bescalate\b`), 0.9},
	{IntentComplaint, regexp.MustCompile(`(?i)\b(complain|complaint|harass|harassment|unfair|grievance|discriminat)\w*\b`), 0.85},
	{IntentLeaveQuery, regexp.MustCompile(`(?i)\b(leave|leaves|vacation|holiday|holidays|sick day|sick days|pto|time off|maternity|paternity)\b`), 0.8},
	{IntentPolicyQuery, regexp.MustCompile(`(?i)\b(policy|policies|rule|rules|allowance|entitle\w*|benefit\w*|overtime|reimburse\w*|dress code|working hours|notice period)\b`), 0.75},
	{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hi|hii+|hello|hey|good\s+(morning|afternoon|evening)|namaste|greetings)[\s!.,]*$`), 0.95},
}

var (
	dayCountPattern   = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(days?|weeks?|months?)\b`)
	datePattern       = regexp.MustCompile(`(?i)\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2})\b`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	policyNamePattern = regexp.MustCompile(`(?i)\b(leave|attendance|travel|expense|remote work|work from home|overtime|maternity|paternity|probation|notice)\s+policy\b`)
)

// Latin-script stopwords used to separate English from romanized Hindi
var englishStopwords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "what": true,
	"how": true, "can": true, "do": true, "does": true, "my": true,
	"i": true, "a": true, "an": true, "of": true, "to": true,
	"for": true, "in": true, "on": true, "and": true, "have": true,
}

var hinglishMarkers = map[string]bool{
	"hai": true, "kya": true, "kaise": true, "mera": true, "meri": true,
	"mujhe": true, "nahi": true, "haan": true, "chahiye": true, "kitne": true,
	"kitni": true, "milega": true, "milti": true, "karna": true, "hoga": true,
}

// Service implements the AnalysisService interface
type Service struct {
	logger arbor.ILogger
}

// NewService creates an analysis service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Analyze runs language detection, intent classification, and entity
// extraction for a query
func (s *Service) Analyze(query string) *models.QueryAnalysis {
	intent := s.ClassifyIntent(query)
	analysis := &models.QueryAnalysis{
		Language:         s.DetectLanguage(query),
		Intent:           intent.Intent,
		IntentConfidence: intent.Confidence,
		Entities:         s.ExtractEntities(query),
	}

	s.logger.Debug().
		Str("language", analysis.Language).
		Str("intent", analysis.Intent).
		Float64("confidence", analysis.IntentConfidence).
		Int("entities", len(analysis.Entities)).
		Msg("Query analyzed")

	return analysis
}

// DetectLanguage returns an ISO 639-1 language code. Devanagari script maps
// to "hi"; Latin text is split between "en" and "hi-Latn" by stopword
// ratio. Anything inconclusive defaults to "en".
func (s *Service) DetectLanguage(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "en"
	}

	devanagari := 0
	letters := 0
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Devanagari, r) {
				devanagari++
			}
		}
	}
	if letters == 0 {
		return "en"
	}
	if float64(devanagari)/float64(letters) > 0.3 {
		return "hi"
	}

	words := strings.Fields(strings.ToLower(trimmed))
	english := 0
	hinglish := 0
	for _, word := range words {
		word = strings.Trim(word, ".,!?")
		if englishStopwords[word] {
			english++
		}
		if hinglishMarkers[word] {
			hinglish++
		}
	}
	if hinglish > english {
		return "hi-Latn"
	}
	return "en"
}

// ClassifyIntent returns the query intent with a confidence score. The
// first matching rule wins; no match yields unknown with zero confidence.
func (s *Service) ClassifyIntent(query string) *models.IntentResult {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(query) {
			return &models.IntentResult{
				Intent:     rule.intent,
				Confidence: rule.confidence,
			}
		}
	}
	return &models.IntentResult{
		Intent:     IntentUnknown,
		Confidence: 0.0,
	}
}

// ExtractEntities returns spans of interest found in the query
func (s *Service) ExtractEntities(query string) []models.Entity {
	var entities []models.Entity

	for _, match := range policyNamePattern.FindAllString(query, -1) {
		entities = append(entities, models.Entity{Type: "policy", Value: match})
	}
	for _, match := range datePattern.FindAllString(query, -1) {
		entities = append(entities, models.Entity{Type: "date", Value: match})
	}
	for _, match := range dayCountPattern.FindAllString(query, -1) {
		entities = append(entities, models.Entity{Type: "duration", Value: match})
	}
	for _, match := range emailPattern.FindAllString(query, -1) {
		entities = append(entities, models.Entity{Type: "email", Value: match})
	}

	return entities
}

// Ensure Service implements the interface
var _ interfaces.AnalysisService = (*Service)(nil)
