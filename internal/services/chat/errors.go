package chat

import (
	"strings"
)

// Error codes recorded on degraded turn results
const (
	errCodeServiceUnavailable = "service_unavailable"
	errCodeAuthentication     = "authentication_error"
	errCodeContextTooLarge    = "context_too_large"
	errCodeInvalidRequest     = "invalid_request"
	errCodeGeneration         = "generation_error"
)

// User-facing messages. Internal error detail is logged, never shown.
const (
	msgServiceUnavailable = "I'm temporarily unavailable while our answer service recovers. Please try again in a few minutes."
	msgAuthentication     = "I can't reach the answer service right now due to a configuration problem. Please let your administrator know."
	msgContextTooLarge    = "That question pulled in more reference material than I can read at once. Could you ask something more specific?"
	msgInvalidRequest     = "I couldn't process that question. Could you rephrase it?"
	msgGenerationFailed   = "Something went wrong while preparing your answer. Please try again shortly."
	msgGreeting           = "Hello! I'm your HR assistant. Ask me about leave, policies, benefits, or anything else from the employee handbook."
)

var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection",
	"rate limit",
	"rate_limit",
	"resource_exhausted",
	"429",
	"overloaded",
	"temporarily unavailable",
	"503",
}

var authenticationMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"authentication",
	"api key",
	"permission denied",
}

var contextTooLargeMarkers = []string{
	"context length",
	"context_length",
	"too many tokens",
	"token limit",
	"maximum context",
	"request too large",
}

var invalidRequestMarkers = []string{
	"400",
	"invalid request",
	"invalid_request",
	"invalid argument",
	"invalid_argument",
	"malformed",
}

func matchesAny(message string, markers []string) bool {
	lower := strings.ToLower(message)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isTransient reports whether a generation error looks retryable.
// Classification is by message substring because provider SDKs surface
// transport and quota failures as opaque wrapped errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err.Error(), transientMarkers)
}

// classifyTerminal maps a non-retryable generation error to an error code
// and a sanitized user-facing message
func classifyTerminal(err error) (code string, message string) {
	if err == nil {
		return "", ""
	}
	text := err.Error()
	switch {
	case matchesAny(text, authenticationMarkers):
		return errCodeAuthentication, msgAuthentication
	case matchesAny(text, contextTooLargeMarkers):
		return errCodeContextTooLarge, msgContextTooLarge
	case matchesAny(text, invalidRequestMarkers):
		return errCodeInvalidRequest, msgInvalidRequest
	default:
		return errCodeGeneration, msgGenerationFailed
	}
}
