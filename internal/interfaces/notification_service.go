package interfaces

import (
	"context"
)

// NotificationService delivers escalation notices to human operators.
// Sends are fire-and-report: failures are logged, never propagated to the
// conversational turn.
type NotificationService interface {
	// SendEscalation notifies the configured recipients about a query that
	// requested human follow-up
	SendEscalation(ctx context.Context, deviceID string, query string, answer string) error
}
