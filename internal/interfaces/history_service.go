package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// HistoryService maintains the bounded per-device conversation window.
// Reads and writes for one device are serialized to avoid lost updates.
type HistoryService interface {
	// Append records a completed turn and trims the device window
	Append(ctx context.Context, turn *models.ConversationTurn) error

	// Recent returns up to the configured window of turns, oldest first
	Recent(ctx context.Context, deviceID string) ([]*models.ConversationTurn, error)

	// Clear removes all turns for a device
	Clear(ctx context.Context, deviceID string) error
}
