package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements the HistoryStorage interface for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ID == "" {
		return fmt.Errorf("turn ID is required")
	}
	if turn.DeviceID == "" {
		return fmt.Errorf("turn device ID is required")
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	if err := s.db.Store().Insert(turn.ID, turn); err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for a device, oldest first
func (s *HistoryStorage) RecentTurns(ctx context.Context, deviceID string, limit int) ([]*models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := s.db.Store().Find(&turns,
		badgerhold.Where("DeviceID").Eq(deviceID).Index("DeviceID").SortBy("Timestamp").Reverse().Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation turns: %w", err)
	}

	// Reverse to chronological order for prompt construction
	result := make([]*models.ConversationTurn, len(turns))
	for i := range turns {
		result[len(turns)-1-i] = &turns[i]
	}
	return result, nil
}

func (s *HistoryStorage) DeleteTurns(ctx context.Context, deviceID string) error {
	err := s.db.Store().DeleteMatching(&models.ConversationTurn{},
		badgerhold.Where("DeviceID").Eq(deviceID).Index("DeviceID"))
	if err != nil {
		return fmt.Errorf("failed to delete conversation turns: %w", err)
	}
	return nil
}

// Ensure HistoryStorage implements the interface
var _ interfaces.HistoryStorage = (*HistoryStorage)(nil)
