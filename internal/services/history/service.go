// Package history maintains the bounded per-device conversation window. A
// small in-memory window fronts the durable badger-backed store; reads and
// writes for one device are serialized so concurrent turns cannot lose
// updates.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service implements the HistoryService interface
type Service struct {
	storage interfaces.HistoryStorage
	window  int
	logger  arbor.ILogger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	windows map[string][]*models.ConversationTurn
}

// NewService creates a history service with the configured window size
func NewService(storage interfaces.HistoryStorage, window int, logger arbor.ILogger) *Service {
	if window <= 0 {
		window = 5
	}
	return &Service{
		storage: storage,
		window:  window,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		windows: make(map[string][]*models.ConversationTurn),
	}
}

// Append records a completed turn and trims the device window
func (s *Service) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.DeviceID == "" {
		return fmt.Errorf("turn device id cannot be empty")
	}

	lock := s.deviceLock(turn.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to persist turn for device %s: %w", turn.DeviceID, err)
	}

	s.mu.Lock()
	window := append(s.windows[turn.DeviceID], turn)
	if len(window) > s.window {
		window = window[len(window)-s.window:]
	}
	s.windows[turn.DeviceID] = window
	s.mu.Unlock()

	s.logger.Debug().
		Str("device_id", turn.DeviceID).
		Int("window", len(window)).
		Msg("Conversation turn recorded")

	return nil
}

// Recent returns up to the configured window of turns, oldest first. A cold
// in-memory window is warmed from the durable store.
func (s *Service) Recent(ctx context.Context, deviceID string) ([]*models.ConversationTurn, error) {
	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	window, warm := s.windows[deviceID]
	s.mu.Unlock()

	if !warm {
		stored, err := s.storage.RecentTurns(ctx, deviceID, s.window)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for device %s: %w", deviceID, err)
		}
		window = stored

		s.mu.Lock()
		s.windows[deviceID] = window
		s.mu.Unlock()
	}

	out := make([]*models.ConversationTurn, len(window))
	copy(out, window)
	return out, nil
}

// Clear removes all turns for a device
func (s *Service) Clear(ctx context.Context, deviceID string) error {
	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.DeleteTurns(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to clear history for device %s: %w", deviceID, err)
	}

	s.mu.Lock()
	delete(s.windows, deviceID)
	s.mu.Unlock()

	s.logger.Debug().
		Str("device_id", deviceID).
		Msg("Conversation history cleared")

	return nil
}

// deviceLock returns the mutex serializing operations for one device
func (s *Service) deviceLock(deviceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[deviceID] = lock
	}
	return lock
}

// Ensure Service implements the interface
var _ interfaces.HistoryService = (*Service)(nil)
