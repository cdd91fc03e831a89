package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/models"
)

// memHistoryStorage is an in-memory HistoryStorage for tests
type memHistoryStorage struct {
	mu    sync.Mutex
	turns map[string][]*models.ConversationTurn
}

func newMemHistoryStorage() *memHistoryStorage {
	return &memHistoryStorage{turns: make(map[string][]*models.ConversationTurn)}
}

func (m *memHistoryStorage) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[turn.DeviceID] = append(m.turns[turn.DeviceID], turn)
	return nil
}

func (m *memHistoryStorage) RecentTurns(ctx context.Context, deviceID string, limit int) ([]*models.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[deviceID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *memHistoryStorage) DeleteTurns(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, deviceID)
	return nil
}

func makeTurn(deviceID, query string) *models.ConversationTurn {
	return &models.ConversationTurn{
		ID:            fmt.Sprintf("turn_%s_%s", deviceID, query),
		DeviceID:      deviceID,
		UserQuery:     query,
		AssistantResponse: "answer to " + query,
		Timestamp:     time.Now(),
	}
}

func TestAppendAndRecent(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 5, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, service.Append(ctx, makeTurn("device-1", "q1")))
	require.NoError(t, service.Append(ctx, makeTurn("device-1", "q2")))

	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	// Oldest first
	assert.Equal(t, "q1", turns[0].UserQuery)
	assert.Equal(t, "q2", turns[1].UserQuery)
}

func TestWindowIsBounded(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 3, arbor.NewLogger())
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		require.NoError(t, service.Append(ctx, makeTurn("device-1", fmt.Sprintf("q%d", i))))
	}

	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "q4", turns[0].UserQuery)
	assert.Equal(t, "q6", turns[2].UserQuery)
}

func TestDevicesAreIsolated(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 5, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, service.Append(ctx, makeTurn("device-1", "q1")))
	require.NoError(t, service.Append(ctx, makeTurn("device-2", "other")))

	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "q1", turns[0].UserQuery)
}

func TestRecent_WarmsFromStorage(t *testing.T) {
	storage := newMemHistoryStorage()
	ctx := context.Background()

	// Turns persisted by a previous process
	require.NoError(t, storage.AppendTurn(ctx, makeTurn("device-1", "old1")))
	require.NoError(t, storage.AppendTurn(ctx, makeTurn("device-1", "old2")))

	service := NewService(storage, 5, arbor.NewLogger())
	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "old1", turns[0].UserQuery)
}

func TestClear(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 5, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, service.Append(ctx, makeTurn("device-1", "q1")))
	require.NoError(t, service.Clear(ctx, "device-1"))

	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAppend_ConcurrentSameDevice(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 50, arbor.NewLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = service.Append(ctx, makeTurn("device-1", fmt.Sprintf("q%d", i)))
		}(i)
	}
	wg.Wait()

	turns, err := service.Recent(ctx, "device-1")
	require.NoError(t, err)
	assert.Len(t, turns, 20)
}

func TestAppend_EmptyDeviceID(t *testing.T) {
	service := NewService(newMemHistoryStorage(), 5, arbor.NewLogger())
	err := service.Append(context.Background(), &models.ConversationTurn{ID: "turn_x"})
	assert.Error(t, err)
}
