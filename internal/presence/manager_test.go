package presence

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collab-messenger/relay/internal/common/errors"
)

type fakeStatusStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID][]string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: make(map[uuid.UUID][]string)}
}

func (f *fakeStatusStore) UpdateStatus(_ context.Context, userID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = append(f.statuses[userID], status)
	return nil
}

func (f *fakeStatusStore) last(userID uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.statuses[userID]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

func newTestManager(t *testing.T, store StatusStore) *Manager {
	t.Helper()
	m := NewManager(store, nil, nil, nil, Config{
		CheckInterval:    time.Hour,
		AwayThreshold:    5 * time.Minute,
		OfflineThreshold: 10 * time.Minute,
	})
	t.Cleanup(m.Stop)
	return m
}

func TestHeartbeatPromotesToOnline(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)
	userID := uuid.New()

	assert.Equal(t, StatusOffline, m.GetStatus(userID))

	require.NoError(t, m.Heartbeat(context.Background(), userID))
	assert.Equal(t, StatusOnline, m.GetStatus(userID))
	assert.Equal(t, StatusOnline, store.last(userID))
}

func TestIdleUserDemotedToAwayThenOffline(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)
	userID := uuid.New()

	base := time.Now()
	m.now = func() time.Time { return base }
	require.NoError(t, m.Heartbeat(context.Background(), userID))

	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	m.CheckPresence()
	assert.Equal(t, StatusAway, m.GetStatus(userID))
	assert.Equal(t, StatusAway, store.last(userID))

	m.now = func() time.Time { return base.Add(11 * time.Minute) }
	m.CheckPresence()
	assert.Equal(t, StatusOffline, m.GetStatus(userID))
	assert.Equal(t, StatusOffline, store.last(userID))

	// A later sweep sees no activity entry and leaves the user alone.
	m.now = func() time.Time { return base.Add(time.Hour) }
	m.CheckPresence()
	assert.Equal(t, StatusOffline, m.GetStatus(userID))
}

func TestBusySurvivesHeartbeatAndIdle(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)
	userID := uuid.New()

	base := time.Now()
	m.now = func() time.Time { return base }
	require.NoError(t, m.SetPresence(context.Background(), userID, StatusBusy))
	assert.Equal(t, StatusBusy, m.GetStatus(userID))

	require.NoError(t, m.Heartbeat(context.Background(), userID))
	assert.Equal(t, StatusBusy, m.GetStatus(userID))

	// Past the away threshold the explicit busy choice still wins.
	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	m.CheckPresence()
	assert.Equal(t, StatusBusy, m.GetStatus(userID))

	// The offline timeout clears it.
	m.now = func() time.Time { return base.Add(11 * time.Minute) }
	m.CheckPresence()
	assert.Equal(t, StatusOffline, m.GetStatus(userID))

	require.NoError(t, m.Heartbeat(context.Background(), userID))
	assert.Equal(t, StatusOnline, m.GetStatus(userID))
}

func TestSetPresenceOfflineHidesUntilNextHeartbeat(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)
	userID := uuid.New()

	require.NoError(t, m.Heartbeat(context.Background(), userID))
	require.NoError(t, m.SetOffline(context.Background(), userID))
	assert.Equal(t, StatusOffline, m.GetStatus(userID))

	m.CheckPresence()
	assert.Equal(t, StatusOffline, m.GetStatus(userID))

	require.NoError(t, m.Heartbeat(context.Background(), userID))
	assert.Equal(t, StatusOnline, m.GetStatus(userID))
}

func TestSetPresenceRejectsUnknownStatus(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)

	err := m.SetPresence(context.Background(), uuid.New(), "invisible")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestSetPresenceUnchangedStatusDoesNotRewrite(t *testing.T) {
	store := newFakeStatusStore()
	m := newTestManager(t, store)
	userID := uuid.New()

	require.NoError(t, m.SetPresence(context.Background(), userID, StatusAway))
	require.NoError(t, m.SetPresence(context.Background(), userID, StatusAway))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.statuses[userID], 1)
}
