package presence

import (
	"context"
	"sync"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/google/uuid"
)

const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

// StatusStore persists the last known status so it survives restarts.
type StatusStore interface {
	UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error
}

// FriendLister and ConversationLister tell the manager who cares about a
// user's presence.
type FriendLister interface {
	FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type ConversationLister interface {
	ListConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type Config struct {
	CheckInterval    time.Duration
	AwayThreshold    time.Duration
	OfflineThreshold time.Duration
}

// Manager tracks per-user activity in memory and demotes idle users to
// away and then offline. Busy is explicit and only clears on another
// explicit change or the offline timeout.
type Manager struct {
	mu           sync.RWMutex
	lastActivity map[uuid.UUID]time.Time
	currentState map[uuid.UUID]string
	explicitBusy map[uuid.UUID]bool

	store   StatusStore
	friends FriendLister
	convs   ConversationLister
	hub     *events.Hub
	cfg     Config

	now    func() time.Time
	stopCh chan struct{}
}

func NewManager(store StatusStore, friends FriendLister, convs ConversationLister, hub *events.Hub, cfg Config) *Manager {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.AwayThreshold <= 0 {
		cfg.AwayThreshold = 5 * time.Minute
	}
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = 10 * time.Minute
	}

	m := &Manager{
		lastActivity: make(map[uuid.UUID]time.Time),
		currentState: make(map[uuid.UUID]string),
		explicitBusy: make(map[uuid.UUID]bool),
		store:        store,
		friends:      friends,
		convs:        convs,
		hub:          hub,
		cfg:          cfg,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	go m.runChecker()
	return m
}

// Heartbeat records activity. It promotes to online unless the user has
// explicitly set busy.
func (m *Manager) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	m.lastActivity[userID] = m.now()
	oldState := m.currentState[userID]
	newState := StatusOnline
	if m.explicitBusy[userID] {
		newState = StatusBusy
	}
	m.currentState[userID] = newState
	m.mu.Unlock()

	if oldState != newState {
		if err := m.store.UpdateStatus(ctx, userID, newState); err != nil {
			return err
		}
		m.broadcastStatusChange(ctx, userID, newState)
	}
	return nil
}

// SetPresence is the explicit user choice. Offline here means invisible
// until the next heartbeat.
func (m *Manager) SetPresence(ctx context.Context, userID uuid.UUID, status string) error {
	switch status {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
	default:
		return errors.Invalid("unknown presence status")
	}

	m.mu.Lock()
	if status == StatusOffline {
		delete(m.lastActivity, userID)
	} else {
		m.lastActivity[userID] = m.now()
	}
	m.explicitBusy[userID] = status == StatusBusy
	oldState := m.currentState[userID]
	m.currentState[userID] = status
	m.mu.Unlock()

	if oldState == status {
		return nil
	}
	if err := m.store.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}
	m.broadcastStatusChange(ctx, userID, status)
	return nil
}

func (m *Manager) SetOffline(ctx context.Context, userID uuid.UUID) error {
	return m.SetPresence(ctx, userID, StatusOffline)
}

func (m *Manager) GetStatus(userID uuid.UUID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.currentState[userID]; ok {
		return s
	}
	return StatusOffline
}

func (m *Manager) runChecker() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckPresence()
		case <-m.stopCh:
			return
		}
	}
}

// CheckPresence sweeps the activity map and applies the idle thresholds.
func (m *Manager) CheckPresence() {
	now := m.now()
	ctx := context.Background()

	type update struct {
		userID   uuid.UUID
		newState string
	}

	m.mu.Lock()
	var updates []update
	for userID, lastActive := range m.lastActivity {
		idle := now.Sub(lastActive)
		currentState := m.currentState[userID]

		var newState string
		switch {
		case idle > m.cfg.OfflineThreshold:
			newState = StatusOffline
			delete(m.lastActivity, userID)
			delete(m.explicitBusy, userID)
		case m.explicitBusy[userID]:
			newState = StatusBusy
		case idle > m.cfg.AwayThreshold:
			newState = StatusAway
		default:
			newState = StatusOnline
		}

		if newState != currentState {
			m.currentState[userID] = newState
			updates = append(updates, update{userID, newState})
		}
	}
	m.mu.Unlock()

	for _, u := range updates {
		_ = m.store.UpdateStatus(ctx, u.userID, u.newState)
		m.broadcastStatusChange(ctx, u.userID, u.newState)
	}
}

// broadcastStatusChange notifies friends directly and every conversation
// the user participates in.
func (m *Manager) broadcastStatusChange(ctx context.Context, userID uuid.UUID, status string) {
	if m.hub == nil {
		return
	}

	event := events.New(events.TypePresenceChanged, events.PresenceChanged{
		UserID: userID.String(),
		Status: status,
	})

	if m.friends != nil {
		friends, _ := m.friends.FriendIDs(ctx, userID)
		for _, friendID := range friends {
			m.hub.BroadcastToUser(friendID.String(), event)
		}
	}

	if m.convs != nil {
		convIDs, _ := m.convs.ListConversationIDsForUser(ctx, userID)
		for _, convID := range convIDs {
			m.hub.BroadcastToConversation(convID.String(), event)
		}
	}
}

func (m *Manager) Stop() {
	close(m.stopCh)
}
