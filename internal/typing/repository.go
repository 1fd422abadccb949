package typing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const TypingDuration = 5 * time.Second

type Indicator struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	StartedAt      time.Time `json:"started_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type key struct {
	userID         uuid.UUID
	conversationID uuid.UUID
}

// Repository keeps typing indicators in memory with a fixed TTL. Expired
// entries are dropped lazily on read and by an occasional sweep.
type Repository struct {
	mu         sync.Mutex
	indicators map[key]Indicator
	now        func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		indicators: make(map[key]Indicator),
		now:        time.Now,
	}
}

func (r *Repository) Set(userID, conversationID uuid.UUID) Indicator {
	now := r.now()
	ind := Indicator{
		UserID:         userID,
		ConversationID: conversationID,
		StartedAt:      now,
		ExpiresAt:      now.Add(TypingDuration),
	}

	r.mu.Lock()
	r.indicators[key{userID, conversationID}] = ind
	r.mu.Unlock()
	return ind
}

func (r *Repository) Clear(userID, conversationID uuid.UUID) {
	r.mu.Lock()
	delete(r.indicators, key{userID, conversationID})
	r.mu.Unlock()
}

func (r *Repository) List(conversationID uuid.UUID) []Indicator {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var active []Indicator
	for k, ind := range r.indicators {
		if k.conversationID != conversationID {
			continue
		}
		if ind.ExpiresAt.Before(now) {
			delete(r.indicators, k)
			continue
		}
		active = append(active, ind)
	}
	return active
}

// Sweep removes every expired indicator. Run periodically so abandoned
// conversations do not pin memory.
func (r *Repository) Sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, ind := range r.indicators {
		if ind.ExpiresAt.Before(now) {
			delete(r.indicators, k)
		}
	}
}
