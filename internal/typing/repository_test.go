package typing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndList(t *testing.T) {
	repo := NewRepository()
	convID := uuid.New()
	userID := uuid.New()

	ind := repo.Set(userID, convID)
	assert.Equal(t, userID, ind.UserID)
	assert.Equal(t, TypingDuration, ind.ExpiresAt.Sub(ind.StartedAt))

	active := repo.List(convID)
	require.Len(t, active, 1)
	assert.Equal(t, userID, active[0].UserID)

	assert.Empty(t, repo.List(uuid.New()))
}

func TestSetRefreshesExistingIndicator(t *testing.T) {
	repo := NewRepository()
	convID := uuid.New()
	userID := uuid.New()

	base := time.Now()
	repo.now = func() time.Time { return base }
	first := repo.Set(userID, convID)

	repo.now = func() time.Time { return base.Add(3 * time.Second) }
	second := repo.Set(userID, convID)

	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Len(t, repo.List(convID), 1)
}

func TestClear(t *testing.T) {
	repo := NewRepository()
	convID := uuid.New()
	userID := uuid.New()

	repo.Set(userID, convID)
	repo.Clear(userID, convID)
	assert.Empty(t, repo.List(convID))
}

func TestListDropsExpired(t *testing.T) {
	repo := NewRepository()
	convID := uuid.New()
	stale := uuid.New()
	fresh := uuid.New()

	base := time.Now()
	repo.now = func() time.Time { return base }
	repo.Set(stale, convID)

	repo.now = func() time.Time { return base.Add(4 * time.Second) }
	repo.Set(fresh, convID)

	repo.now = func() time.Time { return base.Add(6 * time.Second) }
	active := repo.List(convID)
	require.Len(t, active, 1)
	assert.Equal(t, fresh, active[0].UserID)
}

func TestSweepRemovesExpiredAcrossConversations(t *testing.T) {
	repo := NewRepository()

	base := time.Now()
	repo.now = func() time.Time { return base }
	convA := uuid.New()
	convB := uuid.New()
	repo.Set(uuid.New(), convA)
	repo.Set(uuid.New(), convB)

	repo.now = func() time.Time { return base.Add(TypingDuration + time.Second) }
	repo.Sweep()

	assert.Empty(t, repo.indicators)
}
