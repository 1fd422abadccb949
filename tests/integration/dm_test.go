//go:build integration

package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/dm"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConcurrentGetOrCreateYieldsOneConversation(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")

	repo := dm.NewRepository(database.Pool)

	const workers = 8
	ids := make([]uuid.UUID, workers)
	created := make([]bool, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate argument order; the pair is canonicalized.
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			ids[i], created[i], errs[i] = repo.GetOrCreate(ctx, a, b)
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	waitTimeout(t, done, 10*time.Second)

	creations := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			creations++
		}
	}
	assert.Equal(t, 1, creations)
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (r *recordingInvalidator) InvalidateParticipant(_ context.Context, _ uuid.UUID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func TestCloseDMInvalidatesBothParticipants(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")

	hub := events.NewHub(zap.NewNop())
	rec := &recordingInvalidator{}
	svc := dm.NewService(dm.NewRepository(database.Pool), hub, rec)

	ctx := auth.WithUserID(context.Background(), alice.ID.String())

	conv, wasNew, err := svc.Open(ctx, bob.ID.String())
	require.NoError(t, err)
	assert.True(t, wasNew)

	err = svc.Close(ctx, conv.ID.String())
	require.NoError(t, err)

	rec.mu.Lock()
	users := append([]uuid.UUID(nil), rec.users...)
	rec.mu.Unlock()
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, users)

	// The tombstoned conversation is gone from listings.
	convs, err := svc.List(ctx)
	require.NoError(t, err)
	for _, c := range convs {
		assert.NotEqual(t, conv.ID, c.ID)
	}

	err = svc.Close(ctx, conv.ID.String())
	assert.True(t, errors.IsNotFound(err))

	// Reopening starts a fresh conversation with a new id.
	conv2, wasNew, err := svc.Open(ctx, bob.ID.String())
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.NotEqual(t, conv.ID, conv2.ID)
}
