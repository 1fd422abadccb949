//go:build integration

package integration_test

import (
	"context"
	"testing"

	"github.com/collab-messenger/relay/internal/dm"
	"github.com/collab-messenger/relay/internal/infra"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/collab-messenger/relay/internal/readtracking"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkReadNeverMovesBackwards(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")

	dmRepo := dm.NewRepository(database.Pool)
	convID, _, err := dmRepo.GetOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	readRepo := readtracking.NewRepository(database.Pool)

	stored, err := readRepo.MarkRead(ctx, alice.ID, convID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored)

	// A stale ack must not rewind the marker.
	stored, err = readRepo.MarkRead(ctx, alice.ID, convID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored)

	marker, err := readRepo.Get(ctx, alice.ID, convID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), marker.LastReadID)

	stored, err = readRepo.MarkRead(ctx, alice.ID, convID, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stored)
}

func TestToggleReactionAddRemoveReplace(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")

	dmRepo := dm.NewRepository(database.Pool)
	convID, _, err := dmRepo.GetOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	msgsRepo := messages.NewRepository(database.Pool, infra.NewSequenceAllocator(1))
	msg := &messages.Message{
		ConversationID: convID,
		AuthorID:       alice.ID,
		Kind:           "text",
		Content:        "hello",
	}
	require.NoError(t, msgsRepo.Create(ctx, msg))

	emoji, removed, err := msgsRepo.ToggleReaction(ctx, msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "👍", emoji)
	assert.False(t, removed)

	// Same emoji again removes it.
	emoji, removed, err = msgsRepo.ToggleReaction(ctx, msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	assert.Empty(t, emoji)
	assert.True(t, removed)

	state, err := msgsRepo.GetReactions(ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, state)

	// A different emoji replaces the existing one instead of stacking.
	_, _, err = msgsRepo.ToggleReaction(ctx, msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	emoji, removed, err = msgsRepo.ToggleReaction(ctx, msg.ID, bob.ID, "🎉")
	require.NoError(t, err)
	assert.Equal(t, "🎉", emoji)
	assert.False(t, removed)

	state, err = msgsRepo.GetReactions(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, state, 1)
	assert.Contains(t, state, "🎉")
	assert.Equal(t, []uuid.UUID{bob.ID}, state["🎉"])
}
