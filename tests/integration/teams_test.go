//go:build integration

package integration_test

import (
	"context"
	"testing"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/chat"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/infra"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDeletedTeamChannelsBecomeNotFound(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	owner := createTestUser(t, database, "owner")
	stranger := createTestUser(t, database, "stranger")

	hub := events.NewHub(zap.NewNop())
	msgsRepo := messages.NewRepository(database.Pool, infra.NewSequenceAllocator(1))
	memberRepo := membership.NewRepository(database.Pool)
	memberSvc := membership.NewService(memberRepo, msgsRepo, hub, nil)
	chatSvc := chat.NewService(msgsRepo, memberSvc, memberRepo, hub, nil, zap.NewNop())

	ctx := auth.WithUserID(context.Background(), owner.ID.String())

	team, general, err := memberSvc.CreateTeam(ctx, "Ops")
	require.NoError(t, err)

	_, err = chatSvc.Append(ctx, general.ID.String(), "text", "hello")
	require.NoError(t, err)

	// A conversation that never existed reads as missing, not forbidden.
	_, err = chatSvc.ListSince(ctx, uuid.New().String(), 0, 50)
	assert.True(t, errors.IsNotFound(err))

	// A non-member of a live channel is forbidden, not missing.
	strangerCtx := auth.WithUserID(context.Background(), stranger.ID.String())
	_, err = chatSvc.ListSince(strangerCtx, general.ID.String(), 0, 50)
	require.Error(t, err)
	assert.Equal(t, 403, errors.HTTPStatus(err))

	require.NoError(t, memberSvc.DeleteTeam(ctx, team.ID.String()))

	// After deletion the channel is missing for everyone, members included.
	_, err = chatSvc.ListSince(ctx, general.ID.String(), 0, 50)
	assert.True(t, errors.IsNotFound(err))

	_, err = chatSvc.Append(ctx, general.ID.String(), "text", "too late")
	assert.True(t, errors.IsNotFound(err))
}
