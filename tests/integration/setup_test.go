//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/collab-messenger/relay/internal/common/config"
	"github.com/collab-messenger/relay/internal/identity"
	"github.com/collab-messenger/relay/internal/infra/db"
	"github.com/collab-messenger/relay/internal/infra/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.DB {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "relay_test",
		MaxConns: 5,
		MinConns: 1,
	}

	database, err := db.New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	err = migrations.Run(ctx, database.Pool)
	require.NoError(t, err)

	cleanupTestData(t, database)

	return database
}

func cleanupTestData(t *testing.T, database *db.DB) {
	ctx := context.Background()

	// FK order: children before parents.
	tables := []string{
		"message_reactions",
		"read_markers",
		"messages",
		"conversation_participants",
		"conversations",
		"team_members",
		"teams",
		"friendships",
		"friend_requests",
		"users",
	}

	for _, table := range tables {
		_, err := database.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(t, err)
	}
}

func uniqueHandle(base string) string {
	return fmt.Sprintf("%s_%s", base, uuid.New().String()[:8])
}

func createTestUser(t *testing.T, database *db.DB, base string) *identity.User {
	t.Helper()

	repo := identity.NewRepository(database.Pool)
	user := &identity.User{
		ID:          uuid.New(),
		Handle:      uniqueHandle(base),
		DisplayName: base,
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)

	return user
}

func waitTimeout(t *testing.T, done <-chan struct{}, d time.Duration) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for goroutines")
	}
}
