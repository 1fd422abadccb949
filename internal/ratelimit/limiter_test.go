package ratelimit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := NewLimiter(nil, 1, 1, false)
	defer l.Close()

	for i := 0; i < 100; i++ {
		ok, err := l.Allow(context.Background(), "default:user-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestLocalLimiterExhaustsBurst(t *testing.T) {
	l := NewLimiter(nil, 60, 5, true)
	defer l.Close()

	key := "default:user-1"
	for i := 0; i < 5; i++ {
		ok, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be within the burst", i)
	}

	ok, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysAreIsolated(t *testing.T) {
	l := NewLimiter(nil, 60, 1, true)
	defer l.Close()

	ok, err := l.Allow(context.Background(), "default:user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(context.Background(), "default:user-1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Allow(context.Background(), "default:user-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyPrefixSelectsLimitClass(t *testing.T) {
	// The default class gets a burst of 1 while the message class allows
	// 20, so the prefix decides how many requests pass.
	l := NewLimiter(nil, 60, 1, true)
	defer l.Close()

	ok, err := l.Allow(context.Background(), "message:user-1")
	require.NoError(t, err)
	require.True(t, ok)

	allowed := 1
	for i := 0; i < 30; i++ {
		ok, err := l.Allow(context.Background(), "message:user-1")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 20, allowed)
}

func TestResetClearsLocalState(t *testing.T) {
	l := NewLimiter(nil, 60, 1, true)
	defer l.Close()

	key := "default:user-1"
	ok, _ := l.Allow(context.Background(), key)
	require.True(t, ok)
	ok, _ = l.Allow(context.Background(), key)
	require.False(t, ok)

	require.NoError(t, l.Reset(context.Background(), key))

	ok, _ = l.Allow(context.Background(), key)
	assert.True(t, ok)
}

func TestSearchClassIsStricter(t *testing.T) {
	l := NewLimiter(nil, 600, 100, true)
	defer l.Close()

	allowed := 0
	for i := 0; i < 20; i++ {
		ok, err := l.Allow(context.Background(), fmt.Sprintf("search:%s", "user-1"))
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}
