package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

func recv(t *testing.T, ch chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	hub := newTestHub()
	client := hub.AddClient(context.Background(), "user-1")
	require.NotNil(t, client)

	require.True(t, hub.Subscribe("user-1", "conv-1"))

	hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))

	ev := recv(t, client.SendChan)
	assert.Equal(t, TypeMessageAppended, ev.Type)
}

func TestNoDeliveryAfterUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := hub.AddClient(context.Background(), "user-1")
	require.True(t, hub.Subscribe("user-1", "conv-1"))

	hub.Unsubscribe("user-1", "conv-1")
	hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))

	select {
	case ev := <-client.SendChan:
		t.Fatalf("unexpected event after unsubscribe: %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToUnsubscribedConversation(t *testing.T) {
	hub := newTestHub()
	hub.AddClient(context.Background(), "user-1")

	// Must not panic or deliver anywhere.
	hub.BroadcastToConversation("conv-unknown", New(TypeMessageAppended, nil))
	assert.False(t, hub.ConversationHasSubscribers("conv-unknown"))
}

func TestRemoveClientCancelsContext(t *testing.T) {
	hub := newTestHub()
	client := hub.AddClient(context.Background(), "user-1")
	require.True(t, hub.Subscribe("user-1", "conv-1"))

	hub.RemoveClient(client)

	select {
	case <-client.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("client context not cancelled on removal")
	}
	assert.False(t, hub.IsConnected("user-1"))
	assert.False(t, hub.ConversationHasSubscribers("conv-1"))
}

func TestStaleRemovalKeepsNewConnection(t *testing.T) {
	hub := newTestHub()
	first := hub.AddClient(context.Background(), "user-1")
	second := hub.AddClient(context.Background(), "user-1")

	// The displaced socket tears down after the reconnect, the way a dying
	// read loop would. The live connection must survive it.
	hub.RemoveClient(first)

	assert.NoError(t, second.Context().Err())
	assert.True(t, hub.IsConnected("user-1"))

	require.True(t, hub.Subscribe("user-1", "conv-1"))
	hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))
	ev := recv(t, second.SendChan)
	assert.Equal(t, TypeMessageAppended, ev.Type)
}

func TestNewConnectionDisplacesOld(t *testing.T) {
	hub := newTestHub()
	first := hub.AddClient(context.Background(), "user-1")
	second := hub.AddClient(context.Background(), "user-1")

	select {
	case <-first.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("displaced client context not cancelled")
	}

	require.True(t, hub.Subscribe("user-1", "conv-1"))
	hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))

	ev := recv(t, second.SendChan)
	assert.Equal(t, TypeMessageAppended, ev.Type)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestSubscribeUnknownUser(t *testing.T) {
	hub := newTestHub()
	assert.False(t, hub.Subscribe("nobody", "conv-1"))
}

func TestFullBufferDropsAndReportsEvent(t *testing.T) {
	hub := newTestHub()

	var droppedFor []string
	hub.OnDrop(func(userID string) {
		droppedFor = append(droppedFor, userID)
	})

	client := hub.AddClient(context.Background(), "user-1")
	require.True(t, hub.Subscribe("user-1", "conv-1"))

	// Nobody reads the channel, so the buffer fills and overflow drops.
	for i := 0; i < sendBuffer+10; i++ {
		hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))
	}

	assert.Len(t, client.SendChan, sendBuffer)
	assert.NotEmpty(t, droppedFor)
	assert.Equal(t, "user-1", droppedFor[0])
}

func TestUnsubscribeStopsConcurrentBroadcasts(t *testing.T) {
	hub := newTestHub()
	client := hub.AddClient(context.Background(), "user-1")
	require.True(t, hub.Subscribe("user-1", "conv-1"))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.BroadcastToConversation("conv-1", New(TypeMessageAppended, nil))
			}
		}
	}()

	hub.Unsubscribe("user-1", "conv-1")

	// Events buffered before the unsubscribe are fine; nothing may be
	// added afterwards even though the broadcaster keeps running.
	for len(client.SendChan) > 0 {
		<-client.SendChan
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, client.SendChan)

	close(stop)
	<-done
}

func TestBroadcastToUser(t *testing.T) {
	hub := newTestHub()
	client := hub.AddClient(context.Background(), "user-1")
	hub.AddClient(context.Background(), "user-2")

	hub.BroadcastToUser("user-1", New(TypePresenceChanged, PresenceChanged{
		UserID: "user-2",
		Status: "online",
	}))

	ev := recv(t, client.SendChan)
	assert.Equal(t, TypePresenceChanged, ev.Type)
}

func TestShutdownRejectsNewClients(t *testing.T) {
	hub := newTestHub()
	hub.AddClient(context.Background(), "user-1")

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.ClientCount())
	assert.Nil(t, hub.AddClient(context.Background(), "user-2"))
}
