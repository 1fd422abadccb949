package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingPublisher struct {
	mu       sync.Mutex
	received []Notification
	block    chan struct{}
}

func (p *capturingPublisher) Publish(ctx context.Context, n Notification) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.received = append(p.received, n)
	p.mu.Unlock()
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func TestDispatcherDeliversToPublishers(t *testing.T) {
	pub := &capturingPublisher{}
	d := NewDispatcher(16, 2, zap.NewNop(), pub)
	defer d.Shutdown()

	d.Enqueue(Notification{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Kind:           KindMessage,
		Preview:        "hello",
	})

	require.Eventually(t, func() bool {
		return pub.count() == 1
	}, time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "user-1", pub.received[0].UserID)
	assert.False(t, pub.received[0].CreatedAt.IsZero())
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	pub := &capturingPublisher{block: block}
	d := NewDispatcher(2, 1, zap.NewNop(), pub)
	defer d.Shutdown()
	defer close(block)

	// One notification occupies the worker, two fill the queue. Anything
	// beyond that must be dropped without blocking the caller.
	for i := 0; i < 10; i++ {
		d.Enqueue(Notification{UserID: "user-1", Kind: KindMessage})
	}

	assert.Greater(t, d.Dropped(), uint64(0))
}

func TestShutdownStopsWorkers(t *testing.T) {
	pub := &capturingPublisher{}
	d := NewDispatcher(4, 2, zap.NewNop(), pub)

	d.Enqueue(Notification{UserID: "user-1", Kind: KindFriendRequest})
	d.Shutdown()

	before := pub.count()
	d.Enqueue(Notification{UserID: "user-2", Kind: KindMessage})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, pub.count())
}
