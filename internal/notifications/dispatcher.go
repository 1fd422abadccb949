package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification is one push-worthy occurrence for one recipient.
type Notification struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      int64     `json:"message_id,string,omitempty"`
	SenderID       string    `json:"sender_id,omitempty"`
	Kind           string    `json:"kind"`
	Preview        string    `json:"preview,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	KindMessage       = "message"
	KindFriendRequest = "friend_request"
)

// Publisher delivers a notification to an external channel (push service,
// message broker). Delivery failures are logged, not retried.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Dispatcher fans notifications out to workers behind a bounded queue.
// Enqueue never blocks the caller; when the queue is full the
// notification is dropped and counted.
type Dispatcher struct {
	queue      chan Notification
	publishers []Publisher
	logger     *zap.Logger

	mu      sync.Mutex
	dropped uint64

	depthGauge func(int)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewDispatcher(queueSize, workers int, logger *zap.Logger, publishers ...Publisher) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:      make(chan Notification, queueSize),
		publishers: publishers,
		logger:     logger,
		cancel:     cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return d
}

// OnDepthChange reports queue depth after every enqueue and dequeue.
func (d *Dispatcher) OnDepthChange(fn func(depth int)) {
	d.mu.Lock()
	d.depthGauge = fn
	d.mu.Unlock()
}

func (d *Dispatcher) reportDepth() {
	d.mu.Lock()
	fn := d.depthGauge
	d.mu.Unlock()
	if fn != nil {
		fn(len(d.queue))
	}
}

func (d *Dispatcher) Enqueue(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	select {
	case d.queue <- n:
		d.reportDepth()
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("notification queue full, dropping",
			zap.String("user_id", n.UserID),
			zap.String("kind", n.Kind))
	}
}

func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.reportDepth()
			for _, p := range d.publishers {
				pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := p.Publish(pubCtx, n); err != nil {
					d.logger.Error("notification publish failed",
						zap.String("user_id", n.UserID),
						zap.Error(err))
				}
				cancel()
			}
		}
	}
}

// Shutdown stops the workers. Queued notifications not yet picked up are
// discarded.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.wg.Wait()
}
