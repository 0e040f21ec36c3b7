package presence

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Counter follows the viewer count of one content key while it is open.
// It joins the topic under a fresh session key once the subscription is
// confirmed and leaves it on Close. There is no reconnect: if the broker never
// confirms, Count stays at 1.
type Counter struct {
	contentID  string
	sessionKey string
	count      atomic.Int64
	updates    chan int
	cancel     context.CancelFunc
	done       chan struct{}
	now        func() time.Time
}

// Watch starts following contentID on b. Call Close to leave.
func Watch(ctx context.Context, b Broker, contentID string) *Counter {
	ctx, cancel := context.WithCancel(ctx)
	c := &Counter{
		contentID:  contentID,
		sessionKey: uuid.NewString(),
		updates:    make(chan int, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	c.count.Store(1)
	go c.run(ctx, b)
	return c
}

func (c *Counter) ContentID() string { return c.contentID }

func (c *Counter) SessionKey() string { return c.sessionKey }

func (c *Counter) Count() int {
	return int(c.count.Load())
}

// Updates delivers the count after every membership change. Only the most
// recent value is buffered. The channel is closed after Close.
func (c *Counter) Updates() <-chan int {
	return c.updates
}

// Close leaves the topic and waits for the counter to stop.
func (c *Counter) Close() {
	c.cancel()
	<-c.done
}

func (c *Counter) run(ctx context.Context, b Broker) {
	defer close(c.done)
	defer close(c.updates)

	topic := Topic(c.contentID)
	sub, err := b.Subscribe(ctx, topic)
	if err != nil {
		log.Printf("[presence] subscribe %s: %v", topic, err)
		<-ctx.Done()
		return
	}
	defer sub.Close()

	select {
	case <-sub.Ready():
	case <-ctx.Done():
		return
	}

	meta := Meta{OnlineAt: c.now().UTC(), ChannelID: c.contentID}
	if err := sub.Track(ctx, c.sessionKey, meta); err != nil {
		log.Printf("[presence] join %s: %v", topic, err)
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), untrackTimeout)
		defer cancel()
		if err := sub.Untrack(leaveCtx, c.sessionKey); err != nil {
			log.Printf("[presence] leave %s: %v", topic, err)
		}
	}()

	syncs := sub.Syncs()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-syncs:
			if !ok {
				<-ctx.Done()
				return
			}
			c.set(CountOf(st))
		}
	}
}

func (c *Counter) set(n int) {
	c.count.Store(int64(n))
	select {
	case c.updates <- n:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- n:
	default:
	}
}
