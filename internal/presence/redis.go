package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const untrackTimeout = 2 * time.Second

// RedisBroker keeps topic membership in a hash named after the topic and
// announces changes on the pub/sub channel of the same name.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSub{
		client:  b.client,
		topic:   topic,
		pubsub:  b.client.Subscribe(ctx, topic),
		ready:   make(chan struct{}),
		syncs:   make(chan State, 1),
		tracked: make(map[string]struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.run(runCtx)
	return sub, nil
}

func (b *RedisBroker) Members(ctx context.Context, topic string) (State, error) {
	return members(ctx, b.client, topic)
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func members(ctx context.Context, client *redis.Client, topic string) (State, error) {
	raw, err := client.HGetAll(ctx, topic).Result()
	if err != nil {
		return nil, fmt.Errorf("read members of %s: %w", topic, err)
	}
	st := make(State, len(raw))
	for key, val := range raw {
		var meta Meta
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			log.Printf("[presence] skipping malformed member %s on %s: %v", key, topic, err)
			continue
		}
		st[key] = meta
	}
	return st, nil
}

type redisSub struct {
	client *redis.Client
	topic  string
	pubsub *redis.PubSub
	ready  chan struct{}
	syncs  chan State
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	tracked map[string]struct{}
	closed  bool
}

func (s *redisSub) Ready() <-chan struct{} { return s.ready }

func (s *redisSub) Syncs() <-chan State { return s.syncs }

// run waits for the subscribe confirmation, then re-reads the member hash on
// every notification. If confirmation never arrives Ready is never closed.
func (s *redisSub) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.syncs)

	if _, err := s.pubsub.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			log.Printf("[presence] subscribe %s: %v", s.topic, err)
		}
		return
	}
	close(s.ready)
	s.sync(ctx)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			s.sync(ctx)
		}
	}
}

func (s *redisSub) sync(ctx context.Context) {
	st, err := members(ctx, s.client, s.topic)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[presence] %v", err)
		}
		return
	}
	offer(s.syncs, st)
}

func (s *redisSub) Track(ctx context.Context, key string, meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	val, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.topic, key, val)
	pipe.Publish(ctx, s.topic, "join:"+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("track %s on %s: %w", key, s.topic, err)
	}
	s.tracked[key] = struct{}{}
	return nil
}

func (s *redisSub) Untrack(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.untrackLocked(ctx, key)
}

func (s *redisSub) untrackLocked(ctx context.Context, key string) error {
	if _, ok := s.tracked[key]; !ok {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.topic, key)
	pipe.Publish(ctx, s.topic, "leave:"+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("untrack %s on %s: %w", key, s.topic, err)
	}
	delete(s.tracked, key)
	return nil
}

func (s *redisSub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), untrackTimeout)
	defer cancel()
	for key := range s.tracked {
		if err := s.untrackLocked(ctx, key); err != nil {
			log.Printf("[presence] %v", err)
		}
	}
	s.mu.Unlock()

	s.cancel()
	err := s.pubsub.Close()
	<-s.done
	return err
}
