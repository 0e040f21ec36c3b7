package presence

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("subscription closed")

// Hub is a process-local broker.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*hubTopic
}

type hubTopic struct {
	members State
	subs    map[*hubSub]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]*hubTopic)}
}

func (h *Hub) Subscribe(_ context.Context, topic string) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[topic]
	if !ok {
		t = &hubTopic{members: State{}, subs: make(map[*hubSub]struct{})}
		h.topics[topic] = t
	}
	sub := &hubSub{
		hub:     h,
		topic:   topic,
		ready:   make(chan struct{}),
		syncs:   make(chan State, 1),
		tracked: make(map[string]struct{}),
	}
	t.subs[sub] = struct{}{}
	close(sub.ready)
	offer(sub.syncs, t.members.clone())
	return sub, nil
}

func (h *Hub) Members(_ context.Context, topic string) (State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[topic]
	if !ok {
		return State{}, nil
	}
	return t.members.clone(), nil
}

// broadcast must be called with h.mu held.
func (h *Hub) broadcast(t *hubTopic) {
	for sub := range t.subs {
		offer(sub.syncs, t.members.clone())
	}
}

type hubSub struct {
	hub     *Hub
	topic   string
	ready   chan struct{}
	syncs   chan State
	tracked map[string]struct{}
	closed  bool
}

func (s *hubSub) Ready() <-chan struct{} { return s.ready }

func (s *hubSub) Syncs() <-chan State { return s.syncs }

func (s *hubSub) Track(_ context.Context, key string, meta Meta) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	t := h.topics[s.topic]
	t.members[key] = meta
	s.tracked[key] = struct{}{}
	h.broadcast(t)
	return nil
}

func (s *hubSub) Untrack(_ context.Context, key string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return nil
	}
	s.untrackLocked(key)
	h.broadcast(h.topics[s.topic])
	return nil
}

func (s *hubSub) untrackLocked(key string) {
	if _, ok := s.tracked[key]; !ok {
		return
	}
	delete(s.tracked, key)
	delete(s.hub.topics[s.topic].members, key)
}

// Close leaves the topic, dropping every key this subscription tracked.
func (s *hubSub) Close() error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	t := h.topics[s.topic]
	for key := range s.tracked {
		s.untrackLocked(key)
	}
	delete(t.subs, s)
	close(s.syncs)
	if len(t.subs) == 0 && len(t.members) == 0 {
		delete(h.topics, s.topic)
	} else {
		h.broadcast(t)
	}
	return nil
}
