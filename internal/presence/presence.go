// Package presence tracks which sessions are currently viewing a content key
// and turns membership changes into viewer counts.
package presence

import (
	"context"
	"time"
)

// Meta is the payload each session tracks on a topic.
type Meta struct {
	OnlineAt  time.Time `json:"online_at"`
	ChannelID string    `json:"channel_id"`
}

// State maps session keys to their tracked payload.
type State map[string]Meta

// Subscription is one membership of a topic. Syncs delivers the full member
// state after every change; only the latest state is buffered.
type Subscription interface {
	// Ready is closed once the broker has confirmed the subscription.
	Ready() <-chan struct{}
	Track(ctx context.Context, key string, meta Meta) error
	Untrack(ctx context.Context, key string) error
	Syncs() <-chan State
	Close() error
}

type Broker interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	// Members returns the current state of a topic without joining it.
	Members(ctx context.Context, topic string) (State, error)
}

func Topic(contentID string) string {
	return "viewers:" + contentID
}

// CountOf is the number of distinct sessions, never less than one.
func CountOf(s State) int {
	return max(1, len(s))
}

func (s State) clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// offer replaces any undelivered state with st.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
