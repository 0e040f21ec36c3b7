package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// silentBroker never confirms a subscription.
type silentBroker struct{}

func (silentBroker) Subscribe(context.Context, string) (Subscription, error) {
	return &silentSub{ready: make(chan struct{}), syncs: make(chan State)}, nil
}

func (silentBroker) Members(context.Context, string) (State, error) { return State{}, nil }

type silentSub struct {
	ready chan struct{}
	syncs chan State
}

func (s *silentSub) Ready() <-chan struct{} { return s.ready }
func (s *silentSub) Track(context.Context, string, Meta) error { return nil }
func (s *silentSub) Untrack(context.Context, string) error { return nil }
func (s *silentSub) Syncs() <-chan State { return s.syncs }
func (s *silentSub) Close() error { return nil }

func TestTopic(t *testing.T) {
	assert.Equal(t, "viewers:espn-1", Topic("espn-1"))
}

func TestCountOfFloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, CountOf(State{}))
	assert.Equal(t, 1, CountOf(nil))
	assert.Equal(t, 2, CountOf(State{"a": {}, "b": {}}))
}

func TestTwoViewersCountTwo(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := Watch(ctx, hub, "movie-1")
	defer a.Close()
	b := Watch(ctx, hub, "movie-1")
	defer b.Close()

	require.Eventually(t, func() bool { return a.Count() == 2 && b.Count() == 2 }, waitFor, tick)
	assert.NotEqual(t, a.SessionKey(), b.SessionKey())

	members, err := hub.Members(ctx, Topic("movie-1"))
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, meta := range members {
		assert.Equal(t, "movie-1", meta.ChannelID)
		assert.False(t, meta.OnlineAt.IsZero())
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := Watch(ctx, hub, "movie-1")
	defer a.Close()
	b := Watch(ctx, hub, "movie-2")
	defer b.Close()

	require.Eventually(t, func() bool {
		m, _ := hub.Members(ctx, Topic("movie-2"))
		return len(m) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, 1, b.Count())
}

func TestLeavingDropsCount(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := Watch(ctx, hub, "ch")
	defer a.Close()
	b := Watch(ctx, hub, "ch")
	require.Eventually(t, func() bool { return a.Count() == 2 }, waitFor, tick)

	b.Close()
	require.Eventually(t, func() bool { return a.Count() == 1 }, waitFor, tick)

	members, err := hub.Members(ctx, Topic("ch"))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestNoMembersReadsOne(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(context.Background(), Topic("empty"))
	require.NoError(t, err)
	defer sub.Close()

	st := <-sub.Syncs()
	assert.Empty(t, st)
	assert.Equal(t, 1, CountOf(st))
}

func TestUnconfirmedSubscriptionStaysAtDefault(t *testing.T) {
	c := Watch(context.Background(), silentBroker{}, "x")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.Count())

	c.Close()
	_, ok := <-c.Updates()
	assert.False(t, ok)
}

func TestUpdatesDeliverLatest(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := Watch(ctx, hub, "live")
	defer a.Close()
	b := Watch(ctx, hub, "live")
	defer b.Close()

	deadline := time.After(waitFor)
	for {
		select {
		case n := <-a.Updates():
			if n == 2 {
				return
			}
		case <-deadline:
			t.Fatalf("never observed count 2, last %d", a.Count())
		}
	}
}

func TestTrackAfterCloseFails(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(context.Background(), Topic("x"))
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.ErrorIs(t, sub.Track(context.Background(), "k", Meta{}), ErrClosed)
}
