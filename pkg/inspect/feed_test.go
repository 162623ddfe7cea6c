package inspect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed event")
		return Event{}
	}
}

func TestFeed_EmitAndSubscribe(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	sub, err := feed.Subscribe("")
	require.NoError(t, err)

	feed.Emit(Event{Kind: KindMutation, Path: "count", Mutation: "set", Value: 1}.
		WithGlobs("count"))

	ev := recvOne(t, sub)
	assert.Equal(t, KindMutation, ev.Kind)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.False(t, ev.Time.IsZero())
}

func TestFeed_PatternFilter(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	sub, err := feed.Subscribe("user/**")
	require.NoError(t, err)

	feed.Emit(Event{Kind: KindMutation, Path: "posts[0]"}.WithGlobs("posts/0"))
	feed.Emit(Event{Kind: KindMutation, Path: "user.name"}.WithGlobs("user/name"))

	ev := recvOne(t, sub)
	assert.Equal(t, "user.name", ev.Path)

	// Pathless frames pass any filter.
	feed.Emit(Event{Kind: KindOperationStart, Operation: "increment"})
	ev = recvOne(t, sub)
	assert.Equal(t, KindOperationStart, ev.Kind)
}

func TestFeed_InvalidPattern(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	_, err := feed.Subscribe("user/[")
	assert.Error(t, err)
}

func TestFeed_History(t *testing.T) {
	feed := NewFeed(3, nil)
	defer feed.Close()

	for i := 1; i <= 5; i++ {
		feed.Emit(Event{Kind: KindMutation, Value: i})
	}

	hist := feed.History()
	require.Len(t, hist, 3)
	assert.Equal(t, uint64(3), hist[0].Seq)
	assert.Equal(t, uint64(5), hist[2].Seq)
}

func TestFeed_SlowSubscriberDrops(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	sub, err := feed.Subscribe("")
	require.NoError(t, err)

	for i := 0; i < defaultSubscriptionBuffer+10; i++ {
		feed.Emit(Event{Kind: KindMutation})
	}

	assert.Equal(t, uint64(10), sub.Dropped())
}

func TestFeed_UnsubscribeClosesChannel(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	sub, err := feed.Subscribe("")
	require.NoError(t, err)
	feed.Unsubscribe(sub)

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, feed.SubscriberCount())

	// Double unsubscribe must not panic.
	feed.Unsubscribe(sub)
}

func TestFeed_Close(t *testing.T) {
	feed := NewFeed(0, nil)
	sub, err := feed.Subscribe("")
	require.NoError(t, err)

	feed.Close()
	_, open := <-sub.Events()
	assert.False(t, open)

	// Emissions and subscriptions after close fail cleanly.
	feed.Emit(Event{Kind: KindMutation})
	_, err = feed.Subscribe("")
	assert.Error(t, err)
	feed.Close()
}
