package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/danmuji/internal/event"
)

func comment(roomID int64, text string) event.Event {
	return event.NewComment(roomID, event.Comment{
		UID:   1,
		Uname: "tester",
		Text:  text,
		Medal: &event.Medal{Level: 3, Name: "牌子"},
	})
}

func recv(t *testing.T, sub *Subscription) event.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return event.Event{}
	}
}

func TestFanOut(t *testing.T) {
	b := New(8)
	a := b.Subscribe("a")
	c := b.Subscribe("c")

	ev := comment(100, "hello")
	assert.Equal(t, 2, b.Publish(ev))

	got1 := recv(t, a)
	got2 := recv(t, c)
	assert.Equal(t, ev, got1)
	assert.Equal(t, got1, got2)

	// 每个订阅者拿到独立副本
	got1.Comment.Medal.Name = "changed"
	assert.Equal(t, "牌子", got2.Comment.Medal.Name)
	assert.Equal(t, "牌子", ev.Comment.Medal.Name)
}

func TestLateSubscriber(t *testing.T) {
	b := New(8)
	early := b.Subscribe("early")

	b.Publish(comment(1, "before"))
	late := b.Subscribe("late")
	b.Publish(comment(1, "after"))

	assert.Equal(t, "before", recv(t, early).Comment.Text)
	assert.Equal(t, "after", recv(t, early).Comment.Text)

	assert.Equal(t, "after", recv(t, late).Comment.Text)
	select {
	case ev := <-late.C():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestLaggingSubscriberDropsOldest(t *testing.T) {
	b := New(2)
	slow := b.Subscribe("slow")

	for _, text := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, 1, b.Publish(comment(1, text)))
	}

	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, "3", recv(t, slow).Comment.Text)
	assert.Equal(t, "4", recv(t, slow).Comment.Text)
}

func TestPublishOrderPerRoom(t *testing.T) {
	b := New(16)
	sub := b.Subscribe("order")

	for i := int32(0); i < 10; i++ {
		b.Publish(event.NewPopularity(7, i))
	}
	for i := int32(0); i < 10; i++ {
		assert.Equal(t, i, recv(t, sub).Popularity)
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("x")
	require.Equal(t, 1, b.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Publish(comment(1, "nobody")))

	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestBusClose(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("x")

	b.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Publish(comment(1, "closed")))

	after := b.Subscribe("after")
	_, ok = <-after.C()
	assert.False(t, ok)

	sub.Close()
	b.Close()
}
