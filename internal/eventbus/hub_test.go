package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx, 4)
	b := h.Subscribe(ctx, 4)
	h.Publish(7)

	assert.Equal(t, 7, <-a)
	assert.Equal(t, 7, <-b)
}

func TestHub_SubscribeWithSeedsOnlyNewSubscriber(t *testing.T) {
	h := NewHub[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := h.Subscribe(ctx, 4)
	fresh := h.SubscribeWith(ctx, 4, 1)
	h.Publish(2)

	assert.Equal(t, 1, <-fresh)
	assert.Equal(t, 2, <-fresh)
	assert.Equal(t, 2, <-old)
	select {
	case v := <-old:
		t.Fatalf("existing subscriber got extra value %d", v)
	default:
	}
}

func TestHub_SlowConsumerKeepsNewest(t *testing.T) {
	h := NewHub[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, 2)
	for i := 1; i <= 5; i++ {
		h.Publish(i)
	}
	assert.Equal(t, 4, <-ch)
	assert.Equal(t, 5, <-ch)
}

func TestHub_CancelClosesAndUnsubscribes(t *testing.T) {
	h := NewHub[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 1)
	require.Equal(t, 1, h.Len())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)

	h.Publish("after close")
}

func TestHub_NilPublishIsSafe(t *testing.T) {
	var h *Hub[int]
	assert.NotPanics(t, func() { h.Publish(1) })
}
