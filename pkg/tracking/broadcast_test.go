package tracking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := newBroadcaster[int](4, nil, nil)
	a, c := b.subscribe(), b.subscribe()
	require.NotEqual(t, a.ID(), c.ID())

	b.publish(1)
	b.publish(2)

	for _, sub := range []*Subscription[int]{a, c} {
		assert.Equal(t, 1, <-sub.C())
		assert.Equal(t, 2, <-sub.C())
	}
}

func TestBroadcasterConflatesToLatest(t *testing.T) {
	var drops int
	b := newBroadcaster[int](1, nil, func() { drops++ })
	sub := b.subscribe()

	for i := 1; i <= 5; i++ {
		b.publish(i)
	}

	assert.Equal(t, 5, <-sub.C())
	assert.Equal(t, uint64(4), sub.Dropped())
	assert.Equal(t, 4, drops)
}

func TestBroadcasterCopiesPerSubscriber(t *testing.T) {
	b := newBroadcaster(1, func(m map[string]int) map[string]int {
		out := make(map[string]int, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}, nil)
	a, c := b.subscribe(), b.subscribe()

	b.publish(map[string]int{"x": 1})
	got := <-a.C()
	got["x"] = 99
	assert.Equal(t, 1, (<-c.C())["x"])
}

func TestSubscriptionClose(t *testing.T) {
	b := newBroadcaster[int](1, nil, nil)
	sub := b.subscribe()
	require.Equal(t, 1, b.count())

	sub.Close()
	sub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.count())

	// Publishing after a subscriber left must not panic.
	b.publish(1)
}

func TestBroadcasterClose(t *testing.T) {
	b := newBroadcaster[int](1, nil, nil)
	sub := b.subscribe()

	b.close()
	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Close()

	late := b.subscribe()
	_, ok = <-late.C()
	assert.False(t, ok, "subscription after close should be closed")
	late.Close()

	b.publish(1)
	b.close()
}

func TestBroadcasterConcurrentPublishAndClose(t *testing.T) {
	b := newBroadcaster[int](1, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.subscribe()
			for j := 0; j < 100; j++ {
				select {
				case <-sub.C():
				default:
				}
			}
			sub.Close()
		}()
	}
	for i := 0; i < 1000; i++ {
		b.publish(i)
	}
	wg.Wait()
	assert.Equal(t, 0, b.count())
}
