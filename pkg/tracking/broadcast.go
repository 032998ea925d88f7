package tracking

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription receives values published by a tracker stream. When the
// subscriber falls behind, the oldest buffered value is discarded in
// favor of the newest one.
type Subscription[T any] struct {
	id      string
	ch      chan T
	b       *broadcaster[T]
	once    sync.Once
	dropped atomic.Uint64
}

// ID returns a unique identifier for the subscription.
func (s *Subscription[T]) ID() string {
	return s.id
}

// C returns the receive channel. It is closed by Close or when the
// tracker is released.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values this subscriber missed.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once and does not
// affect the tracker.
func (s *Subscription[T]) Close() {
	if s.b != nil {
		s.b.remove(s)
		return
	}
	s.once.Do(func() { close(s.ch) })
}

// broadcaster fans values out to subscribers without ever blocking the
// publisher.
type broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	size   int
	closed bool
	copyFn func(T) T
	onDrop func()
}

// newBroadcaster creates a broadcaster with per-subscriber buffers of
// size. A non-nil copyFn gives every subscriber its own copy of a value.
func newBroadcaster[T any](size int, copyFn func(T) T, onDrop func()) *broadcaster[T] {
	if size < 1 {
		size = 1
	}
	return &broadcaster[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		size:   size,
		copyFn: copyFn,
		onDrop: onDrop,
	}
}

func (b *broadcaster[T]) subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		id: uuid.NewString(),
		ch: make(chan T, b.size),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	sub.b = b
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		out := v
		if b.copyFn != nil {
			out = b.copyFn(v)
		}
		if offer(sub.ch, out) {
			sub.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// offer sends v on ch, evicting the oldest buffered value if ch is full.
// Only the publisher sends, so at most one value is evicted.
func offer[T any](ch chan T, v T) (evicted bool) {
	for {
		select {
		case ch <- v:
			return evicted
		default:
		}
		select {
		case <-ch:
			evicted = true
		default:
		}
	}
}

func (b *broadcaster[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// close ends every subscription. Later subscribers receive a closed
// subscription.
func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
}

func (b *broadcaster[T]) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
