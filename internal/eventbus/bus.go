// Package eventbus fans typed in-process events out to subscribers.
//
// Publish never blocks. Each subscriber has its own buffer; when it is full
// the oldest queued event is discarded, so a slow subscriber always sees the
// most recent state.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Bus delivers values of type T to every current subscriber.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[uint64]*sub[T]
	seq  uint64

	dropped atomic.Uint64
}

type sub[T any] struct {
	ch     chan T
	closed bool
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: map[uint64]*sub[T]{}}
}

// Publish queues ev for every subscriber.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		select {
		case <-s.ch:
			b.dropped.Add(1)
		default:
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel. The function is safe to call twice.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub[T]{ch: make(chan T, buffer)}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = s
	b.mu.Unlock()

	return s.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		delete(b.subs, id)
		close(s.ch)
	}
}

// Dropped is the number of events discarded because a subscriber lagged.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }
