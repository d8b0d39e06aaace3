// Package pubsub provides a typed in-process publish-subscribe bus with
// bounded per-subscriber buffers. Publishing never blocks: a subscriber that
// stops draining loses its oldest pending values, counted per subscription.
package pubsub

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel capacity when the caller does
// not choose one.
const DefaultBuffer = 64

// Bus fans values out to any number of subscribers. The zero value is not
// usable; call NewBus.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[uint64]*Subscription[T])}
}

// Subscription is one subscriber's handle: a receive channel and a disposer.
type Subscription[T any] struct {
	id      uint64
	ch      chan T
	bus     *Bus[T]
	once    sync.Once
	dropped atomic.Uint64
}

// Subscribe registers a subscriber with the given channel capacity; zero or
// negative means DefaultBuffer. A subscription on a closed bus is already
// closed: its channel delivers nothing.
func (b *Bus[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription[T]{ch: make(chan T, buffer), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// C is the receive channel. It is closed by Unsubscribe and by Bus.Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped reports how many values this subscriber lost to a full buffer.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call
// more than once and safe against concurrent Publish.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
		}
		alreadyClosed := s.bus.closed && s.id == 0
		s.bus.mu.Unlock()
		if !alreadyClosed {
			close(s.ch)
		}
	})
}

// Publish delivers v to every current subscriber and returns how many
// received it. Subscribers with full buffers are skipped, not waited on.
func (b *Bus[T]) Publish(v T) int {
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
	return delivered
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscriber and closes their channels. Publishing to a
// closed bus delivers to no one.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription[T], 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[uint64]*Subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// Stats returns current counters.
func (b *Bus[T]) Stats() Stats {
	return Stats{
		Subscribers: b.SubscriberCount(),
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}
