// Package buffer provides a bounded, thread-safe retention ring for
// recent-history windows: chat room history, resolved-alert logs, and
// similar "keep the last N" state. Appending past capacity drops the
// oldest item. Readers take snapshots; nothing is consumed.
package buffer

import (
	"fmt"
	"sync"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
)

// DropCallback is invoked with each item displaced by a full ring. It
// runs while the ring's lock is held and must not call back into the
// ring.
type DropCallback[T any] func(item T)

// Option configures a Ring using the functional options pattern.
type Option[T any] func(*options[T])

type options[T any] struct {
	dropCallback  DropCallback[T]
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithDropCallback registers a callback fired for every item the ring
// displaces.
func WithDropCallback[T any](fn DropCallback[T]) Option[T] {
	return func(o *options[T]) {
		o.dropCallback = fn
	}
}

// WithMetrics exposes ring counters as Prometheus metrics, labeled with
// prefix as the component. A nil registry or empty prefix disables the
// option.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(o *options[T]) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

// Ring is a fixed-capacity window over the most recent appends.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // index of the oldest item
	size  int

	appends int64
	drops   int64

	dropCallback DropCallback[T]
	metrics      *ringMetrics
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int, opts ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("capacity %d must be positive", capacity),
			"buffer", "NewRing", "capacity validation")
	}

	var o options[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var metrics *ringMetrics
	if o.metricsReg != nil {
		var err error
		metrics, err = newRingMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewRing", "metrics registration")
		}
	}

	return &Ring[T]{
		items:        make([]T, capacity),
		dropCallback: o.dropCallback,
		metrics:      metrics,
	}, nil
}

// Append adds item to the window, displacing the oldest item when the
// ring is full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.size == capacity {
		dropped := r.items[r.head]
		r.items[r.head] = item
		r.head = (r.head + 1) % capacity
		r.appends++
		r.drops++
		if r.metrics != nil {
			r.metrics.recordAppend(r.size, capacity)
			r.metrics.recordDrop()
		}
		if r.dropCallback != nil {
			r.dropCallback(dropped)
		}
		return
	}

	r.items[(r.head+r.size)%capacity] = item
	r.size++
	r.appends++
	if r.metrics != nil {
		r.metrics.recordAppend(r.size, capacity)
	}
}

// Items returns the window contents, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Newest returns the most recent item and true, or the zero value and
// false when the ring is empty.
func (r *Ring[T]) Newest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.items[(r.head+r.size-1)%len(r.items)], true
}

// Len returns the number of items currently retained.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the window capacity.
func (r *Ring[T]) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear empties the window. The drop callback is not invoked.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
	if r.metrics != nil {
		r.metrics.setSize(0, len(r.items))
	}
}

// Stats is a point-in-time summary of ring activity.
type Stats struct {
	Appends int64 `json:"appends"`
	Drops   int64 `json:"drops"`
	Len     int   `json:"len"`
	Cap     int   `json:"cap"`
}

// Stats returns cumulative append/drop counts and the current fill.
func (r *Ring[T]) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Appends: r.appends,
		Drops:   r.drops,
		Len:     r.size,
		Cap:     len(r.items),
	}
}
