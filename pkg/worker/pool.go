// Package worker provides a bounded worker pool for concurrent task
// processing. Submission is non-blocking: when the queue is full the task
// is dropped and reported, so producers on hot paths never stall.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Pool lifecycle and submission errors.
var (
	ErrNilProcessor   = errors.New("worker: nil processor")
	ErrNotStarted     = errors.New("worker: pool not started")
	ErrStopped        = errors.New("worker: pool stopped")
	ErrQueueFull      = errors.New("worker: queue full")
	ErrAlreadyStarted = errors.New("worker: pool already started")
	ErrStopTimeout    = errors.New("worker: stop timeout")
)

// Pool processes tasks of type T on a fixed set of workers behind a
// bounded queue.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	tasks chan T
	wg    sync.WaitGroup

	started atomic.Bool
	stopped atomic.Bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metrics *poolMetrics
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	submitted  prometheus.Counter
	processed  prometheus.Counter
	failed     prometheus.Counter
	dropped    prometheus.Counter
	duration   prometheus.Histogram
}

// Option configures a pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers pool metrics under the given subsystem name.
func WithMetrics[T any](registry *metric.MetricsRegistry, subsystem string) Option[T] {
	return func(p *Pool[T]) {
		if registry == nil || subsystem == "" {
			return
		}
		m := &poolMetrics{
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "queue_depth",
				Help:      "Tasks waiting in the worker queue",
			}),
			submitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "tasks_submitted_total",
				Help:      "Tasks accepted into the queue",
			}),
			processed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "tasks_processed_total",
				Help:      "Tasks taken off the queue and run",
			}),
			failed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "tasks_failed_total",
				Help:      "Tasks whose processor returned an error",
			}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "tasks_dropped_total",
				Help:      "Tasks dropped because the queue was full",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "takcore",
				Subsystem: subsystem,
				Name:      "task_duration_seconds",
				Help:      "Time spent running one task",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			}),
		}
		registry.RegisterGauge(subsystem, "queue_depth", m.queueDepth)
		registry.RegisterCounter(subsystem, "tasks_submitted", m.submitted)
		registry.RegisterCounter(subsystem, "tasks_processed", m.processed)
		registry.RegisterCounter(subsystem, "tasks_failed", m.failed)
		registry.RegisterCounter(subsystem, "tasks_dropped", m.dropped)
		registry.RegisterHistogram(subsystem, "task_duration", m.duration)
		p.metrics = m
	}
}

// NewPool creates a pool of workers draining a queue of queueSize. The
// processor runs once per task; its error is counted, never propagated.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if process == nil {
		panic(ErrNilProcessor)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		tasks:     make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *Pool[T]) Start(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return nil
}

// Submit queues a task without blocking. Returns ErrQueueFull when the
// queue is saturated; the caller decides whether that matters.
func (p *Pool[T]) Submit(task T) error {
	if !p.started.Load() {
		return ErrNotStarted
	}
	if p.stopped.Load() {
		return ErrStopped
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.tasks)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for in-flight tasks.
// Idempotent.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	if !p.started.Load() {
		return nil
	}
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Stats is a point-in-time pool snapshot.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queueDepth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats reports current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueDepth: len(p.tasks),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}

			start := time.Now()
			err := p.process(ctx, task)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}
			if p.metrics != nil {
				p.metrics.processed.Inc()
				if err != nil {
					p.metrics.failed.Inc()
				}
				p.metrics.duration.Observe(time.Since(start).Seconds())
				p.metrics.queueDepth.Set(float64(len(p.tasks)))
			}
		}
	}
}
