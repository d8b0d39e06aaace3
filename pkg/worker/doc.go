// Package worker provides a generic, bounded worker pool.
//
// A Pool runs a fixed number of goroutines draining a bounded task
// channel. Submit never blocks: a saturated queue returns ErrQueueFull
// and counts a drop, which keeps hot producers (inbound message
// dispatch, fan-out) decoupled from slow consumers (socket writes).
//
// The processor function's error is recorded in the pool's counters and
// metrics but never propagated; a failed task is an operational event,
// not a reason to stop the pool.
//
//	pool := worker.NewPool(4, 1024, func(ctx context.Context, t sendTask) error {
//	    return conn.Send(t.payload)
//	})
//	if err := pool.Start(ctx); err != nil { ... }
//	_ = pool.Submit(sendTask{...})
//	_ = pool.Stop(5 * time.Second)
//
// Stop closes the queue and drains in-flight tasks up to its timeout;
// canceling the Start context abandons the queue immediately instead.
package worker
