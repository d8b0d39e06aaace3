package component

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh Component for conformance testing.
type Factory func() Component

// stopBudget bounds every Stop and Start in the conformance suite. A
// conforming component settles well inside it.
const stopBudget = 5 * time.Second

// StandardLifecycleTests runs the shared lifecycle conformance tests
// for any component implementing the Component interface. Every
// sub-test gets a fresh instance from the factory; restartability
// after Stop is not part of the contract and is not tested here.
func StandardLifecycleTests(t *testing.T, factory Factory) {
	fresh := func(t *testing.T) Component {
		t.Helper()
		comp := factory()
		require.NotNil(t, comp, "factory returned a nil component")
		return comp
	}

	started := func(t *testing.T) Component {
		t.Helper()
		comp := fresh(t)
		require.NoError(t, comp.Initialize(), "initialize failed on a fresh component")
		ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
		defer cancel()
		require.NoError(t, comp.Start(ctx), "start failed after initialize")
		return comp
	}

	t.Run("InitializeFresh", func(t *testing.T) {
		comp := fresh(t)
		assert.NoError(t, comp.Initialize(), "a fresh component must initialize")
	})

	t.Run("StartThenStop", func(t *testing.T) {
		comp := started(t)
		assert.NoError(t, comp.Stop(stopBudget), "stop after a clean start must succeed")
	})

	t.Run("StartTwice", func(t *testing.T) {
		comp := started(t)
		ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
		defer cancel()
		assert.NoError(t, comp.Start(ctx), "a second start must be a no-op")
		assert.NoError(t, comp.Stop(stopBudget))
	})

	t.Run("StopBeforeStart", func(t *testing.T) {
		comp := fresh(t)
		assert.NoError(t, comp.Stop(stopBudget), "stop without a start must be safe")
	})

	t.Run("StopTwice", func(t *testing.T) {
		comp := started(t)
		require.NoError(t, comp.Stop(stopBudget))
		assert.NoError(t, comp.Stop(stopBudget), "a second stop must be a no-op")
	})

	t.Run("ConcurrentStartStop", func(t *testing.T) {
		comp := fresh(t)
		require.NoError(t, comp.Initialize())

		const workers = 20
		startErrs := make(chan error, workers)
		stopErrs := make(chan error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
				defer cancel()
				startErrs <- comp.Start(ctx)
			}()
			go func() {
				defer wg.Done()
				// Let some starts land first.
				time.Sleep(10 * time.Millisecond)
				stopErrs <- comp.Stop(stopBudget)
			}()
		}
		wg.Wait()
		close(startErrs)
		close(stopErrs)

		// Surviving the race is the core requirement. Beyond that, at
		// least one call of each kind must have gone through.
		succeeded := func(errs chan error) int {
			n := 0
			for err := range errs {
				if err == nil {
					n++
				}
			}
			return n
		}
		assert.NotZero(t, succeeded(startErrs), "no start call succeeded under contention")
		assert.NotZero(t, succeeded(stopErrs), "no stop call succeeded under contention")

		_ = comp.Stop(stopBudget)
	})

	t.Run("ConcurrentInitialize", func(t *testing.T) {
		comp := fresh(t)

		const workers = 10
		errs := make(chan error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- comp.Initialize()
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.NotZero(t, succeeded, "no initialize call succeeded under contention")
		assert.NoError(t, comp.Stop(stopBudget), "component must be stoppable afterwards")
	})

	t.Run("GoroutineLeaks", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping leak check in short mode")
		}

		settled := func(wait time.Duration) int {
			runtime.GC()
			time.Sleep(wait)
			return runtime.NumGoroutine()
		}

		before := settled(100 * time.Millisecond)

		const lifecycles = 200
		for i := 0; i < lifecycles; i++ {
			comp := fresh(t)
			if err := comp.Initialize(); err != nil {
				t.Logf("lifecycle %d: initialize: %v", i, err)
				continue
			}
			ctx, cancel := context.WithCancel(context.Background())
			if err := comp.Start(ctx); err != nil {
				t.Logf("lifecycle %d: start: %v", i, err)
			}
			if err := comp.Stop(stopBudget); err != nil {
				t.Logf("lifecycle %d: stop: %v", i, err)
			}
			cancel()
		}

		after := settled(200 * time.Millisecond)
		assert.LessOrEqual(t, after-before, 10,
			"goroutine count grew from %d to %d across %d lifecycles",
			before, after, lifecycles)
	})
}
