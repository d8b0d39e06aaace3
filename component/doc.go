// Package component defines the lifecycle contract for the daemon's
// long-running pieces and the Runner that sequences them.
//
// Every managed piece follows the same three-step lifecycle:
//
//	Initialize() error                 // setup only, no context
//	Start(ctx context.Context) error   // spawn loops bound to ctx
//	Stop(timeout time.Duration) error  // graceful shutdown budget
//
// The Runner starts components in registration order and stops them in
// reverse, cancelling each component's child context before calling Stop
// so loops see shutdown intent early. A failed Start rolls back the
// components already started.
//
//	runner := component.NewRunner(logger, registry.CoreMetrics())
//	runner.Add("nats", natsClient)
//	runner.Add("federation", fedManager)
//	runner.Add("gateway", gw)
//
//	if err := runner.Initialize(); err != nil { ... }
//	if err := runner.Start(ctx); err != nil { ... }
//	defer runner.Stop(30 * time.Second)
//
// Components implementing HealthReporter contribute their own
// HealthStatus to Runner.Health; for the rest the runner derives one from
// its state tracking.
//
// StandardLifecycleTests runs a conformance suite against any Component
// and is invoked from the test files of the packages implementing the
// contract.
package component
