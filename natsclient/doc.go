// Package natsclient wraps the NATS Go client for takcore's needs:
// supervised connect and drain, status tracking for health reporting,
// and a JetStream Key-Value layer with CAS retry.
//
// All NATS traffic in takcore goes through this package. The bridge
// publishes accepted federation events and lifecycle records onto the
// bus, and the config manager keeps the shared takfed configuration in
// a KV bucket that every node watches.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("takfed-node1"),
//	    natsclient.WithMaxReconnects(-1),
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "tak.cot.event", payload)
//
//	err = client.Subscribe(ctx, "tak.cot.*", func(msgCtx context.Context, data []byte) {
//	    // Each delivery gets a derived context with a 30s budget.
//	})
//
// Reconnection after a lost link is the nats library's job; the client
// configures it and tracks the resulting state. Connect fails fast so
// the daemon decides its own startup retry policy, and Publish returns
// ErrNotConnected while the link is down instead of buffering.
//
// # Key-Value Store
//
// KVStore adds CAS-with-retry on top of a JetStream KV bucket. Several
// takfed nodes may write the same keys at startup; UpdateWithRetry
// re-reads and re-applies on conflict so the last semantic write wins
// rather than the last raw write:
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket:  "takfed_config",
//	    History: 5,
//	})
//	kvStore := client.NewKVStore(bucket)
//
//	err = kvStore.UpdateWithRetry(ctx, "version", func(current []byte) ([]byte, error) {
//	    // May run more than once under contention.
//	    return []byte("1.2.0"), nil
//	})
//
//	watcher, err := kvStore.Watch(ctx, "servers.*", jetstream.UpdatesOnly())
//
// IsKVNotFoundError and IsKVConflictError classify failures whether
// they surface as this package's sentinels or as raw server responses.
//
// # Health
//
// Status reports the connection state for /healthz and the status
// gateway. An optional periodic RTT probe catches links the library
// still believes are up:
//
//	client, err := natsclient.NewClient(url,
//	    natsclient.WithHealthInterval(10*time.Second),
//	    natsclient.WithHealthChangeCallback(func(healthy bool) {
//	        // Fired on every healthy/unhealthy transition.
//	    }),
//	)
//
// WithMetrics registers connection status, failure and reconnect
// counts, and RTT on the takcore metric registry.
//
// # Security
//
// WithCredentials, WithToken, and WithTLS cover the authentication
// modes takfed deploys with. Credentials are cleared from the client
// when it closes.
//
// # Testing
//
// Integration tests run against a real NATS server via testcontainers:
//
//	func TestConfigSync(t *testing.T) {
//	    tc := natsclient.NewTestClient(t, natsclient.WithKV())
//	    // tc.Client is connected; cleanup is registered on t.
//	}
//
// # Thread Safety
//
// Client is safe for concurrent use. Close drains with a bounded
// timeout and is a no-op after the first call.
package natsclient
